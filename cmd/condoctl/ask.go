package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
)

func newAskCmd(a *app) *cobra.Command {
	var (
		raw    bool
		conv   string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question about the indexed expenses",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.stack()
			if err != nil {
				return err
			}
			defer st.Close()

			resp, err := st.Service.Query(cmd.Context(), strings.Join(args, " "), conv)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(a.out)
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}

			text := resp.Answer
			if len(resp.Suggestions) > 0 && !strings.Contains(text, resp.Suggestions[0]) {
				text += "\n\n**You could also ask:**\n"
				for _, s := range resp.Suggestions {
					text += "- " + s + "\n"
				}
			}
			if raw {
				fmt.Fprintln(a.out, text)
				return nil
			}
			return render(a, text)
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print markdown without rendering")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full response as JSON")
	cmd.Flags().StringVar(&conv, "conversation", "", "conversation id for follow-up context")
	return cmd
}

func render(a *app, markdown string) error {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		a.log.Debug("markdown renderer unavailable", "err", err)
		fmt.Fprintln(a.out, markdown)
		return nil
	}
	out, err := r.Render(markdown)
	if err != nil {
		fmt.Fprintln(a.out, markdown)
		return nil
	}
	fmt.Fprint(a.out, out)
	return nil
}
