package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newFiltersCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "filters",
		Short: "List the months, categories and vendors in the index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := a.stack()
			if err != nil {
				return err
			}
			defer st.Close()

			inv, err := st.Service.Filters(cmd.Context())
			if err != nil {
				return err
			}
			if inv.Empty() {
				fmt.Fprintln(a.out, "The index is empty. Run `condoctl index` first.")
				return nil
			}
			line := func(label string, vals []string) {
				fmt.Fprintf(a.out, "%-14s %s\n", label+":", strings.Join(vals, ", "))
			}
			line("Months", inv.Months)
			line("Categories", inv.Categories)
			line("Subcategories", inv.Subcategories)
			line("Vendors", inv.Vendors)
			return nil
		},
	}
}
