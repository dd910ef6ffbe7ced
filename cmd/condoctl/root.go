package main

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/WessleyAI/condo-ledger/engine/rag"
	"github.com/WessleyAI/condo-ledger/pkg/config"
)

// app carries what every subcommand shares.
type app struct {
	out     io.Writer
	logOut  io.Writer
	verbose bool
	log     *slog.Logger
	cfg     *config.Config
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out, logOut: errOut}
	root := &cobra.Command{
		Use:          "condoctl",
		Short:        "Index condominium trial balances and ask about their expenses",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level := slog.LevelWarn
			if a.verbose {
				level = slog.LevelDebug
			}
			a.log = slog.New(slog.NewTextHandler(a.logOut, &slog.HandlerOptions{Level: level}))
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newIndexCmd(a),
		newAskCmd(a),
		newFiltersCmd(a),
		newWatchCmd(a),
	)
	return root
}

// stack opens the store and services for one command run.
func (a *app) stack() (*rag.Stack, error) {
	return rag.NewStack(a.cfg, a.log, nil)
}
