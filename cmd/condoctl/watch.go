package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/WessleyAI/condo-ledger/engine/ingest"
)

func newWatchCmd(a *app) *cobra.Command {
	var schedule, dir string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Serve rebuild requests from NATS and on a cron schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if schedule == "" {
				schedule = a.cfg.Ingest.Schedule
			}
			if dir == "" {
				dir = a.cfg.Ingest.DataDir
			}
			if schedule == "" && a.cfg.NATS.URL == "" {
				return errors.New("watch: set --schedule or NATS_URL")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			st, err := a.stack()
			if err != nil {
				return err
			}
			defer st.Close()

			if a.cfg.NATS.URL != "" {
				nc, err := nats.Connect(a.cfg.NATS.URL)
				if err != nil {
					return err
				}
				defer nc.Drain()
				if _, err := ingest.StartConsumer(nc, st.Indexer, a.log); err != nil {
					return err
				}
				a.log.Info("listening for rebuild requests", "subject", ingest.RebuildSubject)
			}

			if schedule != "" {
				sched, err := ingest.NewScheduler(schedule, st.Indexer, ingest.Request{Dir: dir, Reset: true}, a.log)
				if err != nil {
					return err
				}
				sched.Start()
				defer func() {
					stopCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
					defer cancel()
					sched.Stop(stopCtx)
				}()
				a.log.Info("scheduled rebuilds", "schedule", schedule, "dir", dir)
			}

			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().StringVar(&schedule, "schedule", "", "cron spec for rebuilds (default REBUILD_SCHEDULE)")
	cmd.Flags().StringVar(&dir, "dir", "", "directory of PDF reports (default DATA_DIR)")
	return cmd
}
