package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Scheduler runs periodic rebuilds on a cron spec such as "0 3 * * *".
type Scheduler struct {
	cron *cron.Cron
	ix   *Indexer
	req  Request
	log  *slog.Logger
}

// NewScheduler registers req to run on spec. Runs that would overlap a
// still-running build are skipped.
func NewScheduler(spec string, ix *Indexer, req Request, log *slog.Logger) (*Scheduler, error) {
	if log == nil {
		log = slog.Default()
	}
	req.Trigger = TriggerCron
	s := &Scheduler{ix: ix, req: req, log: log}
	cl := cron.PrintfLogger(slog.NewLogLogger(log.Handler(), slog.LevelWarn))
	s.cron = cron.New(cron.WithLogger(cl), cron.WithChain(cron.SkipIfStillRunning(cl)))
	if _, err := s.cron.AddFunc(spec, s.runOnce); err != nil {
		return nil, fmt.Errorf("ingest: schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) runOnce() {
	if _, err := s.ix.Run(context.Background(), s.req); err != nil {
		s.log.Warn("ingest: scheduled rebuild failed", "err", err)
	}
}

// Start begins running the schedule in its own goroutine.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts the schedule and waits for a running build to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}
