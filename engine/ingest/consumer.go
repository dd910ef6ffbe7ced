package ingest

import (
	"context"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/WessleyAI/condo-ledger/pkg/natsutil"
)

const (
	// RebuildSubject is the NATS subject for index rebuild requests.
	RebuildSubject = "ledger.index.rebuild"
	// DLQSubject is the dead letter queue subject for failed requests.
	DLQSubject = "ledger.index.rebuild.dlq"
	// CompletedSubject receives a Completed event after every successful build.
	CompletedSubject = "ledger.index.completed"
	// MaxRetries before sending to DLQ.
	MaxRetries = 3
)

// Completed is published after a successful build.
type Completed struct {
	Report Report `json:"report"`
}

// Reply answers a rebuild request sent with natsutil.Request. Retries do
// not reply; the original requester gets the first outcome.
type Reply struct {
	Report *Report `json:"report,omitempty"`
	Error  string  `json:"error,omitempty"`
}

// dlqMessage is published to the DLQ on repeated failure.
type dlqMessage struct {
	Request Request `json:"request"`
	Error   string  `json:"error"`
	Retries int     `json:"retries"`
}

// StartConsumer subscribes ix to RebuildSubject with retry and DLQ support.
func StartConsumer(nc *nats.Conn, ix *Indexer, log *slog.Logger) (*nats.Subscription, error) {
	if log == nil {
		log = slog.Default()
	}
	return natsutil.Subscribe(nc, RebuildSubject, func(ctx context.Context, msg natsutil.Msg[Request]) {
		req := msg.Value
		if req.Trigger == "" {
			req.Trigger = TriggerNATS
		}

		rep, err := ix.Run(ctx, req)
		if err != nil {
			retries := msg.Retries() + 1
			log.Error("ingest: rebuild failed", "err", err, "dir", req.Dir, "retry", retries)
			if retries >= MaxRetries {
				dlq := dlqMessage{Request: req, Error: err.Error(), Retries: retries}
				if perr := natsutil.Publish(ctx, nc, DLQSubject, dlq); perr != nil {
					log.Error("ingest: DLQ publish failed", "err", perr)
				}
			} else if perr := natsutil.PublishWithHeader(ctx, nc, RebuildSubject, req, natsutil.RetryHeaderFor(retries)); perr != nil {
				log.Error("ingest: retry publish failed", "err", perr)
			}
			if rerr := msg.Respond(Reply{Error: err.Error()}); rerr != nil {
				log.Warn("ingest: reply failed", "err", rerr)
			}
			return
		}

		if perr := natsutil.Publish(ctx, nc, CompletedSubject, Completed{Report: rep}); perr != nil {
			log.Warn("ingest: completion publish failed", "err", perr)
		}
		if rerr := msg.Respond(Reply{Report: &rep}); rerr != nil {
			log.Warn("ingest: reply failed", "err", rerr)
		}
	})
}
