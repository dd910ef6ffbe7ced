package rag

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/WessleyAI/condo-ledger/engine/answer"
	"github.com/WessleyAI/condo-ledger/engine/chunk"
	"github.com/WessleyAI/condo-ledger/engine/conversation"
	"github.com/WessleyAI/condo-ledger/engine/extract"
	"github.com/WessleyAI/condo-ledger/engine/ingest"
	"github.com/WessleyAI/condo-ledger/engine/retrieval"
	"github.com/WessleyAI/condo-ledger/engine/semantic"
	"github.com/WessleyAI/condo-ledger/pkg/anthropic"
	"github.com/WessleyAI/condo-ledger/pkg/config"
	"github.com/WessleyAI/condo-ledger/pkg/metrics"
	"github.com/WessleyAI/condo-ledger/pkg/ollama"
	"github.com/WessleyAI/condo-ledger/pkg/resilience"
)

// Stack is every component a binary needs, built from one Config.
type Stack struct {
	Config        *config.Config
	Store         semantic.Store
	Service       *Service
	Indexer       *ingest.Indexer
	Conversations *conversation.Store
	Metrics       *metrics.Metrics
}

// NewStack builds the store, router, composer, conversation store, and
// indexer. m may be nil.
func NewStack(cfg *config.Config, log *slog.Logger, m *metrics.Metrics) (*Stack, error) {
	if log == nil {
		log = slog.Default()
	}

	store, err := openStore(cfg, log)
	if err != nil {
		return nil, err
	}

	completer, err := newCompleter(cfg)
	if err != nil {
		store.Close()
		return nil, err
	}

	conv, err := conversation.New(conversation.Options{
		MaxPairs:    cfg.Server.MaxPairs,
		MaxSessions: cfg.Server.MaxSessions,
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	onChange := func(name string, from, to resilience.State) {
		log.Warn("breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		m.SetBreakerState(name, int(to))
	}
	storeBreaker := resilience.NewBreaker(resilience.BreakerOpts{Name: "store", OnChange: onChange})
	completionBreaker := resilience.NewBreaker(resilience.BreakerOpts{Name: "completion", OnChange: onChange})

	ret := retrieval.NewRetriever(store, storeBreaker, retrieval.Options{
		ReferenceYear:  cfg.Router.ReferenceYear,
		RelevanceFloor: cfg.Router.RelevanceFloor,
		SampleLimit:    cfg.Router.SampleLimit,
		SearchTimeout:  cfg.Router.SearchTimeout,
		Logger:         log,
		Metrics:        m,
	})
	composer := answer.NewComposer(completer, completionBreaker, answer.Options{
		Timeout: cfg.Completion.Timeout,
		Logger:  log,
		Metrics: m,
	})
	svc := New(store, retrieval.NewRouter(ret), composer, conv, Options{
		Completion: cfg.Completion.Provider,
		Logger:     log,
	})

	ix := ingest.NewIndexer(ingest.Deps{
		Reader:  extract.NewReader(nil, nil, cfg.Ingest.Locale),
		Builder: chunk.NewBuilder(),
		Store:   store,
		Logger:  log,
		Metrics: m,
	})

	return &Stack{
		Config:        cfg,
		Store:         store,
		Service:       svc,
		Indexer:       ix,
		Conversations: conv,
		Metrics:       m,
	}, nil
}

// Close releases the store.
func (s *Stack) Close() error { return s.Store.Close() }

func openStore(cfg *config.Config, log *slog.Logger) (semantic.Store, error) {
	opts := semantic.Options{
		Collection: cfg.Store.Collection,
		BatchSize:  cfg.Store.BatchSize,
		Logger:     log,
	}
	switch cfg.Store.Engine {
	case config.EngineBleve:
		return semantic.NewLexical(cfg.Store.IndexPath, opts)
	case config.EngineQdrant:
		embed := ollama.NewEmbedClient(cfg.Embedding.OllamaURL, cfg.Embedding.Model, cfg.Embedding.Timeout)
		return semantic.New(cfg.Store.QdrantAddr, embed, opts)
	}
	return nil, fmt.Errorf("rag: unknown store engine %q", cfg.Store.Engine)
}

// newCompleter returns nil when no provider is configured.
func newCompleter(c *config.Config) (answer.Completer, error) {
	cfg := c.Completion
	switch cfg.Provider {
	case config.ProviderAnthropic:
		c, err := anthropic.New(anthropic.Config{
			APIKey:      cfg.AnthropicAPIKey,
			Model:       cfg.AnthropicModel,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	case config.ProviderOllama:
		return ollama.NewChatClient(c.Embedding.OllamaURL, cfg.OllamaModel, cfg.Temperature, cfg.Timeout), nil
	case config.ProviderNone, "":
		return nil, nil
	}
	return nil, errors.New("rag: unknown completion provider " + cfg.Provider)
}
