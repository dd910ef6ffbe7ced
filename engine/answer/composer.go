package answer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/WessleyAI/condo-ledger/engine/domain"
	"github.com/WessleyAI/condo-ledger/engine/retrieval"
	"github.com/WessleyAI/condo-ledger/pkg/fn"
	"github.com/WessleyAI/condo-ledger/pkg/metrics"
	"github.com/WessleyAI/condo-ledger/pkg/resilience"
)

// Role is the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Completer generates prose from a system prompt and a message list.
type Completer interface {
	Complete(ctx context.Context, system string, messages []Message) (string, error)
}

// Source records how an answer's text was produced.
type Source string

const (
	SourceMiss       Source = "miss"
	SourceLocal      Source = "local"
	SourceCompletion Source = "completion"
)

// Answer is a composed response.
type Answer struct {
	Text         string       `json:"answer"`
	Source       Source       `json:"source"`
	Analysis     Analysis     `json:"analysis"`
	RelevantData RelevantData `json:"relevant_data"`
	Suggestions  []string     `json:"suggestions"`
}

// Options configures a Composer.
type Options struct {
	SystemPrompt string
	// Timeout bounds one completion call.
	Timeout time.Duration
	// HistoryMessages is how many trailing history messages go into the prompt.
	HistoryMessages int
	Logger          *slog.Logger
	Metrics         *metrics.Metrics
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		SystemPrompt:    defaultSystemPrompt,
		Timeout:         30 * time.Second,
		HistoryMessages: 4,
	}
}

const defaultSystemPrompt = `You help condominium associates understand their monthly trial balance reports.
You are given expense items with amounts, vendors, categories, and months, plus monthly,
category, and vendor summaries.

Start every answer with the single monetary figure that answers the question, in Brazilian
Reais (for example "R$ 1,234.56"), then elaborate briefly. Use only the data provided.
Be precise with months and vendor names. If the data is missing or unclear, say so.
Answer in the language of the question.`

var detailTerms = []string{"detail", "breakdown", "list all", "show all"}

// Composer builds answers from retrieval results.
type Composer struct {
	completer Completer
	breaker   *resilience.Breaker
	opts      Options
}

// NewComposer creates a Composer. A nil completer always uses the local
// formatter; a nil breaker gets the defaults.
func NewComposer(c Completer, breaker *resilience.Breaker, opts Options) *Composer {
	d := DefaultOptions()
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = d.SystemPrompt
	}
	if opts.Timeout <= 0 {
		opts.Timeout = d.Timeout
	}
	if opts.HistoryMessages <= 0 {
		opts.HistoryMessages = d.HistoryMessages
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if breaker == nil {
		breaker = resilience.NewBreaker(resilience.BreakerOpts{Name: "completion"})
	}
	return &Composer{completer: c, breaker: breaker, opts: opts}
}

// Compose answers question from res. It never fails: a miss is rendered
// as-is, and a completion failure falls back to FormatLocal.
func (c *Composer) Compose(ctx context.Context, question string, res retrieval.QueryResult, history []Message) Answer {
	if res.Miss != nil {
		return Answer{
			Text:         FormatMiss(res.Miss),
			Source:       SourceMiss,
			Analysis:     Summarize(nil),
			RelevantData: ExtractRelevantData(nil),
			Suggestions:  res.Miss.Suggestions,
		}
	}

	data := ExtractRelevantData(res.Results)
	ans := Answer{
		Source:       SourceLocal,
		Analysis:     Summarize(res.Results),
		RelevantData: data,
		Suggestions:  SuggestFollowUps(data),
	}

	if c.completer == nil || len(res.Results) == 0 || WantsDetail(question) {
		ans.Text = FormatLocal(res)
		return ans
	}

	text, err := c.complete(ctx, question, res, history)
	if err != nil {
		reason := "error"
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			reason = "timeout"
		case errors.Is(err, resilience.ErrOpen):
			reason = "breaker_open"
		}
		c.opts.Logger.Warn("answer: completion failed, using local formatter", "reason", reason, "err", err)
		c.opts.Metrics.CompletionFallback(reason)
		ans.Text = FormatLocal(res)
		return ans
	}
	ans.Text = text
	ans.Source = SourceCompletion
	return ans
}

func (c *Composer) complete(ctx context.Context, question string, res retrieval.QueryResult, history []Message) (string, error) {
	msgs := append([]Message{}, lastN(history, c.opts.HistoryMessages)...)
	msgs = append(msgs, Message{Role: RoleUser, Content: userPrompt(question, res)})

	var text string
	err := c.breaker.Call(ctx, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
		out, err := c.completer.Complete(ctx, c.opts.SystemPrompt, msgs)
		if err != nil {
			return err
		}
		if strings.TrimSpace(out) == "" {
			return errors.New("empty completion")
		}
		text = out
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("answer: complete: %w: %w", domain.ErrCompletionFailure, err)
	}
	return text, nil
}

// WantsDetail reports whether the question asks for an itemized listing.
func WantsDetail(question string) bool {
	lower := strings.ToLower(question)
	for _, t := range detailTerms {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}

// BuildContext renders ranked results for the completion prompt.
func BuildContext(res retrieval.QueryResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "User Query: %s\nFound %d relevant results:\n\n", res.Query, res.TotalResults)
	for i, h := range res.Results {
		fmt.Fprintf(&b, "Result %d (Score: %.3f):\nContent: %s\n", i+1, h.Score, h.Content)
		if len(h.Metadata) > 0 {
			b.WriteString("Metadata:\n")
			for _, k := range fn.SortedKeys(h.Metadata) {
				if v := h.Metadata.String(k); v != "" {
					fmt.Fprintf(&b, "  - %s: %s\n", k, v)
				}
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

func userPrompt(question string, res retrieval.QueryResult) string {
	return fmt.Sprintf(`Based on the following financial data from the condominium trial balance, please answer my question:

FINANCIAL DATA:
%s
QUESTION: %s

Lead with the total or amount that answers the question, then include relevant dates and vendors.`,
		BuildContext(res), question)
}

func lastN(msgs []Message, n int) []Message {
	if len(msgs) <= n {
		return msgs
	}
	return msgs[len(msgs)-n:]
}
