// Package conversation keeps a short per-session transcript used as optional
// context for answer prose. Routing never reads it.
package conversation

import (
	"fmt"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/WessleyAI/condo-ledger/engine/answer"
)

// DefaultID is the session used when a request names none.
const DefaultID = "default"

// Options bounds the store.
type Options struct {
	// MaxPairs is the number of question/answer pairs kept per session.
	MaxPairs int
	// MaxSessions bounds how many sessions are kept; the least recently used is evicted.
	MaxSessions int
}

// DefaultOptions keeps 10 pairs for up to 1000 sessions.
func DefaultOptions() Options {
	return Options{MaxPairs: 10, MaxSessions: 1000}
}

type session struct {
	mu   sync.Mutex
	msgs []answer.Message
}

// Store maps conversation IDs to bounded transcripts. It is safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	sessions *lru.Cache[string, *session]
	maxMsgs  int
}

// New creates a Store.
func New(opts Options) (*Store, error) {
	d := DefaultOptions()
	if opts.MaxPairs <= 0 {
		opts.MaxPairs = d.MaxPairs
	}
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = d.MaxSessions
	}
	cache, err := lru.New[string, *session](opts.MaxSessions)
	if err != nil {
		return nil, fmt.Errorf("conversation: new: %w", err)
	}
	return &Store{sessions: cache, maxMsgs: 2 * opts.MaxPairs}, nil
}

// ID normalises a requested conversation ID.
func ID(id string) string {
	if id = strings.TrimSpace(id); id == "" {
		return DefaultID
	}
	return id
}

func (s *Store) session(id string, create bool) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions.Get(id); ok {
		return sess
	}
	if !create {
		return nil
	}
	sess := &session{}
	s.sessions.Add(id, sess)
	return sess
}

// Append records one exchange and trims the session to its bound.
func (s *Store) Append(id, question, reply string) {
	sess := s.session(ID(id), true)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.msgs = append(sess.msgs,
		answer.Message{Role: answer.RoleUser, Content: question},
		answer.Message{Role: answer.RoleAssistant, Content: reply},
	)
	if over := len(sess.msgs) - s.maxMsgs; over > 0 {
		sess.msgs = append([]answer.Message(nil), sess.msgs[over:]...)
	}
}

// History returns a copy of the session's messages, oldest first.
func (s *Store) History(id string) []answer.Message {
	sess := s.session(ID(id), false)
	if sess == nil {
		return nil
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return append([]answer.Message(nil), sess.msgs...)
}

// Reset drops a session.
func (s *Store) Reset(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions.Remove(ID(id))
}

// Len is the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions.Len()
}
