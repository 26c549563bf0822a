package draft

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/efebarandurmaz/replyforge/internal/llm"
)

// MaxTranscriptMessages caps the user and assistant turns kept by a Session.
const MaxTranscriptMessages = 25

// Session tracks one customer query across a draft and its refinements.
// It lives in memory only. It is safe for concurrent use.
type Session struct {
	ID    string
	Query string

	mu        sync.Mutex
	history   []llm.Message
	reply     string
	updatedAt time.Time
}

// NewSession starts a session for query.
func NewSession(query string) *Session {
	return &Session{
		ID:        uuid.NewString(),
		Query:     query,
		updatedAt: time.Now(),
	}
}

// Apply records the outcome of a draft or refinement. Results with no
// history (a cancelled request that produced nothing) leave the session
// unchanged.
func (s *Session) Apply(r *Result) {
	if r == nil || len(r.History) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = slices.Clone(r.History)
	s.reply = r.Text
	s.updatedAt = time.Now()
}

// History returns the full conversation, system message included, for the
// next refinement.
func (s *Session) History() []llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.history)
}

// Transcript returns the user and assistant turns, newest last, capped at
// MaxTranscriptMessages.
func (s *Session) Transcript() []llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, rest := llm.SplitSystem(s.history)
	if len(rest) > MaxTranscriptMessages {
		rest = rest[len(rest)-MaxTranscriptMessages:]
	}
	return rest
}

// Reply returns the latest draft text.
func (s *Session) Reply() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reply
}

// UpdatedAt reports when the session last changed.
func (s *Session) UpdatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}
