package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"gwgp-assistant-backend/internal/metrics"
	"gwgp-assistant-backend/internal/session"
)

// NewID returns a fresh session ID.
func NewID() string { return uuid.NewString() }

// ValidID reports whether id looks like one of ours. Anything else is
// replaced so clients cannot mint unbounded sessions with junk keys.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Session is one browser session: a request machine per page plus the
// voice conversation.
type Session struct {
	ID           string
	conversation *session.Conversation

	mu       sync.Mutex
	machines map[session.Page]*session.Machine
	lastSeen time.Time
	conns    int
}

// Machine returns the page's machine, creating it on first use. The
// voice page shares the conversation's machine.
func (s *Session) Machine(page session.Page) *session.Machine {
	if page == session.PageVoice {
		return s.conversation.Machine()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.machines[page]
	if !ok {
		m = session.NewMachine(page)
		s.machines[page] = m
	}
	return m
}

func (s *Session) Conversation() *session.Conversation { return s.conversation }

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Attach marks a long-lived connection (the voice WebSocket) as using
// the session. Attached sessions are never pruned. Call detach when the
// connection closes.
func (s *Session) Attach() (detach func()) {
	s.mu.Lock()
	s.conns++
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.conns--
			s.lastSeen = time.Now()
			s.mu.Unlock()
		})
	}
}

func (s *Session) busy() bool {
	if s.conversation.Machine().Busy() {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conns > 0 {
		return true
	}
	for _, m := range s.machines {
		if m.Busy() {
			return true
		}
	}
	return false
}

// MemoryStore keeps sessions in process memory and forgets them after
// ttl without activity.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time

	responder  session.Responder
	errorReply string
}

func NewMemoryStore(ttl time.Duration, responder session.Responder, errorReply string) *MemoryStore {
	return &MemoryStore{
		sessions:   make(map[string]*Session),
		ttl:        ttl,
		now:        time.Now,
		responder:  responder,
		errorReply: errorReply,
	}
}

// Get returns the session for id, creating it when missing.
func (m *MemoryStore) Get(id string) *Session {
	now := m.now()
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		s.touch(now)
		return s
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		s.touch(now)
		return s
	}
	s = &Session{
		ID:           id,
		conversation: session.NewConversation(m.responder, m.errorReply),
		machines:     make(map[session.Page]*session.Machine),
		lastSeen:     now,
	}
	m.sessions[id] = s
	metrics.ActiveSessions.Set(float64(len(m.sessions)))
	return s
}

// Lookup returns an existing session without creating one.
func (m *MemoryStore) Lookup(id string) (*Session, bool) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		s.touch(m.now())
	}
	return s, ok
}

func (m *MemoryStore) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	metrics.ActiveSessions.Set(float64(len(m.sessions)))
}

func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Prune drops sessions idle past the TTL. Sessions with a request in
// flight or an attached connection are kept. It returns how many were removed.
func (m *MemoryStore) Prune() int {
	if m.ttl <= 0 {
		return 0
	}
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, s := range m.sessions {
		if now.Sub(s.idleSince()) > m.ttl && !s.busy() {
			delete(m.sessions, id)
			n++
		}
	}
	metrics.ActiveSessions.Set(float64(len(m.sessions)))
	return n
}

// RunJanitor prunes every interval until ctx is done.
func (m *MemoryStore) RunJanitor(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.Prune()
		}
	}
}
