package mcp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	// DefaultSessionIdleTimeout is how long a session of the default store survives without requests.
	DefaultSessionIdleTimeout = 30 * time.Minute
	// DefaultMaxSessions caps the live sessions of the default store.
	DefaultMaxSessions = 1024
)

type SessionStore interface {
	// Issue creates a new session and returns its ID.
	Issue(ctx context.Context) (sessionID string, err error)
	// Delete removes the session from the store.
	Delete(ctx context.Context, sessionID string) (err error)
	// Context returns the session-scoped context.
	Context(ctx context.Context, sessionID string) (sessionCtx context.Context, err error)
}

var _ SessionStore = (*InMemorySessionStore)(nil)

// InMemorySessionStore is an in-memory implementation of SessionStore.
// The zero value keeps sessions until they are deleted.
//
// NOTE: It will only work properly if the server is running on a single process.
type InMemorySessionStore struct {
	_           struct{}
	mu          sync.Mutex
	sessions    map[string]*session
	idleTimeout time.Duration
	maxSessions int
	now         func() time.Time
}

type session struct {
	ctx      context.Context
	cancel   context.CancelFunc
	lastSeen time.Time
}

// InMemorySessionStoreOption configures the InMemorySessionStore.
type InMemorySessionStoreOption func(*InMemorySessionStore)

// InMemorySessionStoreWithIdleTimeout expires sessions that see no request for d. Zero disables expiry.
func InMemorySessionStoreWithIdleTimeout(d time.Duration) InMemorySessionStoreOption {
	return func(s *InMemorySessionStore) {
		s.idleTimeout = d
	}
}

// InMemorySessionStoreWithMaxSessions makes Issue fail with ErrTooManySessions once n sessions are live.
// Zero disables the cap.
func InMemorySessionStoreWithMaxSessions(n int) InMemorySessionStoreOption {
	return func(s *InMemorySessionStore) {
		s.maxSessions = n
	}
}

// NewInMemorySessionStore returns a new InMemorySessionStore.
func NewInMemorySessionStore(options ...InMemorySessionStoreOption) *InMemorySessionStore {
	s := &InMemorySessionStore{}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *InMemorySessionStore) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}

func (s *InMemorySessionStore) expired(v *session, now time.Time) bool {
	return s.idleTimeout > 0 && now.Sub(v.lastSeen) >= s.idleTimeout
}

// sweepLocked drops the expired sessions.
func (s *InMemorySessionStore) sweepLocked(now time.Time) {
	for id, v := range s.sessions {
		if s.expired(v, now) {
			v.cancel()
			delete(s.sessions, id)
		}
	}
}

func (s *InMemorySessionStore) Issue(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions == nil {
		s.sessions = make(map[string]*session)
	}
	now := s.clock()
	s.sweepLocked(now)
	if s.maxSessions > 0 && len(s.sessions) >= s.maxSessions {
		return "", fmt.Errorf("%d sessions live: %w", len(s.sessions), ErrTooManySessions)
	}

	id := ulid.Make().String()
	if _, ok := s.sessions[id]; ok {
		return "", fmt.Errorf("session '%s' already issued", id)
	}
	sessionCtx, cancel := context.WithCancel(context.Background())
	s.sessions[id] = &session{ctx: sessionCtx, cancel: cancel, lastSeen: now}
	return id, nil
}

func (s *InMemorySessionStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}
	v.cancel()
	delete(s.sessions, sessionID)
	return nil
}

// Context returns the session-scoped context and marks the session as active.
func (s *InMemorySessionStore) Context(_ context.Context, sessionID string) (context.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session '%s': %w", sessionID, ErrSessionNotFound)
	}
	now := s.clock()
	if s.expired(v, now) {
		v.cancel()
		delete(s.sessions, sessionID)
		return nil, fmt.Errorf("session '%s' expired: %w", sessionID, ErrSessionNotFound)
	}
	v.lastSeen = now
	return v.ctx, nil
}

// Len returns the number of sessions held, expired ones included until they are swept.
func (s *InMemorySessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
