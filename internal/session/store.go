// Package session keeps the per-user dashboard state between requests: the
// uploaded table and the current filter selection.
package session

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"skupulse/pkg/contracts/domain"
)

// ErrNotFound is returned for unknown or expired session IDs.
var ErrNotFound = errors.New("session not found")

// Session is the state of one browser or API client.
// Values returned by Store are copies; use Store.Update to change a session.
type Session struct {
	ID         string                `json:"id"`
	FileName   string                `json:"file_name,omitempty"`
	FileSize   int64                 `json:"file_size,omitempty"`
	Table      *domain.Table         `json:"-"`
	TableKey   string                `json:"-"`
	Filter     domain.FilterCriteria `json:"filter"`
	CreatedAt  time.Time             `json:"created_at"`
	UploadedAt time.Time             `json:"uploaded_at,omitempty"`
	LastAccess time.Time             `json:"last_access"`
}

// HasTable reports whether a file has been uploaded in this session.
func (s *Session) HasTable() bool {
	return s.Table != nil
}

// Config controls expiry.
type Config struct {
	TTL           time.Duration
	SweepInterval time.Duration
	MaxSessions   int
}

// Store is an in-memory session store with idle expiry. A background
// goroutine removes expired sessions until Close is called.
type Store struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	ttl         time.Duration
	maxSessions int
	now         func() time.Time
	logger      *slog.Logger

	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewStore creates a store and starts its sweeper.
func NewStore(cfg Config, logger *slog.Logger) *Store {
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Minute
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		sessions:    make(map[string]*Session),
		ttl:         cfg.TTL,
		maxSessions: cfg.MaxSessions,
		now:         time.Now,
		logger:      logger.With(slog.String("component", "session_store")),
		stopChan:    make(chan struct{}),
		done:        make(chan struct{}),
	}
	go s.sweepLoop(cfg.SweepInterval)
	return s
}

// Create starts a new, empty session.
func (s *Store) Create() *Session {
	now := s.now()
	sess := &Session{
		ID:         uuid.NewString(),
		CreatedAt:  now,
		LastAccess: now,
	}

	s.mu.Lock()
	if s.maxSessions > 0 && len(s.sessions) >= s.maxSessions {
		s.evictIdlest()
	}
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	s.logger.Debug("session created", slog.String("session_id", sess.ID))
	copied := *sess
	return &copied
}

// Get returns a copy of the session and refreshes its idle timer.
func (s *Store) Get(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	now := s.now()
	if now.Sub(sess.LastAccess) > s.ttl {
		delete(s.sessions, id)
		return nil, ErrNotFound
	}
	sess.LastAccess = now
	copied := *sess
	return &copied, nil
}

// GetOrCreate returns the session for id, or a new one when id is empty,
// unknown or expired. created reports which happened.
func (s *Store) GetOrCreate(id string) (sess *Session, created bool) {
	if id != "" {
		if existing, err := s.Get(id); err == nil {
			return existing, false
		}
	}
	return s.Create(), true
}

// Update applies fn to the stored session under the store lock.
func (s *Store) Update(id string, fn func(*Session)) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	fn(sess)
	sess.ID = id
	sess.LastAccess = s.now()
	copied := *sess
	return &copied, nil
}

// Delete ends a session. Deleting an unknown session is not an error.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	_, existed := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if existed {
		s.logger.Debug("session deleted", slog.String("session_id", id))
	}
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// GetStats returns store statistics for the health endpoint.
func (s *Store) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	withTable := 0
	for _, sess := range s.sessions {
		if sess.HasTable() {
			withTable++
		}
	}
	return map[string]interface{}{
		"sessions":     len(s.sessions),
		"with_table":   withTable,
		"max_sessions": s.maxSessions,
		"ttl_seconds":  s.ttl.Seconds(),
	}
}

// Sweep removes expired sessions and returns how many were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, sess := range s.sessions {
		if now.Sub(sess.LastAccess) > s.ttl {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Close stops the sweeper and waits for it to exit. It is safe to call more
// than once.
func (s *Store) Close() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
	<-s.done
}

func (s *Store) sweepLoop(interval time.Duration) {
	defer close(s.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.logger.Info("expired sessions removed", slog.Int("count", n))
			}
		case <-s.stopChan:
			return
		}
	}
}

// evictIdlest must be called with mu held.
func (s *Store) evictIdlest() {
	var oldestID string
	var oldest time.Time
	for id, sess := range s.sessions {
		if oldestID == "" || sess.LastAccess.Before(oldest) {
			oldestID, oldest = id, sess.LastAccess
		}
	}
	if oldestID != "" {
		delete(s.sessions, oldestID)
		s.logger.Warn("session limit reached, evicted idlest session", slog.String("session_id", oldestID))
	}
}
