package session

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrNotFound means no open session exists for the identity, so a face
	// presented alone cannot complete verification.
	ErrNotFound = errors.New("no open verification session for identity")

	// ErrExpired means the session's TTL elapsed before the face arrived.
	ErrExpired = errors.New("verification session expired")
)

// Session tracks one identity's progress through two-factor verification.
// Opening a session records the possession token; the face factor flips
// FaceVerified. The deadline is fixed at creation and never renewed.
type Session struct {
	IdentityID    string
	Token         string
	TokenVerified bool
	FaceVerified  bool
	CreatedAt     time.Time
	ExpiresAt     time.Time
}

// Store holds at most one live session per identity, in memory. Sessions
// are intentionally not persisted: a restart invalidates them and clients
// simply re-present their token.
type Store struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]*Session
	now      func() time.Time
}

func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &Store{
		ttl:      ttl,
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Open starts a fresh session for the identity, replacing any existing one.
// Expired sessions across all identities are purged first, so the map never
// accumulates garbage without a background sweeper. Returns the purge count
// alongside the session.
func (s *Store) Open(identityID, token string) (*Session, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	purged := s.purgeExpiredLocked()

	now := s.now()
	sess := &Session{
		IdentityID:    identityID,
		Token:         token,
		TokenVerified: true,
		CreatedAt:     now,
		ExpiresAt:     now.Add(s.ttl),
	}
	s.sessions[identityID] = sess

	cp := *sess
	return &cp, purged
}

// Get returns the identity's live session. An expired session is removed
// and reported as ErrExpired; a missing one as ErrNotFound.
func (s *Store) Get(identityID string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.liveLocked(identityID)
	if err != nil {
		return nil, err
	}
	cp := *sess
	return &cp, nil
}

// MarkFaceVerified records the face factor on the identity's live session
// and removes it: the session is single-use once both factors have passed.
func (s *Store) MarkFaceVerified(identityID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.liveLocked(identityID)
	if err != nil {
		return err
	}
	sess.FaceVerified = true
	delete(s.sessions, identityID)
	return nil
}

// Delete discards the identity's session, if any.
func (s *Store) Delete(identityID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, identityID)
}

// Active returns the number of live (unexpired) sessions.
func (s *Store) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	now := s.now()
	for _, sess := range s.sessions {
		if now.Before(sess.ExpiresAt) {
			count++
		}
	}
	return count
}

func (s *Store) liveLocked(identityID string) (*Session, error) {
	sess, ok := s.sessions[identityID]
	if !ok {
		return nil, ErrNotFound
	}
	if !s.now().Before(sess.ExpiresAt) {
		delete(s.sessions, identityID)
		return nil, ErrExpired
	}
	return sess, nil
}

func (s *Store) purgeExpiredLocked() int {
	now := s.now()
	purged := 0
	for id, sess := range s.sessions {
		if !now.Before(sess.ExpiresAt) {
			delete(s.sessions, id)
			purged++
		}
	}
	return purged
}
