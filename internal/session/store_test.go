package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestStore(ttl time.Duration) (*Store, *time.Time) {
	s := NewStore(ttl)
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	return s, &now
}

func TestOpenAndGet(t *testing.T) {
	s, now := newTestStore(60 * time.Second)

	sess, purged := s.Open("alice-0000000001", "alice-0000000001-secret")
	require.Zero(t, purged)
	require.True(t, sess.TokenVerified)
	require.False(t, sess.FaceVerified)
	require.Equal(t, now.Add(60*time.Second), sess.ExpiresAt)

	got, err := s.Get("alice-0000000001")
	require.NoError(t, err)
	require.Equal(t, sess.Token, got.Token)
}

func TestGetMissing(t *testing.T) {
	s, _ := newTestStore(60 * time.Second)

	_, err := s.Get("nobody")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestExpiryIsFixedAtCreation(t *testing.T) {
	s, now := newTestStore(60 * time.Second)
	s.Open("alice", "alice-token-12345")

	// Reads do not slide the deadline.
	*now = now.Add(59 * time.Second)
	_, err := s.Get("alice")
	require.NoError(t, err)

	*now = now.Add(2 * time.Second)
	_, err = s.Get("alice")
	require.ErrorIs(t, err, ErrExpired)

	// The expired session is gone; the next read is a plain miss.
	_, err = s.Get("alice")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestReopenReplacesSession(t *testing.T) {
	s, now := newTestStore(60 * time.Second)

	s.Open("alice", "first-token-1234")
	*now = now.Add(30 * time.Second)
	sess, _ := s.Open("alice", "second-token-1234")

	require.Equal(t, "second-token-1234", sess.Token)
	require.Equal(t, now.Add(60*time.Second), sess.ExpiresAt)
	require.Equal(t, 1, s.Active())
}

func TestOpenPurgesExpired(t *testing.T) {
	s, now := newTestStore(60 * time.Second)

	s.Open("alice", "alice-token-1234")
	s.Open("bob", "bob-token-123456")
	*now = now.Add(2 * time.Minute)

	_, purged := s.Open("carol", "carol-token-1234")
	require.Equal(t, 2, purged)
	require.Equal(t, 1, s.Active())
}

func TestMarkFaceVerifiedConsumesSession(t *testing.T) {
	s, _ := newTestStore(60 * time.Second)
	s.Open("alice", "alice-token-1234")

	require.NoError(t, s.MarkFaceVerified("alice"))

	// Single use: the completed session cannot be replayed.
	_, err := s.Get("alice")
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, s.MarkFaceVerified("alice"), ErrNotFound)
}

func TestMarkFaceVerifiedExpired(t *testing.T) {
	s, now := newTestStore(60 * time.Second)
	s.Open("alice", "alice-token-1234")
	*now = now.Add(61 * time.Second)

	require.ErrorIs(t, s.MarkFaceVerified("alice"), ErrExpired)
}

func TestDelete(t *testing.T) {
	s, _ := newTestStore(60 * time.Second)
	s.Open("alice", "alice-token-1234")

	s.Delete("alice")
	_, err := s.Get("alice")
	require.ErrorIs(t, err, ErrNotFound)
}
