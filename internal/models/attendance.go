package models

import (
	"time"

	"github.com/google/uuid"
)

// Method tags how an attendance record was verified.
type Method string

const (
	MethodDirectFace Method = "direct_face"
	MethodTokenFace  Method = "token_face"
	MethodOffline    Method = "offline"
)

// AttendanceRecord is one committed check-in. Unique per (identity, date);
// a second commit for the same identity on the same day is rejected, not
// overwritten.
type AttendanceRecord struct {
	ID         uuid.UUID `json:"id" db:"id"`
	IdentityID string    `json:"identity_id" db:"identity_id"`
	Name       string    `json:"name" db:"name"`
	Date       time.Time `json:"date" db:"date"`
	CheckInAt  time.Time `json:"check_in_at" db:"check_in_at"`
	Method     Method    `json:"method" db:"method"`
	Confidence float64   `json:"confidence" db:"confidence"`
	IsOffline  bool      `json:"is_offline" db:"is_offline"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// CheckinEvent is published to NATS when an attendance record commits, and
// broadcast to WebSocket subscribers.
type CheckinEvent struct {
	IdentityID string    `json:"identity_id"`
	Name       string    `json:"name"`
	Date       string    `json:"date"`
	CheckInAt  time.Time `json:"check_in_at"`
	Method     Method    `json:"method"`
	Confidence float64   `json:"confidence"`
	IsOffline  bool      `json:"is_offline"`
}
