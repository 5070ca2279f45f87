package models

import (
	"time"

	"github.com/google/uuid"
)

type NotificationStatus string

const (
	NotificationPending NotificationStatus = "pending"
	NotificationSent    NotificationStatus = "sent"
	NotificationFailed  NotificationStatus = "failed"
)

// Notification is a queued outbound message with an observable delivery
// status and a bounded attempt count.
type Notification struct {
	ID        uuid.UUID          `json:"id" db:"id"`
	Recipient string             `json:"recipient" db:"recipient"`
	Subject   string             `json:"subject" db:"subject"`
	Body      string             `json:"body" db:"body"`
	Status    NotificationStatus `json:"status" db:"status"`
	Attempts  int                `json:"attempts" db:"attempts"`
	LastError string             `json:"last_error,omitempty" db:"last_error"`
	CreatedAt time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt time.Time          `json:"updated_at" db:"updated_at"`
}

// NotificationTask is the message published to NATS for dispatcher workers.
type NotificationTask struct {
	NotificationID uuid.UUID `json:"notification_id"`
}
