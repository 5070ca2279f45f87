package dto

import "github.com/your-org/presence/internal/models"

// WSEvent is the envelope broadcast to WebSocket subscribers.
type WSEvent struct {
	Type    string              `json:"type"`
	Checkin models.CheckinEvent `json:"checkin"`
}
