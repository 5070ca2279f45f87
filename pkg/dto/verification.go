package dto

import "time"

// OpenSessionRequest presents the possession token.
type OpenSessionRequest struct {
	Token string `json:"token" binding:"required"`
}

type SessionResponse struct {
	IdentityID    string    `json:"identity_id"`
	TokenVerified bool      `json:"token_verified"`
	FaceVerified  bool      `json:"face_verified"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// FaceRequest presents the face factor: a base64-encoded capture.
type FaceRequest struct {
	Image string `json:"image" binding:"required"`
}

type CheckinResponse struct {
	IdentityID string    `json:"identity_id"`
	Name       string    `json:"name"`
	Date       string    `json:"date"`
	CheckInAt  time.Time `json:"check_in_at"`
	Method     string    `json:"method"`
	Confidence float64   `json:"confidence"`
	IsOffline  bool      `json:"is_offline"`
}

// ErrorResponse carries a human-readable error plus a machine-readable
// reason code.
type ErrorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}
