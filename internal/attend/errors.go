package attend

import (
	"errors"
	"fmt"

	"github.com/your-org/presence/internal/imaging"
	"github.com/your-org/presence/internal/recognize"
	"github.com/your-org/presence/internal/session"
)

var (
	// ErrInvalidToken means the possession token failed structural checks.
	ErrInvalidToken = errors.New("invalid possession token")

	// ErrIdentityNotFound means the referenced identity is not enrolled.
	ErrIdentityNotFound = errors.New("identity not found")

	// ErrAlreadyMarked means attendance for this identity and date already
	// exists. The first record stands.
	ErrAlreadyMarked = errors.New("attendance already marked for today")

	// ErrInvalidInput covers malformed requests: undecodable images, bad
	// ids, oversized batches.
	ErrInvalidInput = errors.New("invalid input")
)

// MismatchError reports that the face presented against a session resolved
// confidently to a different identity than the token claimed.
type MismatchError struct {
	Expected   string
	Recognized string
	Confidence float64
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("face mismatch: token claims %s, face resolved to %s (confidence %.1f)",
		e.Expected, e.Recognized, e.Confidence)
}

// Machine-readable reason codes, stable across the HTTP surface and the
// per-item reconcile results.
const (
	ReasonNoFace             = "no_face"
	ReasonMultipleFaces      = "multiple_faces"
	ReasonModelUntrained     = "model_untrained"
	ReasonLowLight           = "low_light"
	ReasonLowConfidence      = "low_confidence"
	ReasonIdentityNotFound   = "identity_not_found"
	ReasonMismatch           = "mismatch"
	ReasonSessionExpired     = "session_expired"
	ReasonFaceWithoutToken   = "face_without_token"
	ReasonAlreadyMarked      = "already_marked"
	ReasonInvalidInput       = "invalid_input"
	ReasonPersistenceFailure = "persistence_failure"
)

// Reason maps a verification failure to its reason code. Unrecognized
// errors are persistence/internal failures.
func Reason(err error) string {
	var lowConf *recognize.LowConfidenceError
	var lowLight *imaging.LowLightError
	var mismatch *MismatchError

	switch {
	case errors.Is(err, recognize.ErrNoFace):
		return ReasonNoFace
	case errors.Is(err, recognize.ErrMultipleFace):
		return ReasonMultipleFaces
	case errors.Is(err, recognize.ErrModelUntrained):
		return ReasonModelUntrained
	case errors.As(err, &lowLight):
		return ReasonLowLight
	case errors.As(err, &lowConf):
		return ReasonLowConfidence
	case errors.Is(err, ErrIdentityNotFound), errors.Is(err, recognize.ErrIdentityUnknown):
		return ReasonIdentityNotFound
	case errors.As(err, &mismatch):
		return ReasonMismatch
	case errors.Is(err, session.ErrExpired):
		return ReasonSessionExpired
	case errors.Is(err, session.ErrNotFound):
		return ReasonFaceWithoutToken
	case errors.Is(err, ErrAlreadyMarked):
		return ReasonAlreadyMarked
	case errors.Is(err, ErrInvalidToken), errors.Is(err, ErrInvalidInput):
		return ReasonInvalidInput
	default:
		return ReasonPersistenceFailure
	}
}
