package recognize

import (
	"errors"
	"fmt"
)

var (
	// ErrNoFace means zero faces were detected in the submitted image.
	ErrNoFace = errors.New("no face detected in image")

	// ErrMultipleFace means more than one face was detected; enrollment and
	// classification both require exactly one.
	ErrMultipleFace = errors.New("multiple faces detected in image")

	// ErrModelUntrained means no templates are enrolled yet.
	ErrModelUntrained = errors.New("no faces enrolled in the system")

	// ErrIdentityUnknown means the identity has no enrolled templates.
	ErrIdentityUnknown = errors.New("identity not enrolled")
)

// LowConfidenceError reports a nearest match that fell below the caller's
// confidence threshold. The tentative identity and score are kept for audit.
type LowConfidenceError struct {
	IdentityID string
	Confidence float64
	Threshold  float64
}

func (e *LowConfidenceError) Error() string {
	return fmt.Sprintf("face recognized but confidence too low: %.1f%% (threshold %.1f%%, tentative identity %s)",
		e.Confidence, e.Threshold, e.IdentityID)
}
