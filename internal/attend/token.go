package attend

import (
	"fmt"
	"regexp"
)

const (
	tokenMinLength   = 10
	tokenIdentityLen = 15
)

var identityIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ParseToken validates a possession token and extracts the identity id it
// claims: the first 15 characters, or the whole token when shorter.
func ParseToken(token string) (string, error) {
	if len(token) < tokenMinLength {
		return "", fmt.Errorf("token shorter than %d characters: %w", tokenMinLength, ErrInvalidToken)
	}

	identityID := token
	if len(identityID) > tokenIdentityLen {
		identityID = identityID[:tokenIdentityLen]
	}

	if !identityIDPattern.MatchString(identityID) {
		return "", fmt.Errorf("token carries malformed identity id: %w", ErrInvalidToken)
	}
	return identityID, nil
}
