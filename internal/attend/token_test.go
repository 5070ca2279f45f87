package attend

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseToken(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		wantID  string
		wantErr bool
	}{
		{"long token truncates to 15", "alice-000000001-secret-suffix", "alice-000000001", false},
		{"exactly 15 chars", "alice-000000001", "alice-000000001", false},
		{"short but valid", "bob-567890", "bob-567890", false},
		{"minimum length", "abcdefghij", "abcdefghij", false},
		{"too short", "abc123", "", true},
		{"empty", "", "", true},
		{"malformed id chars", "alice 000000001xx", "", true},
		{"id with separator chars", "id_01-ABCdef789xyz", "id_01-ABCdef789", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := ParseToken(tt.token)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidToken)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.wantID, id)
		})
	}
}
