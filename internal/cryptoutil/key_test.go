package cryptoutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeKey(t *testing.T) {
	hexKey := strings.Repeat("a1", 32)
	tests := []struct {
		name    string
		key     string
		wantLen int
		wantErr string
	}{
		{"raw 32", "abcdefghijklmnopqrstuvwxyz012345", 32, ""},
		{"hex 64 decodes", hexKey, 32, ""},
		{"uppercase hex", strings.ToUpper(hexKey), 32, ""},
		{"odd length hex stays raw", hexKey + "a", 65, ""},
		{"non-hex 64 stays raw", strings.Repeat("g", 64), 64, ""},
		{"too short", "abc", 0, "got 3"},
		{"empty", "", 0, "at least 32 bytes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeKey(tt.key)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Len(t, got, tt.wantLen)
		})
	}
}

func TestIsHex(t *testing.T) {
	assert.True(t, isHex("DeAdBeEf0123456789"))
	assert.False(t, isHex("0123abcg"))
	assert.False(t, isHex("abcd\n"))
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint([]byte("key-one-key-one-key-one-key-one!"))
	b := Fingerprint([]byte("key-two-key-two-key-two-key-two!"))
	assert.Len(t, a, 8)
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, Fingerprint([]byte("key-one-key-one-key-one-key-one!")))
}
