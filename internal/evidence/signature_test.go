package evidence

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSigner_RejectsShortKey(t *testing.T) {
	_, err := NewSigner("short")
	assert.ErrorContains(t, err, "signing key")
}

func TestSigner_RowRoundTrip(t *testing.T) {
	s, err := NewSigner(testSigningKey)
	require.NoError(t, err)

	row := &Row{ID: "int_sig", UserMessage: "plan my week", AIResponse: "Sure."}
	require.NoError(t, s.SignRow(row))
	assert.True(t, strings.HasPrefix(row.Signature, signaturePrefix))

	ok, err := s.VerifyRow(*row)
	require.NoError(t, err)
	assert.True(t, ok)

	tampered := *row
	tampered.AIResponse = "No."
	ok, err = s.VerifyRow(tampered)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSigner_VerifyRowMalformed(t *testing.T) {
	s, err := NewSigner(testSigningKey)
	require.NoError(t, err)
	for _, sig := range []string{"", "sha1:abcd", signaturePrefix + "zz"} {
		ok, err := s.VerifyRow(Row{ID: "int_bad", Signature: sig})
		require.NoError(t, err)
		assert.False(t, ok, sig)
	}
}

func TestSigner_KeysDiffer(t *testing.T) {
	a, err := NewSigner(testSigningKey)
	require.NoError(t, err)
	b, err := NewSigner(strings.Repeat("k", 32))
	require.NoError(t, err)
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())

	row := &Row{ID: "int_k"}
	require.NoError(t, a.SignRow(row))
	ok, err := b.VerifyRow(*row)
	require.NoError(t, err)
	assert.False(t, ok)
}
