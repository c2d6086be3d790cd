package evidence

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vietanhdev/kirapilot-app-sub002/internal/cryptoutil"
)

const signaturePrefix = "hmac-sha256:"

// Signer seals interaction rows with an HMAC-SHA256 over their JSON form,
// so edits made outside the store show up on Verify.
type Signer struct {
	key []byte
}

// NewSigner accepts raw or hex key material of at least
// cryptoutil.MinKeyBytes bytes.
func NewSigner(key string) (*Signer, error) {
	keyBytes, err := cryptoutil.DecodeKey(key)
	if err != nil {
		return nil, fmt.Errorf("signing key %w", err)
	}
	return &Signer{key: keyBytes}, nil
}

// Fingerprint identifies the signing key in logs and config output.
func (s *Signer) Fingerprint() string { return cryptoutil.Fingerprint(s.key) }

// rowDigest is the MAC of row with its Signature field cleared.
func (s *Signer) rowDigest(row Row) ([]byte, error) {
	row.Signature = ""
	payload, err := json.Marshal(row)
	if err != nil {
		return nil, fmt.Errorf("marshaling row %s: %w", row.ID, err)
	}
	mac := hmac.New(sha256.New, s.key)
	mac.Write(payload)
	return mac.Sum(nil), nil
}

// SignRow sets row.Signature.
func (s *Signer) SignRow(row *Row) error {
	digest, err := s.rowDigest(*row)
	if err != nil {
		return err
	}
	row.Signature = signaturePrefix + hex.EncodeToString(digest)
	return nil
}

// VerifyRow reports whether row.Signature matches the row contents. Rows
// with a missing or malformed signature fail.
func (s *Signer) VerifyRow(row Row) (bool, error) {
	encoded, ok := strings.CutPrefix(row.Signature, signaturePrefix)
	if !ok {
		return false, nil
	}
	got, err := hex.DecodeString(encoded)
	if err != nil {
		return false, nil
	}
	want, err := s.rowDigest(row)
	if err != nil {
		return false, err
	}
	return hmac.Equal(got, want), nil
}
