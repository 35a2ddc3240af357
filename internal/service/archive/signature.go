package archive

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	apperrors "github.com/itsmeEn/New-MediSync-sub001/pkg/errors"
)

// Signer verifies HMAC-SHA256 signatures over canonical
// assessment_data. With no key configured, verification is a no-op
// (dev mode).
type Signer struct {
	key []byte
}

func NewSigner(key string) *Signer {
	if key == "" {
		return &Signer{}
	}
	return &Signer{key: []byte(key)}
}

func (s *Signer) Enabled() bool { return len(s.key) > 0 }

// Sign computes the hex signature over canonical assessment data.
func (s *Signer) Sign(assessmentData []byte) (string, error) {
	canonical, err := Canonicalize(assessmentData)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, s.key)
	mac.Write(canonical)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Verify recomputes the signature and compares in constant time.
func (s *Signer) Verify(assessmentData []byte, signature string) error {
	if !s.Enabled() {
		return nil
	}
	if signature == "" {
		return apperrors.New(apperrors.CodeBadSignature, "signature required", nil)
	}

	canonical, err := Canonicalize(assessmentData)
	if err != nil {
		return apperrors.Validation("assessment_data is not valid JSON", err)
	}

	mac := hmac.New(sha256.New, s.key)
	mac.Write(canonical)
	expected := mac.Sum(nil)

	supplied, err := hex.DecodeString(signature)
	if err != nil || !hmac.Equal(expected, supplied) {
		return apperrors.New(apperrors.CodeBadSignature, "signature verification failed", nil)
	}
	return nil
}
