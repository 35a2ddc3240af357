package archive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/itsmeEn/New-MediSync-sub001/pkg/errors"
)

func TestSignerRoundTrip(t *testing.T) {
	signer := NewSigner("k")
	data := []byte(`{"vitals": {"bp": "120/80"}, "archived": false}`)

	sig, err := signer.Sign(data)
	require.NoError(t, err)

	assert.NoError(t, signer.Verify(data, sig))
}

func TestSignerIgnoresKeyOrder(t *testing.T) {
	signer := NewSigner("k")

	sig, err := signer.Sign([]byte(`{"a": 1, "b": 2}`))
	require.NoError(t, err)

	// Same document, different key order.
	assert.NoError(t, signer.Verify([]byte(`{"b": 2, "a": 1}`), sig))
}

func TestSignerRejectsTamperedData(t *testing.T) {
	signer := NewSigner("k")
	data := []byte(`{"vitals": "ok"}`)

	sig, err := signer.Sign(data)
	require.NoError(t, err)

	err = signer.Verify([]byte(`{"vitals": "OK"}`), sig)
	assert.True(t, apperrors.Is(err, apperrors.CodeBadSignature))
}

func TestSignerRejectsTamperedSignature(t *testing.T) {
	signer := NewSigner("k")
	data := []byte(`{"vitals": "ok"}`)

	sig, err := signer.Sign(data)
	require.NoError(t, err)

	flipped := []byte(sig)
	if flipped[0] == 'a' {
		flipped[0] = 'b'
	} else {
		flipped[0] = 'a'
	}

	err = signer.Verify(data, string(flipped))
	assert.True(t, apperrors.Is(err, apperrors.CodeBadSignature))
}

func TestSignerRequiresSignatureWhenEnabled(t *testing.T) {
	signer := NewSigner("k")

	err := signer.Verify([]byte(`{}`), "")
	assert.True(t, apperrors.Is(err, apperrors.CodeBadSignature))
}

func TestSignerDisabledWithoutKey(t *testing.T) {
	signer := NewSigner("")

	assert.False(t, signer.Enabled())
	assert.NoError(t, signer.Verify([]byte(`{}`), ""))
	assert.NoError(t, signer.Verify([]byte(`{}`), "bogus"))
}
