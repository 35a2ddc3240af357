package archive

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsmeEn/New-MediSync-sub001/internal/model"
)

func TestCanonicalizeSortsKeys(t *testing.T) {
	out, err := Canonicalize([]byte(`{"b": 1, "a": 2, "c": {"z": true, "y": false}}`))
	require.NoError(t, err)

	text := string(out)
	assert.Less(t, strings.Index(text, `"a"`), strings.Index(text, `"b"`))
	assert.Less(t, strings.Index(text, `"b"`), strings.Index(text, `"c"`))
	assert.Less(t, strings.Index(text, `"y"`), strings.Index(text, `"z"`))
}

func TestCanonicalizeStableAcrossKeyOrder(t *testing.T) {
	first, err := Canonicalize([]byte(`{"b": 1, "a": [1, 2, {"k": "v"}]}`))
	require.NoError(t, err)
	second, err := Canonicalize([]byte(`{"a": [1, 2, {"k": "v"}], "b": 1}`))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestCanonicalizePreservesNumberForm(t *testing.T) {
	out, err := Canonicalize([]byte(`{"big": 12345678901234567890, "dec": 0.10}`))
	require.NoError(t, err)

	assert.Contains(t, string(out), "12345678901234567890")
	assert.Contains(t, string(out), "0.10")
}

func TestCanonicalizeIndentAndTrailingNewline(t *testing.T) {
	out, err := Canonicalize([]byte(`{"a": {"b": 1}}`))
	require.NoError(t, err)

	expected := "{\n  \"a\": {\n    \"b\": 1\n  }\n}\n"
	assert.Equal(t, expected, string(out))
}

func TestCanonicalizeEmptyContainers(t *testing.T) {
	out, err := Canonicalize([]byte(`{"arr": [], "obj": {}}`))
	require.NoError(t, err)

	assert.Contains(t, string(out), `"arr": []`)
	assert.Contains(t, string(out), `"obj": {}`)
}

func TestCanonicalizeRejectsInvalidJSON(t *testing.T) {
	_, err := Canonicalize([]byte(`{"a":`))
	assert.Error(t, err)
}

func TestCanonicalizeRecordZoneIndependent(t *testing.T) {
	when := time.Date(2025, 3, 1, 8, 0, 0, 123456000, time.UTC)
	rec := &model.ArchiveRecord{
		ID:             uuid.New(),
		PatientID:      uuid.New(),
		PatientName:    "Maria Santos",
		AssessmentType: "triage",
		Diagnostics:    []byte(`{}`),
		AssessmentData: []byte(`{"archived": true}`),
		LastAssessedAt: when,
		CreatedAt:      when,
		UpdatedAt:      when,
	}

	utc, err := CanonicalizeRecord(rec)
	require.NoError(t, err)

	// A row read back through lib/pq carries a fixed numeric zone
	// rather than the UTC location. The canonical bytes must not
	// change.
	shifted := *rec
	shifted.LastAssessedAt = when.In(time.FixedZone("", 0))
	shifted.CreatedAt = when.In(time.FixedZone("", 8*3600))
	shifted.UpdatedAt = when.In(time.FixedZone("", -5*3600))

	fromShifted, err := CanonicalizeRecord(&shifted)
	require.NoError(t, err)
	assert.Equal(t, utc, fromShifted)
}
