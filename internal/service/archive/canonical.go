package archive

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/itsmeEn/New-MediSync-sub001/internal/model"
)

// Canonical JSON: UTF-8, keys sorted lexicographically, 2-space
// indent, numbers kept in their original decimal form. Byte equality
// of two canonical documents implies semantic equality, which is what
// the mirror invariant and the HMAC check rely on.

// Canonicalize re-encodes a JSON document into canonical form.
func Canonicalize(raw []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var value interface{}
	if err := dec.Decode(&value); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}

	var buf bytes.Buffer
	if err := writeCanonical(&buf, value, 0); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// CanonicalizeRecord serializes the full archive record payload.
// Timestamps are pinned to UTC so a row read back through a driver
// that attaches a fixed numeric zone still canonicalizes to the same
// bytes.
func CanonicalizeRecord(rec *model.ArchiveRecord) ([]byte, error) {
	pinned := *rec
	pinned.LastAssessedAt = pinned.LastAssessedAt.UTC()
	pinned.CreatedAt = pinned.CreatedAt.UTC()
	pinned.UpdatedAt = pinned.UpdatedAt.UTC()

	plain, err := json.Marshal(&pinned)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record: %w", err)
	}
	return Canonicalize(plain)
}

func writeCanonical(buf *bytes.Buffer, value interface{}, depth int) error {
	switch v := value.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		buf.WriteString(strconv.FormatBool(v))
	case json.Number:
		buf.WriteString(v.String())
	case string:
		encoded, err := json.Marshal(v)
		if err != nil {
			return err
		}
		buf.Write(encoded)
	case []interface{}:
		if len(v) == 0 {
			buf.WriteString("[]")
			return nil
		}
		buf.WriteByte('[')
		for i, item := range v {
			if i > 0 {
				buf.WriteByte(',')
			}
			newlineIndent(buf, depth+1)
			if err := writeCanonical(buf, item, depth+1); err != nil {
				return err
			}
		}
		newlineIndent(buf, depth)
		buf.WriteByte(']')
	case map[string]interface{}:
		if len(v) == 0 {
			buf.WriteString("{}")
			return nil
		}
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			newlineIndent(buf, depth+1)
			encoded, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(encoded)
			buf.WriteString(": ")
			if err := writeCanonical(buf, v[k], depth+1); err != nil {
				return err
			}
		}
		newlineIndent(buf, depth)
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unsupported JSON value %T", value)
	}
	return nil
}

func newlineIndent(buf *bytes.Buffer, depth int) {
	buf.WriteByte('\n')
	for i := 0; i < depth; i++ {
		buf.WriteString("  ")
	}
}
