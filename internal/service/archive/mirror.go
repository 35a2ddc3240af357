package archive

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	apperrors "github.com/itsmeEn/New-MediSync-sub001/pkg/errors"
	"github.com/itsmeEn/New-MediSync-sub001/pkg/metrics"
)

const (
	doctorMirror = "doctor_archives"
	nurseMirror  = "nurse_archives"
)

// MirrorStore owns the two filesystem trees shadowing the relational
// archive table. All writes go through it; nothing else touches the
// directories.
type MirrorStore struct {
	root    string
	metrics *metrics.Metrics
}

func NewMirrorStore(root string, m *metrics.Metrics) (*MirrorStore, error) {
	for _, dir := range []string{doctorMirror, nurseMirror} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create mirror directory: %w", err)
		}
	}
	return &MirrorStore{root: root, metrics: m}, nil
}

func (m *MirrorStore) DoctorPath(id uuid.UUID) string {
	return filepath.Join(m.root, doctorMirror, fmt.Sprintf("archive_%s.json", id))
}

func (m *MirrorStore) NursePath(id uuid.UUID) string {
	return filepath.Join(m.root, nurseMirror, fmt.Sprintf("archive_%s.json", id))
}

// WriteBoth writes the identical payload to both mirrors. On any
// failure every partial file is removed so the caller can abort its
// transaction, keeping the three stores all-or-nothing. Transient
// errors are retried once per mirror. The deadline is checked between
// mirrors.
func (m *MirrorStore) WriteBoth(ctx context.Context, id uuid.UUID, payload []byte) error {
	paths := []struct {
		name string
		path string
	}{
		{doctorMirror, m.DoctorPath(id)},
		{nurseMirror, m.NursePath(id)},
	}

	var written []string
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			m.cleanup(written)
			return apperrors.Timeout(err)
		}

		err := writeFileRetry(p.path, payload)
		if m.metrics != nil {
			status := "ok"
			if err != nil {
				status = "error"
			}
			m.metrics.MirrorWrites.WithLabelValues(p.name, status).Inc()
		}
		if err != nil {
			m.cleanup(append(written, p.path))
			return apperrors.New(apperrors.CodeMirrorWrite, fmt.Sprintf("failed to write %s mirror", p.name), err)
		}
		written = append(written, p.path)
	}
	return nil
}

// RemoveBoth deletes both mirror files, ignoring missing ones.
func (m *MirrorStore) RemoveBoth(id uuid.UUID) {
	os.Remove(m.DoctorPath(id))
	os.Remove(m.NursePath(id))
}

// Verify reports whether the mirror file exists and byte-matches.
func (m *MirrorStore) Verify(path string, expected []byte) bool {
	actual, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return bytes.Equal(actual, expected)
}

// Repair rewrites a mirror file from the relational payload.
func (m *MirrorStore) Repair(path string, payload []byte) error {
	if err := writeFileRetry(path, payload); err != nil {
		return fmt.Errorf("failed to repair mirror %s: %w", path, err)
	}
	if m.metrics != nil {
		m.metrics.MirrorRepairs.Inc()
	}
	return nil
}

func (m *MirrorStore) cleanup(paths []string) {
	for _, p := range paths {
		os.Remove(p)
	}
}

// writeFileRetry writes via a temp file and rename so readers never
// observe a torn file, retrying once on failure.
func writeFileRetry(path string, payload []byte) error {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if lastErr = writeFileAtomic(path, payload); lastErr == nil {
			return nil
		}
	}
	return lastErr
}

func writeFileAtomic(path string, payload []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o640); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
