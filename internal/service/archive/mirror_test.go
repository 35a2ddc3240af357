package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/itsmeEn/New-MediSync-sub001/pkg/errors"
)

func TestWriteBothCreatesIdenticalMirrors(t *testing.T) {
	store, err := NewMirrorStore(t.TempDir(), nil)
	require.NoError(t, err)

	id := uuid.New()
	payload := []byte("{\n  \"a\": 1\n}\n")
	require.NoError(t, store.WriteBoth(context.Background(), id, payload))

	doctor, err := os.ReadFile(store.DoctorPath(id))
	require.NoError(t, err)
	nurse, err := os.ReadFile(store.NursePath(id))
	require.NoError(t, err)

	assert.Equal(t, payload, doctor)
	assert.Equal(t, payload, nurse)
}

func TestWriteBothCancelledContextLeavesNothing(t *testing.T) {
	store, err := NewMirrorStore(t.TempDir(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	id := uuid.New()
	err = store.WriteBoth(ctx, id, []byte("{}"))
	assert.True(t, apperrors.Is(err, apperrors.CodeTimeout))

	_, statErr := os.Stat(store.DoctorPath(id))
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(store.NursePath(id))
	assert.True(t, os.IsNotExist(statErr))
}

func TestWriteBothLeavesNoTempFiles(t *testing.T) {
	root := t.TempDir()
	store, err := NewMirrorStore(root, nil)
	require.NoError(t, err)

	require.NoError(t, store.WriteBoth(context.Background(), uuid.New(), []byte("{}")))

	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		assert.NotContains(t, path, ".tmp")
		return nil
	})
	require.NoError(t, err)
}

func TestVerifyAndRepair(t *testing.T) {
	store, err := NewMirrorStore(t.TempDir(), nil)
	require.NoError(t, err)

	id := uuid.New()
	payload := []byte("{}\n")
	require.NoError(t, store.WriteBoth(context.Background(), id, payload))

	nursePath := store.NursePath(id)
	assert.True(t, store.Verify(nursePath, payload))

	require.NoError(t, os.Remove(nursePath))
	assert.False(t, store.Verify(nursePath, payload))

	require.NoError(t, store.Repair(nursePath, payload))
	assert.True(t, store.Verify(nursePath, payload))

	require.NoError(t, os.WriteFile(nursePath, []byte("corrupted"), 0o640))
	assert.False(t, store.Verify(nursePath, payload))

	require.NoError(t, store.Repair(nursePath, payload))
	assert.True(t, store.Verify(nursePath, payload))
}

func TestRemoveBoth(t *testing.T) {
	store, err := NewMirrorStore(t.TempDir(), nil)
	require.NoError(t, err)

	id := uuid.New()
	require.NoError(t, store.WriteBoth(context.Background(), id, []byte("{}")))

	store.RemoveBoth(id)

	_, statErr := os.Stat(store.DoctorPath(id))
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(store.NursePath(id))
	assert.True(t, os.IsNotExist(statErr))
}
