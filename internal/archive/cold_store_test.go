package archive

import (
	"iotd/internal/models"
	"iotd/internal/structures"
	"iotd/internal/testutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func coldArchive(id, deviceID int64, start time.Time) *models.TelemetryArchive {
	return &models.TelemetryArchive{
		ID:             id,
		DeviceID:       deviceID,
		DeviceName:     "sensor",
		OriginalCount:  2,
		StartDate:      start,
		EndDate:        start.AddDate(0, 0, 1),
		ArchivedDate:   start.AddDate(0, 1, 0),
		CompressedData: []byte{0x28, 0xb5, 0x2f, 0xfd, byte(id)},
		ArchiveType:    models.ArchiveDaily,
	}
}

func TestColdStore_EmptyDir(t *testing.T) {
	cs := NewColdStore(filepath.Join(t.TempDir(), "cold"), &testutil.MockCompressor{}, &testutil.MockLogger{})

	require.NoError(t, cs.RestoreIndex())
	assert.False(t, cs.Has(1, 1))
	assert.Zero(t, cs.Files())

	entries, err := cs.FindOverlapping(1, day0, day0.AddDate(1, 0, 0))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestColdStore_SpillAndFind(t *testing.T) {
	dir := t.TempDir()
	cs := NewColdStore(dir, &testutil.MockCompressor{}, &testutil.MockLogger{})

	require.NoError(t, cs.Spill(coldArchive(3, 1, day0.AddDate(0, 0, 2)), day0))
	require.NoError(t, cs.Spill(coldArchive(1, 1, day0), day0))
	require.NoError(t, cs.Spill(coldArchive(2, 7, day0), day0))

	assert.True(t, cs.Has(1, 1))
	assert.True(t, cs.Has(7, 2))
	assert.False(t, cs.Has(7, 1))
	assert.Equal(t, 2, cs.Files())

	_, err := os.Stat(filepath.Join(dir, "device-1.cold"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "device-1.cold.tmp"))
	assert.True(t, os.IsNotExist(err))

	entries, err := cs.FindOverlapping(1, day0, day0.AddDate(0, 0, 5))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.EqualValues(t, 1, entries[0].ArchiveID)
	assert.EqualValues(t, 3, entries[1].ArchiveID)
	assert.Equal(t, []byte{0x28, 0xb5, 0x2f, 0xfd, 1}, entries[0].CompressedData)

	entries, err = cs.FindOverlapping(1, day0.AddDate(0, 0, 1).Add(time.Hour), day0.AddDate(0, 0, 1).Add(2*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestColdStore_RestoreIndex(t *testing.T) {
	dir := t.TempDir()
	first := NewColdStore(dir, &testutil.MockCompressor{}, &testutil.MockLogger{})
	require.NoError(t, first.Spill(coldArchive(5, 42, day0), day0))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "device-9.cold"), []byte("{broken"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))

	logger := &testutil.MockLogger{}
	second := NewColdStore(dir, &testutil.MockCompressor{}, logger)
	require.NoError(t, second.RestoreIndex())

	assert.True(t, second.Has(42, 5))
	assert.Equal(t, 1, second.Files())
	assert.Equal(t, 1, logger.Count("error", "Skipping cold file"))

	entries, err := second.FindOverlapping(42, day0, day0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "sensor", entries[0].DeviceName)
}

func TestDeviceIDFromPath(t *testing.T) {
	id, ok := deviceIDFromPath("/var/lib/iotd/cold/device-42.cold")
	assert.True(t, ok)
	assert.EqualValues(t, 42, id)

	_, ok = deviceIDFromPath("device-abc.cold")
	assert.False(t, ok)
}

func TestNewColdStoreProvider(t *testing.T) {
	conf := &structures.Config{}
	assert.Nil(t, NewColdStoreProvider(conf, &testutil.MockCompressor{}, &testutil.MockLogger{}))

	conf.Archive.ColdStorageDir = t.TempDir()
	cs := NewColdStoreProvider(conf, &testutil.MockCompressor{}, &testutil.MockLogger{})
	require.NotNil(t, cs)
	assert.Zero(t, cs.Files())
}
