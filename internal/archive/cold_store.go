package archive

import (
	"fmt"
	"iotd/internal/compression"
	"iotd/internal/models"
	"iotd/internal/providers"
	"iotd/internal/structures"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
)

const coldFileSuffix = ".cold"

// ColdEntry is an archive blob moved out of the database.
type ColdEntry struct {
	ArchiveID        int64     `json:"archive_id"`
	DeviceID         int64     `json:"device_id"`
	DeviceName       string    `json:"device_name"`
	OriginalCount    int       `json:"original_count"`
	StartDate        time.Time `json:"start_date"`
	EndDate          time.Time `json:"end_date"`
	ArchivedDate     time.Time `json:"archived_date"`
	CompressedData   []byte    `json:"data"`
	CompressionRatio float64   `json:"compression_ratio"`
	SpilledAt        time.Time `json:"spilled_at"`
}

// ColdFile is the on-disk format holding every spilled blob of one device.
type ColdFile struct {
	Entries map[string]*ColdEntry `json:"entries"`
}

type coldRange struct {
	start time.Time
	end   time.Time
}

// ColdStore keeps expired archive blobs on disk, one file per device. Only
// the date ranges are held in memory; files are read on demand.
type ColdStore struct {
	mu         sync.RWMutex
	dir        string
	index      map[int64]map[int64]coldRange // device → archive id → range
	compressor compression.CompressorInterface
	logger     providers.Logger
}

func NewColdStore(dir string, compressor compression.CompressorInterface, logger providers.Logger) *ColdStore {
	return &ColdStore{
		dir:        dir,
		index:      make(map[int64]map[int64]coldRange),
		compressor: compressor,
		logger:     logger,
	}
}

// NewColdStoreProvider returns nil when no cold storage directory is
// configured; expired archives are then deleted outright.
func NewColdStoreProvider(conf *structures.Config, compressor compression.CompressorInterface, logger providers.Logger) *ColdStore {
	if conf.Archive.ColdStorageDir == "" {
		return nil
	}
	return NewColdStore(conf.Archive.ColdStorageDir, compressor, logger)
}

// Spill adds the blob to its device file and rewrites the file atomically.
func (cs *ColdStore) Spill(a *models.TelemetryArchive, now time.Time) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	cf, err := cs.loadColdFile(a.DeviceID)
	if err != nil {
		return err
	}
	if cf == nil {
		cf = &ColdFile{Entries: make(map[string]*ColdEntry)}
	}
	cf.Entries[strconv.FormatInt(a.ID, 10)] = &ColdEntry{
		ArchiveID:        a.ID,
		DeviceID:         a.DeviceID,
		DeviceName:       a.DeviceName,
		OriginalCount:    a.OriginalCount,
		StartDate:        a.StartDate.UTC(),
		EndDate:          a.EndDate.UTC(),
		ArchivedDate:     a.ArchivedDate.UTC(),
		CompressedData:   a.CompressedData,
		CompressionRatio: a.CompressionRatio,
		SpilledAt:        now.UTC(),
	}
	if err := cs.writeColdFile(a.DeviceID, cf); err != nil {
		return err
	}

	if cs.index[a.DeviceID] == nil {
		cs.index[a.DeviceID] = make(map[int64]coldRange)
	}
	cs.index[a.DeviceID][a.ID] = coldRange{start: a.StartDate.UTC(), end: a.EndDate.UTC()}
	return nil
}

// Has reports whether an archive of the device has been spilled.
func (cs *ColdStore) Has(deviceID, archiveID int64) bool {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	_, ok := cs.index[deviceID][archiveID]
	return ok
}

// FindOverlapping returns spilled entries with start <= end && entry end >= start,
// ordered by start.
func (cs *ColdStore) FindOverlapping(deviceID int64, start, end time.Time) ([]ColdEntry, error) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	ids := make(map[string]struct{})
	for id, r := range cs.index[deviceID] {
		if !r.start.After(end) && !r.end.Before(start) {
			ids[strconv.FormatInt(id, 10)] = struct{}{}
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	cf, err := cs.loadColdFile(deviceID)
	if err != nil || cf == nil {
		return nil, err
	}
	out := make([]ColdEntry, 0, len(ids))
	for id := range ids {
		if e, ok := cf.Entries[id]; ok {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}

// Files is the number of device files currently indexed.
func (cs *ColdStore) Files() int {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return len(cs.index)
}

// RestoreIndex scans the directory and rebuilds the in-memory index.
// Called once at startup.
func (cs *ColdStore) RestoreIndex() error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if err := os.MkdirAll(cs.dir, 0755); err != nil {
		return err
	}
	files, err := filepath.Glob(filepath.Join(cs.dir, "device-*"+coldFileSuffix))
	if err != nil {
		return err
	}

	for _, file := range files {
		deviceID, ok := deviceIDFromPath(file)
		if !ok {
			continue
		}
		cf, err := cs.loadColdFile(deviceID)
		if err != nil {
			cs.logger.Errorf(providers.TypeArchive, "Skipping cold file %s: %s", file, err)
			continue
		}
		if cf == nil {
			continue
		}
		idx := make(map[int64]coldRange, len(cf.Entries))
		for _, e := range cf.Entries {
			idx[e.ArchiveID] = coldRange{start: e.StartDate, end: e.EndDate}
		}
		cs.index[deviceID] = idx
	}
	return nil
}

// loadColdFile returns nil without error when the device has no file.
// Must be called with cs.mu held.
func (cs *ColdStore) loadColdFile(deviceID int64) (*ColdFile, error) {
	path := cs.coldFilePath(deviceID)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	raw, err := cs.compressor.Decompress(data)
	if err != nil {
		return nil, fmt.Errorf("decompress %s: %w", path, err)
	}
	var cf ColdFile
	if err := json.Unmarshal(raw, &cf); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if cf.Entries == nil {
		cf.Entries = make(map[string]*ColdEntry)
	}
	return &cf, nil
}

func (cs *ColdStore) writeColdFile(deviceID int64, cf *ColdFile) error {
	jsonData, err := json.Marshal(cf)
	if err != nil {
		return err
	}
	data, err := cs.compressor.Compress(jsonData)
	if err != nil {
		return err
	}

	path := cs.coldFilePath(deviceID)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	tmpFile := path + ".tmp"
	file, err := os.Create(tmpFile)
	if err != nil {
		return err
	}
	if _, err = file.Write(data); err != nil {
		file.Close()
		os.Remove(tmpFile)
		return err
	}
	if err = file.Sync(); err != nil {
		file.Close()
		os.Remove(tmpFile)
		return err
	}
	if err = file.Close(); err != nil {
		os.Remove(tmpFile)
		return err
	}
	return os.Rename(tmpFile, path)
}

func (cs *ColdStore) coldFilePath(deviceID int64) string {
	return filepath.Join(cs.dir, "device-"+strconv.FormatInt(deviceID, 10)+coldFileSuffix)
}

// "device-42.cold" → 42
func deviceIDFromPath(path string) (int64, bool) {
	name := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(path), "device-"), coldFileSuffix)
	id, err := strconv.ParseInt(name, 10, 64)
	return id, err == nil && id > 0
}
