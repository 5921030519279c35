package archive

import (
	"context"
	"errors"
	"fmt"
	"iotd/internal/compression"
	"iotd/internal/models"
	"iotd/internal/providers"
	"iotd/internal/repository"
	"iotd/internal/structures"
	"sort"
	"time"
)

var ErrDeviceNotFound = errors.New("device not found")

type PipelineInterface interface {
	ScheduledArchive(ctx context.Context)
	ArchiveOldData(ctx context.Context, cutoff time.Time) (int, error)
	ArchiveDeviceData(ctx context.Context, deviceID int64, cutoff time.Time) (int, error)
	ArchiveDeviceDay(ctx context.Context, deviceID int64, day time.Time) (bool, error)
	ForceArchive(ctx context.Context, deviceID int64, start, end time.Time) (int, error)
	RetrieveArchivedData(ctx context.Context, deviceID int64, start, end time.Time) ([]models.TelemetrySample, error)
	CleanupOldArchives(ctx context.Context) (int, error)
	GetArchiveStatistics(ctx context.Context) models.ArchiveStatistics
	GetStorageUsage(ctx context.Context) (models.StorageUsage, error)
}

// Pipeline rolls live telemetry up into one compressed blob per device and
// UTC day, and ages blobs out.
type Pipeline struct {
	conf    *structures.ArchiveConfig
	store   repository.Store
	codec   compression.CodecInterface
	cold    *ColdStore
	logger  providers.Logger
	metrics providers.MetricsProviderInterface
	now     func() time.Time
}

// NewPipeline wires the pipeline. cold may be nil, in which case expired
// blobs are dropped instead of spilled to disk.
func NewPipeline(conf *structures.Config, store repository.Store, codec compression.CodecInterface, cold *ColdStore, logger providers.Logger, metrics providers.MetricsProviderInterface) PipelineInterface {
	return &Pipeline{
		conf:    &conf.Archive,
		store:   store,
		codec:   codec,
		cold:    cold,
		logger:  logger,
		metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func dayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (p *Pipeline) ScheduledArchive(ctx context.Context) {
	cutoff := p.now().AddDate(0, 0, -p.conf.ArchiveAfterDays)
	p.logger.Infof(providers.TypeArchive, "Scheduled archive started, cutoff %s", cutoff.Format(time.RFC3339))
	n, err := p.ArchiveOldData(ctx, cutoff)
	if err != nil {
		p.logger.Errorf(providers.TypeArchive, "Scheduled archive failed: %s", err)
		return
	}
	p.logger.Infof(providers.TypeArchive, "Scheduled archive finished, %d archives created", n)
}

// ArchiveOldData archives every device with samples older than cutoff. A
// failing device is logged and skipped.
func (p *Pipeline) ArchiveOldData(ctx context.Context, cutoff time.Time) (int, error) {
	ids, err := p.store.Telemetry().FindDeviceIDsBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("list devices with old telemetry: %w", err)
	}
	total := 0
	for _, id := range ids {
		n, err := p.ArchiveDeviceData(ctx, id, cutoff)
		if err != nil {
			p.logger.Errorf(providers.TypeArchive, "Archiving device %d failed: %s", id, err)
			continue
		}
		total += n
	}
	return total, nil
}

// ArchiveDeviceData archives each UTC day of the device that ends at or
// before cutoff, oldest first. Days are found one index lookup at a time so
// the device's timestamps are never loaded in bulk. A failing day is logged
// and skipped.
func (p *Pipeline) ArchiveDeviceData(ctx context.Context, deviceID int64, cutoff time.Time) (int, error) {
	created := 0
	var from time.Time
	for {
		ts, err := p.store.Telemetry().FindFirstBetween(ctx, deviceID, from, cutoff)
		if errors.Is(err, repository.ErrNotFound) {
			break
		}
		if err != nil {
			return created, fmt.Errorf("list days of device %d: %w", deviceID, err)
		}
		d := dayStart(ts)
		next := d.AddDate(0, 0, 1)
		if next.After(cutoff) {
			break
		}
		from = next

		ok, err := p.ArchiveDeviceDay(ctx, deviceID, d)
		if err != nil {
			p.logger.Errorf(providers.TypeArchive, "Archiving device %d day %s failed: %s", deviceID, d.Format(time.DateOnly), err)
			continue
		}
		if ok {
			created++
		}
	}
	return created, nil
}

// ArchiveDeviceDay compresses the device's samples of [day, day+1) into one
// DAILY blob. Days past the delete threshold lose their live samples in the
// same transaction. Returns false when the day is already covered or empty.
func (p *Pipeline) ArchiveDeviceDay(ctx context.Context, deviceID int64, day time.Time) (bool, error) {
	start := dayStart(day)
	end := start.AddDate(0, 0, 1)
	now := p.now()

	var blob *models.TelemetryArchive
	var deleted int64
	err := p.store.Transaction(ctx, func(tx repository.Store) error {
		covered, err := tx.Archives().IsRangeArchived(ctx, deviceID, start, end)
		if err != nil {
			return err
		}
		if covered {
			return nil
		}

		samples, err := tx.Telemetry().FindByDeviceBetween(ctx, deviceID, start, end)
		if err != nil {
			return err
		}
		if len(samples) == 0 {
			return nil
		}

		var name string
		device, err := tx.Devices().FindByID(ctx, deviceID)
		switch {
		case err == nil:
			name = device.Name
		case !errors.Is(err, repository.ErrNotFound):
			return err
		}

		records := make([]models.ArchiveRecord, len(samples))
		for i, s := range samples {
			records[i] = models.NewArchiveRecord(s, name)
		}
		data, err := p.codec.Encode(records)
		if err != nil {
			return err
		}
		estimated := p.codec.EstimateCompressedSize(records[0]) * len(records)

		a := &models.TelemetryArchive{
			DeviceID:         deviceID,
			DeviceName:       name,
			OriginalCount:    len(records),
			StartDate:        start,
			EndDate:          end,
			ArchivedDate:     now,
			CompressedData:   data,
			CompressionRatio: compression.Ratio(estimated, len(data)),
			ArchiveType:      models.ArchiveDaily,
		}
		if err = tx.Archives().Save(ctx, a); err != nil {
			return err
		}

		if end.Before(now.AddDate(0, 0, -p.conf.DeleteAfterDays)) {
			if deleted, err = tx.Telemetry().DeleteByDeviceBetween(ctx, deviceID, start, end); err != nil {
				return err
			}
		}
		blob = a
		return nil
	})
	if err != nil {
		p.metrics.IncArchiveFailures()
		return false, fmt.Errorf("archive device %d day %s: %w", deviceID, start.Format(time.DateOnly), err)
	}
	if blob == nil {
		return false, nil
	}

	p.metrics.IncArchivesCreated()
	p.metrics.ObserveCompressionRatio(blob.CompressionRatio)
	p.logger.Infof(providers.TypeArchive, "Archived %d samples of device %d for %s (ratio %.3f, %d live samples removed)",
		blob.OriginalCount, deviceID, start.Format(time.DateOnly), blob.CompressionRatio, deleted)
	return true, nil
}

// ForceArchive archives every day from start to end inclusive. The first
// failing day aborts the run.
func (p *Pipeline) ForceArchive(ctx context.Context, deviceID int64, start, end time.Time) (int, error) {
	if _, err := p.store.Devices().FindByID(ctx, deviceID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, fmt.Errorf("device %d: %w", deviceID, ErrDeviceNotFound)
		}
		return 0, err
	}

	created := 0
	last := dayStart(end)
	for d := dayStart(start); !d.After(last); d = d.AddDate(0, 0, 1) {
		ok, err := p.ArchiveDeviceDay(ctx, deviceID, d)
		if err != nil {
			return created, err
		}
		if ok {
			created++
		}
	}
	return created, nil
}

type storedBlob struct {
	id    int64
	start time.Time
	data  []byte
}

// RetrieveArchivedData returns the records of every blob overlapping
// [start, end], spilled blobs included. A blob present in both stores is
// read once. A blob that cannot be decoded
// contributes nothing.
func (p *Pipeline) RetrieveArchivedData(ctx context.Context, deviceID int64, start, end time.Time) ([]models.TelemetrySample, error) {
	archives, err := p.store.Archives().FindOverlapping(ctx, deviceID, start, end)
	if err != nil {
		return nil, fmt.Errorf("find archives of device %d: %w", deviceID, err)
	}
	blobs := make([]storedBlob, 0, len(archives))
	inDB := make(map[int64]struct{}, len(archives))
	for _, a := range archives {
		blobs = append(blobs, storedBlob{id: a.ID, start: a.StartDate, data: a.CompressedData})
		inDB[a.ID] = struct{}{}
	}

	if p.cold != nil {
		entries, err := p.cold.FindOverlapping(deviceID, start, end)
		if err != nil {
			p.logger.Errorf(providers.TypeArchive, "Reading cold archives of device %d failed: %s", deviceID, err)
		}
		for _, e := range entries {
			// spilled but not yet deleted
			if _, ok := inDB[e.ArchiveID]; ok {
				continue
			}
			blobs = append(blobs, storedBlob{id: e.ArchiveID, start: e.StartDate, data: e.CompressedData})
		}
		sort.SliceStable(blobs, func(i, j int) bool { return blobs[i].start.Before(blobs[j].start) })
	}

	out := make([]models.TelemetrySample, 0)
	for _, b := range blobs {
		var records []models.ArchiveRecord
		if err := p.codec.Decode(b.data, &records); err != nil {
			p.logger.Errorf(providers.TypeArchive, "Archive %d of device %d is unreadable: %s", b.id, deviceID, err)
			continue
		}
		for _, r := range records {
			out = append(out, r.Sample())
		}
	}
	return out, nil
}

// CleanupOldArchives removes blobs archived more than maxArchiveDays ago.
// With a cold store configured each blob is spilled first and kept when the
// spill fails.
func (p *Pipeline) CleanupOldArchives(ctx context.Context) (int, error) {
	now := p.now()
	cutoff := now.AddDate(0, 0, -p.conf.MaxArchiveDays)
	expired, err := p.store.Archives().FindArchivedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("list expired archives: %w", err)
	}

	removed := 0
	for i := range expired {
		a := &expired[i]
		if p.cold != nil {
			if err := p.cold.Spill(a, now); err != nil {
				p.logger.Errorf(providers.TypeArchive, "Spilling archive %d failed, kept in database: %s", a.ID, err)
				continue
			}
		}
		if err := p.store.Archives().Delete(ctx, a.ID); err != nil {
			p.logger.Errorf(providers.TypeArchive, "Deleting archive %d failed: %s", a.ID, err)
			continue
		}
		removed++
	}
	p.logger.Infof(providers.TypeArchive, "Cleanup removed %d of %d expired archives", removed, len(expired))
	return removed, nil
}

// GetArchiveStatistics never fails; lookup errors yield zero values.
func (p *Pipeline) GetArchiveStatistics(ctx context.Context) models.ArchiveStatistics {
	stats := models.ArchiveStatistics{Devices: []models.DeviceArchiveStats{}}

	totals, err := p.store.Archives().Totals(ctx)
	if err != nil {
		p.logger.Errorf(providers.TypeArchive, "Archive totals unavailable: %s", err)
		return stats
	}
	stats.TotalArchives = totals.Count
	stats.TotalOriginalRecords = totals.OriginalRecords
	stats.AverageRatio = totals.AverageRatio

	devices, err := p.store.Archives().StatsByDevice(ctx)
	if err != nil {
		p.logger.Errorf(providers.TypeArchive, "Per-device archive statistics unavailable: %s", err)
		return stats
	}
	if devices != nil {
		stats.Devices = devices
	}
	return stats
}

func (p *Pipeline) GetStorageUsage(ctx context.Context) (models.StorageUsage, error) {
	var usage models.StorageUsage

	live, err := p.store.Telemetry().Count(ctx)
	if err != nil {
		return usage, err
	}
	totals, err := p.store.Archives().Totals(ctx)
	if err != nil {
		return usage, err
	}
	usage.LiveSamples = live
	usage.Archives = totals.Count
	usage.ArchivedRecords = totals.OriginalRecords
	usage.CompressedBytes = totals.CompressedBytes
	if p.cold != nil {
		usage.ColdArchiveFiles = p.cold.Files()
	}
	return usage, nil
}
