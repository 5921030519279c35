package controllers

import (
	"context"
	"encoding/json"
	"iotd/internal/archive"
	"iotd/internal/compression"
	"iotd/internal/models"
	"iotd/internal/repository"
	"iotd/internal/scheduler"
	"iotd/internal/structures"
	"iotd/internal/testutil"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubScheduler struct {
	triggered []string
}

func (s *stubScheduler) Init() error    { return nil }
func (s *stubScheduler) Stop()          {}
func (s *stubScheduler) Restore() error { return nil }
func (s *stubScheduler) Trigger(job string) error {
	s.triggered = append(s.triggered, job)
	return nil
}

var archiveDay = time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

func newTestArchiveController(t *testing.T) (*ArchiveController, repository.Store, *stubScheduler) {
	t.Helper()
	store := testutil.OpenStore(t)
	testutil.RegisterDevice(t, store, 1, "meter")
	conf := &structures.Config{Archive: structures.ArchiveConfig{
		ArchiveAfterDays: 30,
		DeleteAfterDays:  365,
		MaxArchiveDays:   730,
	}}
	codec := compression.NewCodec(&testutil.MockCompressor{})
	pipeline := archive.NewPipeline(conf, store, codec, nil, &testutil.MockLogger{}, &testutil.MockMetrics{})
	sched := &stubScheduler{}
	ac := NewArchiveController(&testutil.MockLogger{}, pipeline, sched, testutil.NewMockCache())
	ac.background = func(fn func(ctx context.Context)) { fn(context.Background()) }
	return ac, store, sched
}

func addArchiveSample(t *testing.T, store repository.Store, ts time.Time) {
	t.Helper()
	require.NoError(t, store.Telemetry().Save(context.Background(), &models.TelemetrySample{
		DeviceID:  1,
		Timestamp: ts,
		Payload:   `{"kwh":1.5}`,
	}))
}

func TestArchive_ForceThenRetrieve(t *testing.T) {
	ac, store, _ := newTestArchiveController(t)
	addArchiveSample(t, store, archiveDay.Add(time.Hour))
	addArchiveSample(t, store, archiveDay.Add(2*time.Hour))

	rr := httptest.NewRecorder()
	ac.Force(rr, httptest.NewRequest(http.MethodPost, "/api/archive/force?device=1&start=2024-03-05&end=2024-03-05", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"created":1}`, rr.Body.String())

	rr = httptest.NewRecorder()
	ac.Data(rr, httptest.NewRequest(http.MethodGet, "/api/archive/data?device=1&start=2024-03-05T00:00:00Z&end=2024-03-05T06:00:00Z", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var samples []models.TelemetrySample
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &samples))
	require.Len(t, samples, 2)
	assert.Equal(t, `{"kwh":1.5}`, samples[0].Payload)
}

func TestArchive_ForceValidation(t *testing.T) {
	ac, _, _ := newTestArchiveController(t)

	rr := httptest.NewRecorder()
	ac.Force(rr, httptest.NewRequest(http.MethodPost, "/api/archive/force?device=7&start=2024-03-05&end=2024-03-05", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	for _, url := range []string{
		"/api/archive/force?start=2024-03-05&end=2024-03-05",
		"/api/archive/force?device=1&start=yesterday&end=2024-03-05",
		"/api/archive/force?device=1&start=2024-03-06&end=2024-03-05",
	} {
		rr = httptest.NewRecorder()
		ac.Force(rr, httptest.NewRequest(http.MethodPost, url, nil))
		assert.Equal(t, http.StatusBadRequest, rr.Code, url)
	}
}

func TestArchive_OldDataRunsInBackground(t *testing.T) {
	ac, store, _ := newTestArchiveController(t)
	addArchiveSample(t, store, archiveDay.Add(time.Hour))

	rr := httptest.NewRecorder()
	ac.OldData(rr, httptest.NewRequest(http.MethodPost, "/api/archive/old-data?days=30", nil))
	assert.Equal(t, http.StatusAccepted, rr.Code)

	rr = httptest.NewRecorder()
	ac.Statistics(rr, httptest.NewRequest(http.MethodGet, "/api/archive/statistics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var stats models.ArchiveStatistics
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &stats))
	assert.EqualValues(t, 1, stats.TotalArchives)
	assert.EqualValues(t, 1, stats.TotalOriginalRecords)
}

func TestArchive_CleanupTriggersJob(t *testing.T) {
	ac, _, sched := newTestArchiveController(t)

	rr := httptest.NewRecorder()
	ac.Cleanup(rr, httptest.NewRequest(http.MethodPost, "/api/archive/cleanup", nil))

	assert.Equal(t, http.StatusAccepted, rr.Code)
	assert.Equal(t, []string{scheduler.JobArchiveCleanup}, sched.triggered)
}

func TestArchive_Storage(t *testing.T) {
	ac, store, _ := newTestArchiveController(t)
	addArchiveSample(t, store, archiveDay.Add(time.Hour))

	rr := httptest.NewRecorder()
	ac.Storage(rr, httptest.NewRequest(http.MethodGet, "/api/archive/storage", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var usage models.StorageUsage
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &usage))
	assert.EqualValues(t, 1, usage.LiveSamples)
	assert.Zero(t, usage.Archives)
}

func TestArchive_ForceInvalidatesCachedStatistics(t *testing.T) {
	ac, store, _ := newTestArchiveController(t)
	addArchiveSample(t, store, archiveDay.Add(time.Hour))

	statistics := func() models.ArchiveStatistics {
		rr := httptest.NewRecorder()
		ac.Statistics(rr, httptest.NewRequest(http.MethodGet, "/api/archive/statistics", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		var stats models.ArchiveStatistics
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &stats))
		return stats
	}

	assert.Zero(t, statistics().TotalArchives)

	rr := httptest.NewRecorder()
	ac.Force(rr, httptest.NewRequest(http.MethodPost, "/api/archive/force?device=1&start=2024-03-05&end=2024-03-05", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	assert.EqualValues(t, 1, statistics().TotalArchives)
}
