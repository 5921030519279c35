package controllers

import (
	"context"
	"encoding/json"
	"iotd/internal/models"
	"iotd/internal/monitoring"
	"iotd/internal/structures"
	"iotd/internal/testutil"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMonitoringController(t *testing.T) (*MonitoringController, monitoring.TrackerInterface, *testutil.MockCache) {
	t.Helper()
	store := testutil.OpenStore(t)
	testutil.RegisterDevice(t, store, 1, "a")
	testutil.RegisterDevice(t, store, 2, "b")
	conf := &structures.Config{Monitoring: structures.MonitoringConfig{
		DeviceTimeout:       300 * time.Second,
		LowBatteryThreshold: 20,
		WeakSignalThreshold: -80,
	}}
	tracker := monitoring.NewTracker(conf, store, monitoring.NewMemorySubscriptionCache(), &testutil.MockLogger{}, &testutil.MockMetrics{})
	cache := testutil.NewMockCache()
	return NewMonitoringController(&testutil.MockLogger{}, tracker, cache), tracker, cache
}

func TestMonitoring_MarkOnlineAndQuery(t *testing.T) {
	mc, _, _ := newTestMonitoringController(t)

	rr := httptest.NewRecorder()
	mc.MarkOnline(rr, httptest.NewRequest(http.MethodPost, "/api/monitoring/online?id=1", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var status models.DeviceStatus
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &status))
	assert.Equal(t, models.StateOnline, status.State)

	rr = httptest.NewRecorder()
	mc.Online(rr, httptest.NewRequest(http.MethodGet, "/api/monitoring/online", nil))
	var online []models.DeviceStatus
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &online))
	require.Len(t, online, 1)
	assert.EqualValues(t, 1, online[0].DeviceID)

	rr = httptest.NewRecorder()
	mc.Device(rr, httptest.NewRequest(http.MethodGet, "/api/monitoring/device?id=1", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	mc.Device(rr, httptest.NewRequest(http.MethodGet, "/api/monitoring/device?id=2", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = httptest.NewRecorder()
	mc.MarkOffline(rr, httptest.NewRequest(http.MethodPost, "/api/monitoring/offline?id=1", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &status))
	assert.Equal(t, models.StateOffline, status.State)
}

func TestMonitoring_MarkUnregisteredDevice(t *testing.T) {
	mc, _, _ := newTestMonitoringController(t)

	rr := httptest.NewRecorder()
	mc.MarkOnline(rr, httptest.NewRequest(http.MethodPost, "/api/monitoring/online?id=9", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = httptest.NewRecorder()
	mc.MarkOffline(rr, httptest.NewRequest(http.MethodPost, "/api/monitoring/offline?id=9", nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = httptest.NewRecorder()
	mc.MarkOnline(rr, httptest.NewRequest(http.MethodPost, "/api/monitoring/online?id=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestMonitoring_OverviewCachedUntilManualMark(t *testing.T) {
	mc, tracker, cache := newTestMonitoringController(t)
	require.NoError(t, tracker.MarkOnline(context.Background(), 1, models.DeviceMetadata{}))

	rr := httptest.NewRecorder()
	mc.Overview(rr, httptest.NewRequest(http.MethodGet, "/api/monitoring/overview", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var overview monitoring.Overview
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &overview))
	assert.EqualValues(t, 2, overview.TotalDevices)
	assert.EqualValues(t, 1, overview.OnlineDevices)
	assert.EqualValues(t, 0, overview.OfflineDevices, "device 2 never connected")
	_, cached := cache.Get("monitoring:overview")
	assert.True(t, cached)

	rr = httptest.NewRecorder()
	mc.MarkOffline(rr, httptest.NewRequest(http.MethodPost, "/api/monitoring/offline?id=1", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	_, cached = cache.Get("monitoring:overview")
	assert.False(t, cached)
}

func TestMonitoring_ListEndpoints(t *testing.T) {
	mc, tracker, _ := newTestMonitoringController(t)
	ctx := context.Background()
	require.NoError(t, tracker.MarkOnline(ctx, 1, models.DeviceMetadata{}))
	require.NoError(t, tracker.MarkOnline(ctx, 2, models.DeviceMetadata{}))
	require.NoError(t, tracker.MarkOffline(ctx, 2))

	handlers := map[string]http.HandlerFunc{
		"/api/monitoring/devices":        mc.AllDevices,
		"/api/monitoring/offline":        mc.Offline,
		"/api/monitoring/top-uptime":     mc.TopUptime,
		"/api/monitoring/recent?hours=1": mc.Recent,
	}
	want := map[string]int{
		"/api/monitoring/devices":        2,
		"/api/monitoring/offline":        1,
		"/api/monitoring/top-uptime":     2,
		"/api/monitoring/recent?hours=1": 2,
	}
	for url, h := range handlers {
		rr := httptest.NewRecorder()
		h(rr, httptest.NewRequest(http.MethodGet, url, nil))
		require.Equal(t, http.StatusOK, rr.Code, url)
		var list []models.DeviceStatus
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
		assert.Len(t, list, want[url], url)
	}

	rr := httptest.NewRecorder()
	mc.Recent(rr, httptest.NewRequest(http.MethodGet, "/api/monitoring/recent?hours=0", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
