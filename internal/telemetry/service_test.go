package telemetry

import (
	"context"
	"iotd/internal/structures"
	"iotd/internal/testutil"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *testutil.MockLogger) {
	t.Helper()
	store := testutil.OpenStore(t)
	testutil.RegisterDevice(t, store, 1, "greenhouse")
	logger := &testutil.MockLogger{}
	conf := &structures.Config{Monitoring: structures.MonitoringConfig{HighTempThreshold: 30}}
	svc := NewService(conf, store, logger).(*Service)
	svc.now = testutil.NewClock(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)).Now
	return svc, logger
}

func TestService_SaveStoresPayloadVerbatim(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	payload := []byte(`{"temp": 22.5, "hum": 60}`)

	sample, err := svc.Save(ctx, 1, payload)
	require.NoError(t, err)
	assert.NotZero(t, sample.ID)

	list, err := svc.ListByDevice(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, string(payload), list[0].Payload)
	assert.True(t, list[0].Timestamp.Equal(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)))
}

func TestService_SaveUnknownDevice(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Save(context.Background(), 9, []byte(`{}`))
	assert.ErrorIs(t, err, ErrDeviceNotFound)
}

func TestService_CheckTemperature(t *testing.T) {
	svc, logger := newTestService(t)

	temp, hot := svc.CheckTemperature("device 1", []byte(`{"temp":31.2}`))
	assert.True(t, hot)
	assert.InDelta(t, 31.2, temp, 1e-9)
	assert.Equal(t, 1, logger.Count("warn", "High temperature"))

	_, hot = svc.CheckTemperature("device 1", []byte(`{"temp":"30"}`))
	assert.False(t, hot)
	_, hot = svc.CheckTemperature("device 1", []byte(`{"hum":80}`))
	assert.False(t, hot)
	_, hot = svc.CheckTemperature("device 1", []byte(`not json`))
	assert.False(t, hot)
}
