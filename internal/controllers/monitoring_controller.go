package controllers

import (
	"errors"
	"iotd/internal/models"
	"iotd/internal/monitoring"
	"iotd/internal/providers"
	"iotd/internal/repository"
	"net/http"
)

const (
	topUptimeLimit = 10
	overviewKey    = "monitoring:overview"
)

type MonitoringController struct {
	cachedResponder
	logger  providers.Logger
	tracker monitoring.TrackerInterface
}

func NewMonitoringController(logger providers.Logger, tracker monitoring.TrackerInterface, cache providers.CacheProviderInterface) *MonitoringController {
	return &MonitoringController{
		cachedResponder: cachedResponder{cache: cache},
		logger:          logger,
		tracker:         tracker,
	}
}

func (mc *MonitoringController) Overview(w http.ResponseWriter, r *http.Request) {
	mc.serveFromCacheOrCompute(w, overviewKey, func() (any, error) {
		return mc.tracker.GetOverview(r.Context())
	})
}

func (mc *MonitoringController) AllDevices(w http.ResponseWriter, r *http.Request) {
	statuses, err := mc.tracker.GetAllStatuses(r.Context())
	mc.respond(w, statuses, err)
}

func (mc *MonitoringController) Device(w http.ResponseWriter, r *http.Request) {
	id, err := queryID(r, "id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	status, err := mc.tracker.GetDeviceStatus(r.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	mc.respond(w, status, err)
}

func (mc *MonitoringController) Online(w http.ResponseWriter, r *http.Request) {
	statuses, err := mc.tracker.GetByState(r.Context(), models.StateOnline)
	mc.respond(w, statuses, err)
}

func (mc *MonitoringController) Offline(w http.ResponseWriter, r *http.Request) {
	statuses, err := mc.tracker.GetByState(r.Context(), models.StateOffline)
	mc.respond(w, statuses, err)
}

func (mc *MonitoringController) TopUptime(w http.ResponseWriter, r *http.Request) {
	statuses, err := mc.tracker.GetTopUptime(r.Context(), topUptimeLimit)
	mc.respond(w, statuses, err)
}

func (mc *MonitoringController) Recent(w http.ResponseWriter, r *http.Request) {
	hours, err := queryInt(r, "hours", 24)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	statuses, err := mc.tracker.GetRecentlyConnected(r.Context(), hours)
	mc.respond(w, statuses, err)
}

// MarkOnline and MarkOffline are manual overrides of the tracked state.
func (mc *MonitoringController) MarkOnline(w http.ResponseWriter, r *http.Request) {
	mc.mutate(w, r, func(id int64) error {
		return mc.tracker.MarkOnline(r.Context(), id, models.DeviceMetadata{})
	})
}

func (mc *MonitoringController) MarkOffline(w http.ResponseWriter, r *http.Request) {
	mc.mutate(w, r, func(id int64) error {
		return mc.tracker.MarkOffline(r.Context(), id)
	})
}

func (mc *MonitoringController) mutate(w http.ResponseWriter, r *http.Request, fn func(id int64) error) {
	id, err := queryID(r, "id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	err = fn(id)
	switch {
	case errors.Is(err, monitoring.ErrDeviceNotRegistered):
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	case err != nil:
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	mc.cache.Delete(overviewKey)
	status, err := mc.tracker.GetDeviceStatus(r.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	mc.respond(w, status, err)
}

func (mc *MonitoringController) respond(w http.ResponseWriter, v any, err error) {
	if err != nil {
		mc.logger.Errorf(providers.TypeGet, "Monitoring query failed: %s", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, v)
}
