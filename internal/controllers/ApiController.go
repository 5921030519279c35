package controllers

import (
	"errors"
	"fmt"
	"iotd/internal/models"
	"iotd/internal/providers"
	"iotd/internal/repository"
	"iotd/internal/telemetry"
	"net/http"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gookit/validate"
)

const maxRequestBodySize = 1 << 20 // 1 MB

type cachedResponder struct {
	cache providers.CacheProviderInterface
}

func (c cachedResponder) serveFromCacheOrCompute(w http.ResponseWriter, cacheKey string, compute func() (any, error)) {
	if data, ok := c.cache.Get(cacheKey); ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return
	}

	result, err := compute()
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	gson, err := json.Marshal(result)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	c.cache.Set(cacheKey, gson)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(gson)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	gson, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(gson)
}

func decodeBody(w http.ResponseWriter, r *http.Request, out any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	return json.NewDecoder(r.Body).Decode(out)
}

func queryID(r *http.Request, key string) (int64, error) {
	raw := r.URL.Query().Get(key)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("query parameter %q must be a positive integer", key)
	}
	return id, nil
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("query parameter %q must be a positive integer", key)
	}
	return n, nil
}

// parseDate accepts RFC 3339 timestamps and plain YYYY-MM-DD dates (UTC).
func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	return time.ParseInLocation(time.DateOnly, raw, time.UTC)
}

func queryRange(r *http.Request) (time.Time, time.Time, error) {
	start, err := parseDate(r.URL.Query().Get("start"))
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("query parameter \"start\" must be RFC 3339 or YYYY-MM-DD")
	}
	end, err := parseDate(r.URL.Query().Get("end"))
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("query parameter \"end\" must be RFC 3339 or YYYY-MM-DD")
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, errors.New("end must not be before start")
	}
	return start, end, nil
}

// ApiController serves the device registry and live telemetry.
type ApiController struct {
	logger    providers.Logger
	store     repository.Store
	telemetry telemetry.ServiceInterface
}

func NewApiController(logger providers.Logger, store repository.Store, telemetry telemetry.ServiceInterface) *ApiController {
	return &ApiController{
		logger:    logger,
		store:     store,
		telemetry: telemetry,
	}
}

type registerDeviceRequest struct {
	ID   int64  `json:"id" validate:"min:0"`
	Name string `json:"name" validate:"required|maxLen:100"`
	Type string `json:"type" validate:"maxLen:50"`
}

func (ac *ApiController) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	var req registerDeviceRequest
	if err := decodeBody(w, r, &req); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if v := validate.Struct(&req); !v.Validate() {
		http.Error(w, v.Errors.One(), http.StatusBadRequest)
		return
	}

	device := &models.Device{ID: req.ID, Name: req.Name, Type: req.Type, Status: "active"}
	if err := ac.store.Devices().Create(r.Context(), device); err != nil {
		ac.logger.Errorf(providers.TypePost, "Failed to register device %q: %s", req.Name, err)
		http.Error(w, "Conflict", http.StatusConflict)
		return
	}
	ac.logger.Infof(providers.TypePost, "Registered device %d (%s)", device.ID, device.Name)
	writeJSON(w, http.StatusCreated, device)
}

func (ac *ApiController) ListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := ac.store.Devices().FindAll(r.Context())
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, devices)
}

func (ac *ApiController) ListTelemetry(w http.ResponseWriter, r *http.Request) {
	deviceID, err := queryID(r, "device")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	limit, err := queryInt(r, "limit", 100)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	samples, err := ac.telemetry.ListByDevice(r.Context(), deviceID, limit)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, samples)
}
