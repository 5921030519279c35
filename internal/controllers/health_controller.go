package controllers

import (
	"fmt"
	"iotd/internal/gateway"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
)

// BusStatus reports the state of the message bus session.
type BusStatus interface {
	Stats() gateway.Stats
}

type HealthController struct {
	bus       BusStatus
	startTime time.Time
}

type healthResponse struct {
	Status        string        `json:"status"`
	Uptime        string        `json:"uptime"`
	UptimeSeconds float64       `json:"uptime_seconds"`
	Mqtt          gateway.Stats `json:"mqtt"`
}

func (hc *HealthController) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(hc.startTime)
	stats := hc.bus.Stats()
	status := "ok"
	if !stats.Connected {
		status = "degraded"
	}
	resp := healthResponse{
		Status:        status,
		Uptime:        formatDuration(uptime),
		UptimeSeconds: uptime.Seconds(),
		Mqtt:          stats,
	}

	gson, err := json.Marshal(resp)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(gson)
}

func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh%dm%ds", hours, minutes, seconds)
}

func NewHealthController(bus BusStatus) *HealthController {
	return &HealthController{
		bus:       bus,
		startTime: time.Now(),
	}
}
