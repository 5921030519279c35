package controllers

import (
	"context"
	"errors"
	"iotd/internal/archive"
	"iotd/internal/providers"
	"iotd/internal/scheduler"
	"iotd/internal/scheduler/interfaces"
	"net/http"
	"time"
)

const statisticsKey = "archive:statistics"

type ArchiveController struct {
	cachedResponder
	logger    providers.Logger
	pipeline  archive.PipelineInterface
	scheduler interfaces.SchedulerInterface
	// background runs detached archive work; replaced in tests.
	background func(fn func(ctx context.Context))
}

func NewArchiveController(logger providers.Logger, pipeline archive.PipelineInterface, scheduler interfaces.SchedulerInterface, cache providers.CacheProviderInterface) *ArchiveController {
	return &ArchiveController{
		cachedResponder: cachedResponder{cache: cache},
		logger:          logger,
		pipeline:        pipeline,
		scheduler:       scheduler,
		background: func(fn func(ctx context.Context)) {
			go fn(context.Background())
		},
	}
}

func (ac *ArchiveController) Statistics(w http.ResponseWriter, r *http.Request) {
	ac.serveFromCacheOrCompute(w, statisticsKey, func() (any, error) {
		return ac.pipeline.GetArchiveStatistics(r.Context()), nil
	})
}

func (ac *ArchiveController) Storage(w http.ResponseWriter, r *http.Request) {
	usage, err := ac.pipeline.GetStorageUsage(r.Context())
	if err != nil {
		ac.logger.Errorf(providers.TypeArchive, "Storage usage unavailable: %s", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, usage)
}

func (ac *ArchiveController) Data(w http.ResponseWriter, r *http.Request) {
	deviceID, err := queryID(r, "device")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	start, end, err := queryRange(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	samples, err := ac.pipeline.RetrieveArchivedData(r.Context(), deviceID, start, end)
	if err != nil {
		ac.logger.Errorf(providers.TypeArchive, "Retrieving archives of device %d failed: %s", deviceID, err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, samples)
}

func (ac *ArchiveController) Force(w http.ResponseWriter, r *http.Request) {
	deviceID, err := queryID(r, "device")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	start, end, err := queryRange(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	created, err := ac.pipeline.ForceArchive(r.Context(), deviceID, start, end)
	if errors.Is(err, archive.ErrDeviceNotFound) {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	if err != nil {
		ac.logger.Errorf(providers.TypeArchive, "Forced archive of device %d failed: %s", deviceID, err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if created > 0 {
		ac.cache.Delete(statisticsKey)
	}
	writeJSON(w, http.StatusOK, map[string]int{"created": created})
}

// OldData starts a rollup of everything older than ?days= and returns at once.
func (ac *ArchiveController) OldData(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days", 30)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	ac.background(func(ctx context.Context) {
		n, err := ac.pipeline.ArchiveOldData(ctx, cutoff)
		if err != nil {
			ac.logger.Errorf(providers.TypeArchive, "Archive of data older than %d days failed: %s", days, err)
			return
		}
		ac.logger.Infof(providers.TypeArchive, "Archive of data older than %d days created %d archives", days, n)
		if n > 0 {
			ac.cache.Delete(statisticsKey)
		}
	})
	writeJSON(w, http.StatusAccepted, map[string]string{"cutoff": cutoff.Format(time.RFC3339)})
}

func (ac *ArchiveController) Cleanup(w http.ResponseWriter, r *http.Request) {
	if err := ac.scheduler.Trigger(scheduler.JobArchiveCleanup); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
