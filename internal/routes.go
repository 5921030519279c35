package internal

import (
	"iotd/internal/controllers"
	"iotd/internal/providers"
	"net/http"
)

func InitRoutes(apiController *controllers.ApiController, monitoring *controllers.MonitoringController, archive *controllers.ArchiveController, commands *controllers.CommandController) providers.RouterProviderInterface {
	routers := providers.NewRouterProvider()

	routers.Post("/api/devices", http.HandlerFunc(apiController.RegisterDevice))
	routers.Get("/api/devices", http.HandlerFunc(apiController.ListDevices))
	routers.Get("/api/telemetry", http.HandlerFunc(apiController.ListTelemetry))

	routers.Get("/api/monitoring/overview", http.HandlerFunc(monitoring.Overview))
	routers.Get("/api/monitoring/devices", http.HandlerFunc(monitoring.AllDevices))
	routers.Get("/api/monitoring/device", http.HandlerFunc(monitoring.Device))
	routers.Get("/api/monitoring/online", http.HandlerFunc(monitoring.Online))
	routers.Get("/api/monitoring/offline", http.HandlerFunc(monitoring.Offline))
	routers.Get("/api/monitoring/top-uptime", http.HandlerFunc(monitoring.TopUptime))
	routers.Get("/api/monitoring/recent", http.HandlerFunc(monitoring.Recent))
	routers.Post("/api/monitoring/online", http.HandlerFunc(monitoring.MarkOnline))
	routers.Post("/api/monitoring/offline", http.HandlerFunc(monitoring.MarkOffline))

	routers.Get("/api/archive/statistics", http.HandlerFunc(archive.Statistics))
	routers.Get("/api/archive/storage", http.HandlerFunc(archive.Storage))
	routers.Get("/api/archive/data", http.HandlerFunc(archive.Data))
	routers.Post("/api/archive/force", http.HandlerFunc(archive.Force))
	routers.Post("/api/archive/old-data", http.HandlerFunc(archive.OldData))
	routers.Post("/api/archive/cleanup", http.HandlerFunc(archive.Cleanup))

	routers.Post("/api/commands", http.HandlerFunc(commands.Send))
	routers.Get("/api/commands", http.HandlerFunc(commands.List))
	routers.Post("/api/commands/result", http.HandlerFunc(commands.Result))
	return routers
}
