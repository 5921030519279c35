//go:build wireinject
// +build wireinject

package di

import (
	wire "github.com/google/wire"
	"iotd/internal"
	"iotd/internal/archive"
	"iotd/internal/commands"
	"iotd/internal/compression"
	"iotd/internal/controllers"
	"iotd/internal/gateway"
	"iotd/internal/monitoring"
	"iotd/internal/providers"
	"iotd/internal/repository"
	"iotd/internal/scheduler"
	"iotd/internal/structures"
	"iotd/internal/telemetry"
)

func InitApp(cfg *structures.CliFlags) (*internal.App, error) {

	wire.Build(
		providers.NewConfigProvider,
		providers.NewLogProvider,
		providers.NewMetricsProvider,
		providers.NewInstrumentedCacheProvider,
		providers.NewDatabaseProvider,
		providers.NewRedisProvider,
		repository.New,

		compression.NewCompressor,
		compression.NewCodec,
		monitoring.NewSubscriptionCache,
		monitoring.NewTracker,
		telemetry.NewService,
		gateway.NewGateway,
		wire.Bind(new(gateway.GatewayInterface), new(*gateway.Gateway)),
		wire.Bind(new(commands.Publisher), new(*gateway.Gateway)),
		wire.Bind(new(controllers.BusStatus), new(*gateway.Gateway)),
		archive.NewColdStoreProvider,
		archive.NewPipeline,
		commands.NewService,
		scheduler.NewScheduler,

		controllers.NewApiController,
		controllers.NewMonitoringController,
		controllers.NewArchiveController,
		controllers.NewCommandController,
		controllers.NewHealthController,
		internal.InitRoutes,
		internal.NewApp,
	)

	return nil, nil
}
