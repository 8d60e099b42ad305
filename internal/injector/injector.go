//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"github.com/google/wire"

	"github.com/pulselink/pulselink/internal/core/observability/log"
	"github.com/pulselink/pulselink/internal/core/realtime"
)

func ProvideLogger() *log.Logger {
	wire.Build(log.Provide)
	return nil
}

func ProvideRegistry() *realtime.Registry {
	wire.Build(
		log.Provide,
		wire.Bind(new(log.Log), new(*log.Logger)),
		realtime.NewRegistry,
	)
	return nil
}

func ProvideMetrics() *realtime.Metrics {
	wire.Build(
		provideRegisterer,
		realtime.NewMetrics,
	)
	return nil
}
