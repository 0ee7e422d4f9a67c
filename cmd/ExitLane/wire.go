//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package main

import (
	"ExitLane/internal/biz"
	"ExitLane/internal/conf"
	"ExitLane/internal/data"
	"ExitLane/internal/server"
	"ExitLane/internal/service"
	"ExitLane/pkg/llm"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
)

// wireApp init kratos application.
func wireApp(*conf.Bootstrap, log.Logger) (*AppBundle, func(), error) {
	panic(wire.Build(
		wire.FieldsOf(new(*conf.Bootstrap), "Server", "Data", "Llm", "Interview", "Auth"),
		data.ProviderSet,
		biz.ProviderSet,
		llm.NewProvider,
		llm.NewClient,
		service.ProviderSet,
		server.ProviderSet,
		newApp,
		newAppBundle,
	))
}
