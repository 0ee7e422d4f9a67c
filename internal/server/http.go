// Package server wires the HTTP transport and its routes.
package server

import (
	"context"

	"ExitLane/internal/conf"
	"ExitLane/internal/server/middleware"
	"ExitLane/internal/service"
	pkglog "ExitLane/pkg/log"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/google/wire"
)

// ProviderSet is server providers.
var ProviderSet = wire.NewSet(NewHTTPServer)

// NewHTTPServer new an HTTP server.
func NewHTTPServer(c *conf.Server, auth *conf.Auth, svc *service.InterviewService, logger log.Logger) *http.Server {
	logHelper := pkglog.NewLogHelper(logger)

	apiKey := ""
	if auth != nil {
		apiKey = auth.ApiKey
	}

	var opts = []http.ServerOption{
		http.Middleware(
			recovery.Recovery(),
			middleware.Auth(apiKey, logHelper),
			middleware.Logging(logHelper),
		),
	}
	if c.Http.Network != "" {
		opts = append(opts, http.Network(c.Http.Network))
	}
	if c.Http.Addr != "" {
		opts = append(opts, http.Address(c.Http.Addr))
	}
	if c.Http.Timeout != nil {
		opts = append(opts, http.Timeout(c.Http.Timeout.AsDuration()))
	}
	srv := http.NewServer(opts...)

	registerRoutes(srv, svc)

	return srv
}

// registerRoutes binds the JSON routes to the interview service.
func registerRoutes(srv *http.Server, svc *service.InterviewService) {
	r := srv.Route("/")

	r.GET("/healthz", func(ctx http.Context) error {
		h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
			return svc.Health(c)
		})
		out, err := h(ctx, nil)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	})

	v1 := srv.Route("/v1")

	v1.POST("/interviews", func(ctx http.Context) error {
		var in service.StartRequest
		if err := ctx.Bind(&in); err != nil {
			return err
		}

		h := ctx.Middleware(func(c context.Context, req interface{}) (interface{}, error) {
			return svc.StartInterview(c, req.(*service.StartRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	})

	v1.POST("/interviews/{id}/turns", func(ctx http.Context) error {
		var in service.TurnRequest
		if err := ctx.Bind(&in); err != nil {
			return err
		}
		interviewID := ctx.Vars().Get("id")

		h := ctx.Middleware(func(c context.Context, req interface{}) (interface{}, error) {
			return svc.ProcessTurn(c, interviewID, req.(*service.TurnRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	})

	v1.POST("/llm/generate", func(ctx http.Context) error {
		var in service.GenerateRequest
		if err := ctx.Bind(&in); err != nil {
			return err
		}

		h := ctx.Middleware(func(c context.Context, req interface{}) (interface{}, error) {
			return svc.Generate(c, req.(*service.GenerateRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	})

	v1.POST("/llm/sentiment", func(ctx http.Context) error {
		var in service.SentimentRequest
		if err := ctx.Bind(&in); err != nil {
			return err
		}

		h := ctx.Middleware(func(c context.Context, req interface{}) (interface{}, error) {
			return svc.Sentiment(c, req.(*service.SentimentRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	})
}
