// Package main is the entry point of the ExitLane service.
// It initializes the Kratos application with the HTTP server and the
// maintenance cron.
package main

import (
	"flag"
	"os"

	"ExitLane/internal/biz"
	"ExitLane/internal/conf"
	zapLogger "ExitLane/pkg/log"
	"ExitLane/pkg/llm"

	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/tracing"
	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/joho/godotenv"

	_ "go.uber.org/automaxprocs"
)

// go build -ldflags "-X main.Version=x.y.z"
var (
	// Name is the name of the compiled software.
	Name string
	// Version is the version of the compiled software.
	Version string
	// flagconf is the config flag.
	flagconf string

	id, _ = os.Hostname()
)

func init() {
	flag.StringVar(&flagconf, "conf", "../../configs/config.yaml", "config path, eg: -conf config.yaml")
}

// AppBundle carries the application plus the handles the maintenance cron
// needs outside the request path.
type AppBundle struct {
	App          *kratos.App
	Conversation *biz.ConversationUseCase
	LLM          *llm.Client
}

func newAppBundle(app *kratos.App, uc *biz.ConversationUseCase, lm *llm.Client) *AppBundle {
	return &AppBundle{App: app, Conversation: uc, LLM: lm}
}

func newApp(logger log.Logger, hs *http.Server) *kratos.App {
	return kratos.New(
		kratos.ID(id),
		kratos.Name(Name),
		kratos.Version(Version),
		kratos.Metadata(map[string]string{}),
		kratos.Logger(logger),
		kratos.Server(
			hs,
		),
	)
}

func main() {
	flag.Parse()

	// Local development convenience; a missing .env file is not an error.
	_ = godotenv.Load()

	// Load configuration using Viper with environment variable and CLI flag support
	bc, err := conf.NewBootstrap(flagconf)
	if err != nil {
		// Use fallback logger before Zap is initialized
		log.Fatalf("failed to load configuration: %v", err)
	}

	// Initialize Zap logger from configuration
	zapLog, err := zapLogger.NewZapLogger(bc.Log)
	if err != nil {
		log.Fatalf("failed to initialize zap logger: %v", err)
	}
	defer zapLog.Sync()

	// Create Kratos adapter for Zap logger
	logger := zapLogger.NewKratosAdapter(zapLog)

	// Add context fields to logger
	logger = log.With(logger,
		"service.id", id,
		"service.name", Name,
		"service.version", Version,
		"trace.id", tracing.TraceID(),
		"span.id", tracing.SpanID(),
	)

	// Log startup configuration
	log.NewHelper(logger).Infow(
		"msg", "ExitLane service starting",
		"log.level", bc.Log.Level,
		"log.format", bc.Log.Format,
		"log.env", bc.Log.Env,
		"llm.provider", bc.Llm.Provider,
		"llm.model", bc.Llm.Model,
	)

	bundle, cleanup, err := wireApp(bc, logger)
	if err != nil {
		panic(err)
	}
	defer cleanup()

	// Background maintenance: response cache sweep and stale interview expiry.
	maintenance := StartMaintenanceCron(bundle.Conversation, bundle.LLM, logger)
	if maintenance != nil {
		defer maintenance.Stop()
	}

	// start and wait for stop signal
	if err := bundle.App.Run(); err != nil {
		panic(err)
	}
}
