package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	blobx "github.com/brightline-consulting/discovery/discovery/blob"
	documentsx "github.com/brightline-consulting/discovery/discovery/documents"
	enginex "github.com/brightline-consulting/discovery/discovery/engine"
	gatewayx "github.com/brightline-consulting/discovery/discovery/gateway"
	statex "github.com/brightline-consulting/discovery/discovery/state"
	storex "github.com/brightline-consulting/discovery/discovery/store"
	summarizerx "github.com/brightline-consulting/discovery/discovery/summarizer"
	configx "github.com/brightline-consulting/discovery/pkg/config"
	_ "github.com/brightline-consulting/discovery/pkg/logger/autoload"
	mondayx "github.com/brightline-consulting/discovery/pkg/monday"
	openrouterx "github.com/brightline-consulting/discovery/pkg/openrouter"
	tasksx "github.com/brightline-consulting/discovery/pkg/tasks"
	serverx "github.com/brightline-consulting/discovery/server"
)

type AppConfig struct {
	Addr            string        `envconfig:"ADDR" split_words:"true" default:":8787"`
	AdminPassword   string        `envconfig:"ADMIN_PASSWORD" split_words:"true" required:"true"`
	PublicBaseURL   string        `envconfig:"PUBLIC_BASE_URL" split_words:"true" default:"http://localhost:8787"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" split_words:"true" default:"15s"`
}

func main() {
	appCfg := configx.MustNew[AppConfig]("")

	openRouterCfg := configx.MustNew[openrouterx.Config]("OPENROUTER")
	openRouterClient := openrouterx.MustNew(*openRouterCfg)
	gateway := gatewayx.New(openRouterClient, *openRouterCfg)

	cacheCfg := configx.MustNew[statex.UpstashRedisConfig]("UPSTASH_REDIS")
	cache, err := statex.NewUpstashRedisCache(*cacheCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize state cache")
	}

	storeCfg := configx.MustNew[storex.Config]("DATABASE")
	store, err := storex.New(*storeCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize store")
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := store.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ensure database schema")
	}

	blobCfg := configx.MustNew[blobx.Config]("BLOB")
	blobs, err := blobx.NewFileStore(*blobCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize blob store")
	}

	tasksCfg := configx.MustNew[tasksx.Config]("TASKS")
	runner := tasksx.NewRunner(*tasksCfg)

	summarizer, err := summarizerx.New(store, gateway, runner)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize summarizer")
	}
	engine, err := enginex.New(store, cache, gateway, runner, summarizer)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize engine")
	}
	pipeline, err := documentsx.New(store, blobs, gateway, runner)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize document pipeline")
	}

	mondayCfg := configx.MustNew[mondayx.Config]("MONDAY")
	boards, err := mondayx.NewClient(*mondayCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize monday client")
	}

	handler, err := serverx.New(serverx.Config{
		AdminPassword: appCfg.AdminPassword,
		PublicBaseURL: appCfg.PublicBaseURL,
		MondayAPIKey:  mondayCfg.APIKey,
		Store:         store,
		Tokens:        cache,
		Settings:      cache,
		Gateway:       gateway,
		Engine:        engine,
		Summaries:     summarizer,
		Documents:     pipeline,
		Boards:        boards,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build http handler")
	}

	srv := &http.Server{
		Addr:              appCfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", appCfg.Addr).Msg("discovery service listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), appCfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}

	// Let in-flight summaries and extractions finish before the process exits.
	runner.Wait()
}
