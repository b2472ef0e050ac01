package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"personachat/pkg/catalog"
	"personachat/pkg/chat"
	"personachat/pkg/config"
	"personachat/pkg/discord"
	"personachat/pkg/emotion"
	"personachat/pkg/generation"
	"personachat/pkg/logging"
	"personachat/pkg/memory"
	"personachat/pkg/metrics"
	"personachat/pkg/persona"
	"personachat/pkg/server"
	"personachat/pkg/session"
	"personachat/pkg/surreal"
)

func main() {
	// Load .env for secrets
	envErr := godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yml"
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logging.New("").WithError(err).Fatal("Failed to load config")
	}

	log := logging.New(cfg.App.Environment)
	if envErr != nil {
		log.Debug("No .env file found, relying on environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Storage
	driver := cfg.Storage.Driver
	if v := os.Getenv("STORAGE_DRIVER"); v != "" {
		driver = v
	}
	surrealNS := os.Getenv("SURREAL_DB_NAMESPACE")
	if surrealNS == "" {
		surrealNS = cfg.Storage.SurrealNamespace
	}
	surrealDB := os.Getenv("SURREAL_DB_DATABASE")
	if surrealDB == "" {
		surrealDB = cfg.Storage.SurrealDatabase
	}

	store, err := memory.Open(ctx, memory.Options{
		Driver:     driver,
		SQLitePath: cfg.Storage.SQLitePath,
		Surreal: surreal.Config{
			Host:      os.Getenv("SURREAL_DB_HOST"),
			User:      os.Getenv("SURREAL_DB_USER"),
			Pass:      os.Getenv("SURREAL_DB_PASS"),
			Namespace: surrealNS,
			Database:  surrealDB,
		},
		RedisURL:    os.Getenv("REDIS_URL"),
		RedisPrefix: cfg.Storage.RedisPrefix,
	}, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to open store")
	}
	defer store.Close()

	// Generation
	generator := generation.NewClient(os.Getenv("GEMINI_API_KEY"), generation.Options{
		Character:    cfg.App.Character,
		BaseURL:      cfg.ModelSettings.BaseURL,
		Model:        cfg.ModelSettings.Model,
		Temperature:  cfg.ModelSettings.Temperature,
		TopP:         cfg.ModelSettings.TopP,
		MaxTokens:    cfg.ModelSettings.MaxTokens,
		HistoryTurns: cfg.Generation.HistoryTurns,
	}, log)

	clock := persona.NewClock(cfg.Persona.Timezone, cfg.Persona.FallbackOffsetHours)
	if err := clock.Err(); err != nil {
		log.WithError(err).Warn("Persona timezone unavailable, using the default persona")
	}

	sessions := session.NewManager(time.Duration(cfg.Session.TTLMinutes) * time.Minute)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg, sessions.Count)

	orchestrator := chat.NewOrchestrator(chat.Deps{
		Classifier: emotion.NewClassifier(emotion.NewCachedScorer(emotion.NewLexiconScorer(), 1000), log),
		Clock:      clock,
		Generator:  generator,
		Store:      store,
		Metrics:    m,
		Logger:     log,
	}, chat.Options{
		GenerationTimeout: time.Duration(cfg.Generation.TimeoutSeconds * float64(time.Second)),
		HistoryTurns:      cfg.Generation.HistoryTurns,
	})

	cat := catalog.FromConfig(cfg)

	srv := server.New(server.Deps{
		Config:    cfg,
		Sessions:  sessions,
		Chat:      orchestrator,
		Catalog:   cat,
		Clock:     clock,
		Store:     store,
		Metrics:   m,
		Registry:  reg,
		Logger:    log,
		AccessLog: os.Stdout,
	})

	// Optional Discord DM channel
	if token := os.Getenv("DISCORD_TOKEN"); token != "" {
		handler := discord.NewHandler(orchestrator, sessions, cat, cfg, log)
		bot, err := discord.Start(token, os.Getenv("DISCORD_GUILD_ID"), handler, log)
		if err != nil {
			log.WithError(err).Error("Discord channel disabled")
		} else {
			defer bot.Close()
		}
	} else {
		log.Info("DISCORD_TOKEN not set, Discord channel disabled")
	}

	port := cfg.Server.Port
	if v := os.Getenv("PORT"); v != "" {
		port = v
	}
	addr := ":" + strings.TrimPrefix(port, ":")

	go func() {
		log.WithField("addr", addr).Infof("%s is now running. Press CTRL-C to exit.", cfg.App.Title)
		if err := srv.Listen(addr); err != nil {
			log.WithError(err).Error("HTTP server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("HTTP shutdown incomplete")
	}
}
