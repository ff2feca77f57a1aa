package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"events_syncer/internal/config"
	"events_syncer/internal/export/ics"
	"events_syncer/internal/markdown"
	"events_syncer/internal/merge"
	"events_syncer/internal/publisher"
	"events_syncer/internal/scheduler"
	"events_syncer/internal/service"
	"events_syncer/internal/source/discord"
	"events_syncer/internal/storage/github"
	"events_syncer/internal/storage/postgres"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to config file")
	once := flag.Bool("once", false, "run a single sync even if a schedule is configured")
	flag.Parse()

	// Setup logger
	logger := setupLogger("info")

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return 1
	}

	logger = setupLogger(cfg.LogLevel)

	location, err := cfg.Sync.Location()
	if err != nil {
		logger.Error("failed to load timezone", "error", err)
		return 1
	}

	owner, repo, err := cfg.GitHub.OwnerAndName()
	if err != nil {
		logger.Error("invalid repository", "error", err)
		return 1
	}

	documents, err := github.NewDocumentStore(github.Config{
		BaseURL:       cfg.GitHub.BaseURL,
		Token:         cfg.GitHub.Token,
		Owner:         owner,
		Repo:          repo,
		Branch:        cfg.GitHub.Branch,
		Path:          cfg.GitHub.Path,
		CommitMessage: cfg.GitHub.CommitMessage,
		Timeout:       cfg.GitHub.Timeout,
	}, logger)
	if err != nil {
		logger.Error("failed to create document store", "error", err)
		return 1
	}

	source := discord.New(discord.Config{
		BaseURL:  cfg.Discord.BaseURL,
		BotToken: cfg.Discord.BotToken,
		GuildID:  cfg.Discord.GuildID,
		Timeout:  cfg.Discord.Timeout,
		Location: location,
	}, logger)

	// Optional collaborators
	var pub service.Publisher
	if cfg.RabbitMQ.Enabled() {
		rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
			URL:        cfg.RabbitMQ.URL,
			Exchange:   cfg.RabbitMQ.Exchange,
			RoutingKey: cfg.RabbitMQ.RoutingKey,
			QueueName:  cfg.RabbitMQ.QueueName,
		}, logger)
		if err != nil {
			logger.Error("failed to connect to rabbitmq", "error", err)
			return 1
		}
		defer rabbitMQ.Close()
		pub = rabbitMQ
	}

	var archive *service.Archive
	if cfg.Database.Enabled() {
		db, err := sqlx.Connect("postgres", cfg.Database.DSN())
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			return 1
		}
		defer db.Close()

		eventStore := postgres.NewEventStore(db)
		archived, err := eventStore.ListByGuild(context.Background(), cfg.Discord.GuildID)
		if err != nil {
			logger.Error("failed to read events archive", "error", err)
			return 1
		}
		logger.Info("connected to database", "archived_events", len(archived))

		archive = &service.Archive{
			Events:    eventStore,
			SyncState: postgres.NewSyncStateStore(db),
			TxManager: postgres.NewTransactionManager(db),
		}
	}

	var exporter service.Exporter
	if cfg.Export.ICSPath != "" {
		exporter = ics.New(cfg.Export.ICSPath, "Community Events")
	}

	syncService := service.NewSyncService(
		source,
		documents,
		markdown.New(),
		merge.New(location, nil),
		pub,
		archive,
		exporter,
		logger,
	)

	schedCfg := scheduler.Config{
		Interval: cfg.Sync.Interval,
		Cron:     cfg.Sync.Cron,
		Timeout:  cfg.Sync.Timeout,
		Location: location,
	}
	if *once {
		schedCfg.Interval, schedCfg.Cron = 0, ""
	}

	sched, err := scheduler.NewScheduler(syncService, schedCfg, logger)
	if err != nil {
		logger.Error("failed to create scheduler", "error", err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	logger.Info("starting events syncer",
		"source", source.Name(),
		"guild_id", source.GuildID(),
		"repo", cfg.GitHub.Repo,
		"path", cfg.GitHub.Path,
		"repeats", sched.Repeats(),
	)

	err = sched.Start(ctx)
	if sched.Repeats() && errors.Is(err, context.Canceled) {
		return 0
	}
	if err != nil {
		logger.Error("events sync failed", "error", err)
		return 1
	}

	logger.Info("events document updated", "repo", cfg.GitHub.Repo, "path", cfg.GitHub.Path)
	return 0
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
