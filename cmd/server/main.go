package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"waitroom-intake/internal/archive"
	"waitroom-intake/internal/config"
	"waitroom-intake/internal/core"
	"waitroom-intake/internal/db"
	httpserver "waitroom-intake/internal/http"
	"waitroom-intake/internal/llm"
	"waitroom-intake/internal/metrics"
	"waitroom-intake/internal/notify"
	"waitroom-intake/internal/session"
	"waitroom-intake/internal/telegram"
	"waitroom-intake/pkg/logging"
)

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)

	if err := run(cfg, logger); err != nil {
		logger.Error("intake bot failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *logging.Logger) error {
	logger.Info("starting intake bot",
		"port", cfg.Port,
		"telegram", cfg.TelegramToken != "",
		"reviewers", len(cfg.ReviewerIDs),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	intakeMetrics := metrics.NewIntakeMetrics(reg)

	sessions, err := openSessions(ctx, cfg, logger)
	if err != nil {
		return err
	}

	var (
		records  core.RecordStore
		reader   httpserver.RecordReader
		notifier httpserver.RecordStream
	)
	if cfg.DatabaseURL != "" {
		dbConn, err := openDatabase(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer dbConn.Close()
		repo := db.NewRepository(dbConn, cfg.NotifyChannel)
		records, reader = repo, repo
		if cfg.NotifyChannel != "" {
			notifier = db.NewNotifier(cfg.DatabaseURL, cfg.NotifyChannel, logger)
		}
		logger.Info("records stored in postgres", "channel", cfg.NotifyChannel)
	} else {
		records = archive.NewFileStore(cfg.RecordsDir)
		logger.Info("records stored on disk", "dir", cfg.RecordsDir)
	}

	var brief core.BriefWriter
	if cfg.OpenAIKey != "" {
		brief = core.NewSummarizer(llm.NewOpenAIClient(cfg.OpenAIKey, cfg.OpenAIModel), cfg.BriefTimeout)
	}

	var (
		bot  *telegram.Bot
		sink notify.Sink = &notify.LogSink{Logger: logger}
	)
	if cfg.TelegramToken != "" {
		b, err := telegram.New(cfg.TelegramToken, nil, logger)
		if err != nil {
			return err
		}
		bot, sink = b, b
	} else {
		logger.Warn("TELEGRAM_BOT_TOKEN not set, telegram transport disabled")
	}

	engine := core.NewEngine(core.Config{
		Sessions:   sessions,
		Sink:       sink,
		Recipients: cfg.ReviewerIDs,
		Records:    records,
		Brief:      brief,
		Metrics:    intakeMetrics,
		Logger:     logger,
	})

	var srv *http.Server
	if cfg.HTTPEnabled {
		srv = &http.Server{
			Addr: ":" + cfg.Port,
			Handler: httpserver.NewServer(httpserver.Options{
				Conversation:  engine,
				Records:       reader,
				Stream:        notifier,
				Metrics:       promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
				ReviewerToken: cfg.ReviewerAPIToken,
				Logger:        logger,
			}),
			ReadTimeout: 15 * time.Second,
			// no write timeout: the reviewer stream stays open
			IdleTimeout: 60 * time.Second,
		}
		go func() {
			logger.Info("server listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("server error", "error", err)
				stop()
			}
		}()
	}

	botDone := make(chan struct{})
	if bot != nil {
		bot.SetConversation(engine)
		go func() {
			defer close(botDone)
			if err := bot.Run(ctx); err != nil {
				logger.Error("telegram bot stopped", "error", err)
				stop()
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down...")

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server forced to shutdown", "error", err)
		}
	}
	if bot != nil {
		<-botDone
	}
	engine.Wait()
	logger.Info("stopped")
	return nil
}

func openSessions(ctx context.Context, cfg *config.Config, logger *logging.Logger) (session.Store, error) {
	if cfg.RedisAddr == "" {
		logger.Info("sessions kept in memory")
		return session.NewMemoryStore(), nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("reach redis at %s: %w", cfg.RedisAddr, err)
	}
	logger.Info("sessions kept in redis", "addr", cfg.RedisAddr, "ttl", cfg.SessionTTL.String())
	return session.NewRedisStore(client, cfg.SessionTTL), nil
}

func openDatabase(ctx context.Context, dsn string) (*sql.DB, error) {
	dbConn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := dbConn.PingContext(pingCtx); err != nil {
		dbConn.Close()
		return nil, err
	}
	if err := db.Migrate(ctx, dbConn); err != nil {
		dbConn.Close()
		return nil, err
	}
	return dbConn, nil
}
