package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"bookline/backend/internal/cache"
	"bookline/backend/internal/config"
	"bookline/backend/internal/domain"
	"bookline/backend/internal/links/zoom"
	"bookline/backend/internal/notifier"
	"bookline/backend/internal/remote/providers"
	"bookline/backend/internal/service/availability"
	"bookline/backend/internal/service/booking"
	"bookline/backend/internal/store/postgres"
	httpTransport "bookline/backend/internal/transport/http"
)

func main() {
	// A missing .env is fine; the environment itself may carry everything.
	_ = godotenv.Load()

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})).With(
		slog.String("service", "bookline-server"),
	)
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)})).With(
		slog.String("service", "bookline-server"),
	)
	slog.SetDefault(log)

	log.Info("starting", slog.String("http_addr", cfg.HTTPAddr), slog.String("log_level", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("connecting to database", databaseLogArgs(cfg.DatabaseURL)...)
	db, err := postgres.Open(ctx, cfg.DatabaseURL, postgres.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	})
	if err != nil {
		args := append([]any{slog.Any("err", err)}, databaseLogArgs(cfg.DatabaseURL)...)
		log.Error("database connection failed", args...)
		os.Exit(1)
	}
	defer func() {
		if err := postgres.Close(db); err != nil {
			log.Warn("database close failed", slog.Any("err", err))
		}
	}()

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("redis unreachable, running without cache", slog.Any("err", err))
			rdb = nil
		}
	}
	eventCache := cache.New(rdb, cfg.CacheSecret, cfg.CacheTTL, log)

	mailer := notifier.NewSMTPMailer(notifier.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	})
	notify := notifier.New(mailer, log, 64)
	notify.Start()
	defer notify.Close()

	factory := providers.NewFactory(providers.Config{
		GoogleClientID:     cfg.GoogleClientID,
		GoogleClientSecret: cfg.GoogleClientSecret,
		Timeout:            cfg.RemoteCallTimeout,
		Log:                log,
	})

	repo := postgres.NewRepo(db)
	avail := availability.New(repo, repo, eventCache, factory, log)

	linkProviders := map[domain.MeetingLinkProvider]booking.LinkProvider{}
	if cfg.ZoomAccountID != "" && cfg.ZoomClientID != "" {
		linkProviders[domain.MeetingLinkProviderZoom] = zoom.New(
			ctx, cfg.ZoomAccountID, cfg.ZoomClientID, cfg.ZoomClientSecret, cfg.RemoteCallTimeout,
		)
	}

	coord := booking.NewCoordinator(repo, repo, avail, factory, notify, linkProviders, booking.Config{
		BaseURL:    cfg.BaseURL,
		HoldPrefix: cfg.HoldPrefix,
		HoldTTL:    cfg.HoldTTL,
	}, log)

	go expirySweep(ctx, coord, cfg.ExpirySweepEvery, log)

	srv := httpTransport.NewServer(httpTransport.Config{
		SignedSecret:   cfg.SignedSecret,
		RequestTimeout: cfg.HTTPRequestTimeout,
	}, repo, avail, coord, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("http shutdown failed", slog.Any("err", err))
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server stopped with error", slog.Any("err", err))
			os.Exit(1)
		}
	}
}

// expirySweep periodically releases holds whose decision window ran out.
func expirySweep(ctx context.Context, coord *booking.Coordinator, every time.Duration, log *slog.Logger) {
	if every <= 0 {
		every = 5 * time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			released, err := coord.ExpirePending(ctx)
			if err != nil {
				log.Warn("expiry sweep failed", slog.Any("err", err))
				continue
			}
			if released > 0 {
				log.Info("released expired holds", slog.Int("count", released))
			}
		}
	}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func databaseLogArgs(databaseURL string) []any {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return []any{slog.String("db_url", "invalid")}
	}
	name := strings.TrimPrefix(u.Path, "/")
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "default"
	}
	if host == "" {
		host = "unknown"
	}
	if name == "" {
		name = "unknown"
	}
	return []any{
		slog.String("db_host", host),
		slog.String("db_port", port),
		slog.String("db_name", name),
	}
}
