package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/time/rate"

	"github.com/miyamo2/weather-mcp/domain/forecast"
	"github.com/miyamo2/weather-mcp/infrastructure/catalog"
	"github.com/miyamo2/weather-mcp/internal/app"
	"github.com/miyamo2/weather-mcp/internal/config"
	"github.com/miyamo2/weather-mcp/internal/mcp"
	"github.com/miyamo2/weather-mcp/internal/mcp/transport"
)

func main() {
	if err := run(); err != nil {
		slog.Error("[weather] exited with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return err
	}
	// stdout carries the stdio transport, so logs go to stderr.
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	repo, err := catalog.Load(cfg.CitiesFile)
	if err != nil {
		return err
	}

	var generatorOptions []forecast.GeneratorOption
	if cfg.ForecastSeed != 0 {
		generatorOptions = append(generatorOptions, forecast.WithSeed(cfg.ForecastSeed))
	}

	appOptions := []app.Option{app.WithLogger(logger)}
	if cfg.RateLimit > 0 {
		appOptions = append(appOptions, app.WithRateLimiter(rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)))
	}
	server := app.New(repo, forecast.NewGenerator(generatorOptions...), appOptions...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("[weather] starting",
		slog.String("transport", cfg.Transport),
		slog.Int("cities", repo.Len()))

	switch cfg.Transport {
	case config.TransportHTTP:
		streamableOptions := []transport.StreamableOption{
			transport.StreamableWithAddress(cfg.Addr),
			transport.StreamableWithSessionTerminator(server.TerminateSession),
		}
		if cfg.JWTSecret != "" {
			streamableOptions = append(streamableOptions,
				transport.StreamableWithAuthorizer(transport.NewJWTAuthorizer([]byte(cfg.JWTSecret))))
		}
		streamable, err := transport.NewStreamable(streamableOptions...)
		if err != nil {
			return err
		}
		logger.Info("[weather] listening", slog.String("addr", streamable.Addr().String()))
		err = server.Start(mcp.StartWithContext(ctx), mcp.StartWithListener(streamable))
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	default:
		stdio := transport.NewStdio(ctx)
		if err := server.Start(mcp.StartWithContext(ctx), mcp.StartWithListener(stdio)); err != nil {
			return err
		}
	}
	logger.Info("[weather] stopped")
	return nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.LogFormat == config.LogFormatText {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
