package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"dogfight/internal/config"
	"dogfight/internal/telemetry"
	"dogfight/server"
	"dogfight/server/application"
	"dogfight/server/domain"
	"dogfight/server/handler"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, shutdownTelemetry, err := telemetry.Setup(ctx, telemetry.Config{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: cfg.ServiceName,
		LogLevel:    cfg.LogLevel,
		LogFormat:   cfg.LogFormat,
	}, os.Stdout)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			slog.Error("telemetry shutdown failed", "err", err)
		}
	}()

	recorder, err := telemetry.NewGameRecorder(otel.Meter("dogfight"))
	if err != nil {
		return err
	}

	// PubSub初期化
	pubsub := domain.NewSimplePubSub(cfg.WriteQueue)

	// ワールドは1つだけ
	game := application.NewGame(cfg.Game(), application.WithRecorder(recorder))
	room := domain.NewRoom(domain.DefaultRoomID, pubsub, game, domain.WithTickInterval(cfg.TickInterval()))

	accept := handler.NewAcceptHandler(pubsub, domain.DefaultRoomID, handler.AcceptConfig{
		Endpoint:       cfg.Endpoint(),
		ReadLimit:      cfg.ReadLimit,
		OriginPatterns: cfg.OriginPatterns,
	})
	s := server.NewServer(ctx, cfg.ListenAddr(), server.Route(accept, cfg.StaticDir))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return room.Run(egCtx)
	})
	eg.Go(func() error {
		return s.Serve()
	})
	eg.Go(func() error {
		<-egCtx.Done()
		slog.InfoContext(ctx, "shutdown initiated")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "graceful shutdown failed", "err", err)
			if err := s.Close(); err != nil {
				slog.ErrorContext(shutdownCtx, "forced close failed", "err", err)
			}
		}
		return nil
	})
	slog.InfoContext(ctx, "server listening",
		"addr", s.Addr(),
		"tickRate", cfg.TickRate,
		"static", cfg.StaticDir != "",
		"otlp", cfg.OTLPEndpoint != "",
	)

	if err := eg.Wait(); err != nil {
		return err
	}
	slog.Info("server shutdown complete")
	return nil
}
