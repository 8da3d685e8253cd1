package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const instrumentationName = "dogfight"

type Config struct {
	// Endpoint が空なら OTLP へは送らずローカルのハンドラーだけを使います。
	Endpoint    string
	ServiceName string
	LogLevel    slog.Level
	LogFormat   string // text | json
}

// ShutdownFunc はプロバイダーをフラッシュして停止します。
type ShutdownFunc func(context.Context) error

// NewLogger は format に応じたローカルの slog.Logger を作ります。
func NewLogger(w io.Writer, format string, level slog.Leveler) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Setup はトレースとログのプロバイダーをグローバルに設定し、使うべきロガーを返します。
func Setup(ctx context.Context, cfg Config, w io.Writer) (*slog.Logger, ShutdownFunc, error) {
	local := NewLogger(w, cfg.LogFormat, cfg.LogLevel)
	if cfg.Endpoint == "" {
		return local, func(context.Context) error { return nil }, nil
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
	))
	if err != nil {
		return nil, nil, fmt.Errorf("telemetry: resource: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, traceEndpoint(cfg.Endpoint)...)
	if err != nil {
		return nil, nil, fmt.Errorf("telemetry: trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)

	logExporter, err := otlploggrpc.New(ctx, logEndpoint(cfg.Endpoint)...)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, nil, fmt.Errorf("telemetry: log exporter: %w", err)
	}
	lp := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)),
		sdklog.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	logger := teeLogger(local, lp)
	shutdown := func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), lp.Shutdown(ctx))
	}
	return logger, shutdown, nil
}

// teeLogger はローカル出力を残したまま OTLP にも同じレコードを送るロガーを作ります。
func teeLogger(local *slog.Logger, lp *sdklog.LoggerProvider) *slog.Logger {
	return slog.New(slog.NewMultiHandler(
		local.Handler(),
		otelslog.NewHandler(instrumentationName, otelslog.WithLoggerProvider(lp)),
	))
}

// スキーム付きならURL、なければ host:port の平文gRPCとして扱う
func traceEndpoint(endpoint string) []otlptracegrpc.Option {
	if strings.Contains(endpoint, "://") {
		return []otlptracegrpc.Option{otlptracegrpc.WithEndpointURL(endpoint)}
	}
	return []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint), otlptracegrpc.WithInsecure()}
}

func logEndpoint(endpoint string) []otlploggrpc.Option {
	if strings.Contains(endpoint, "://") {
		return []otlploggrpc.Option{otlploggrpc.WithEndpointURL(endpoint)}
	}
	return []otlploggrpc.Option{otlploggrpc.WithEndpoint(endpoint), otlploggrpc.WithInsecure()}
}
