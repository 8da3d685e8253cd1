package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"dogfight/server/protocol"
)

func TestNewLogger_Formats(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "json", slog.LevelInfo)
	logger.Debug("hidden")
	logger.Info("player joined", "playerID", "a")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "player joined", rec["msg"])
	assert.Equal(t, "a", rec["playerID"])

	buf.Reset()
	NewLogger(&buf, "text", slog.LevelDebug).Debug("tick", "players", 2)
	assert.Contains(t, buf.String(), "msg=tick")
	assert.Contains(t, buf.String(), "players=2")
}

func TestSetup_WithoutEndpointUsesLocalLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, shutdown, err := Setup(context.Background(), Config{ServiceName: "dogfight", LogLevel: slog.LevelWarn}, &buf)
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	logger.Info("ignored")
	logger.Warn("dropped frame")
	assert.NotContains(t, buf.String(), "ignored")
	assert.Contains(t, buf.String(), "dropped frame")
	assert.NoError(t, shutdown(context.Background()))
}

// memoryExporter は受け取ったログ本文を保持します。
type memoryExporter struct {
	mu     sync.Mutex
	bodies []string
}

func (e *memoryExporter) Export(_ context.Context, records []sdklog.Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range records {
		e.bodies = append(e.bodies, r.Body().AsString())
	}
	return nil
}

func (e *memoryExporter) Shutdown(context.Context) error   { return nil }
func (e *memoryExporter) ForceFlush(context.Context) error { return nil }

func (e *memoryExporter) Bodies() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.bodies...)
}

func TestTeeLogger_KeepsLocalOutput(t *testing.T) {
	var buf bytes.Buffer
	exp := &memoryExporter{}
	lp := sdklog.NewLoggerProvider(sdklog.WithProcessor(sdklog.NewSimpleProcessor(exp)))
	t.Cleanup(func() { _ = lp.Shutdown(context.Background()) })

	logger := teeLogger(NewLogger(&buf, "text", slog.LevelWarn), lp)
	logger.Info("below local level")
	logger.Warn("dropped frame", "sessionID", "s1")

	assert.Contains(t, buf.String(), "dropped frame")
	assert.Contains(t, buf.String(), "sessionID=s1")
	assert.NotContains(t, buf.String(), "below local level")
	assert.Contains(t, exp.Bodies(), "dropped frame")
}

func TestEndpointOptions(t *testing.T) {
	assert.Len(t, traceEndpoint("collector:4317"), 2)
	assert.Len(t, traceEndpoint("http://collector:4317"), 1)
	assert.Len(t, logEndpoint("collector:4317"), 2)
	assert.Len(t, logEndpoint("https://collector:4317"), 1)
}

func TestGameRecorder_WithNoopMeter(t *testing.T) {
	rec, err := NewGameRecorder(noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	rec.CommandHandled(ctx, protocol.TypePlayerShoot, true)
	rec.CommandHandled(ctx, protocol.TypePlayerUpdate, false)
	rec.PlayersChanged(ctx, 1)
	rec.BulletsChanged(ctx, -1)
}
