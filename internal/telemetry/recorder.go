package telemetry

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"dogfight/server/application"
	"dogfight/server/protocol"
)

// GameRecorder は application.Recorder を OpenTelemetry のメトリクスで実装します。
type GameRecorder struct {
	commands metric.Int64Counter
	players  metric.Int64UpDownCounter
	bullets  metric.Int64UpDownCounter
}

var _ application.Recorder = (*GameRecorder)(nil)

func NewGameRecorder(meter metric.Meter) (*GameRecorder, error) {
	commands, err1 := meter.Int64Counter("dogfight.commands",
		metric.WithDescription("Client commands handled by the game"),
		metric.WithUnit("{command}"),
	)
	players, err2 := meter.Int64UpDownCounter("dogfight.players",
		metric.WithDescription("Players currently in the world"),
		metric.WithUnit("{player}"),
	)
	bullets, err3 := meter.Int64UpDownCounter("dogfight.bullets",
		metric.WithDescription("Bullets currently in flight"),
		metric.WithUnit("{bullet}"),
	)
	if err := errors.Join(err1, err2, err3); err != nil {
		return nil, err
	}
	return &GameRecorder{commands: commands, players: players, bullets: bullets}, nil
}

func (r *GameRecorder) CommandHandled(ctx context.Context, t protocol.EventType, applied bool) {
	outcome := "ignored"
	if applied {
		outcome = "applied"
	}
	r.commands.Add(ctx, 1, metric.WithAttributes(
		attribute.String("command.type", t.String()),
		attribute.String("command.outcome", outcome),
	))
}

func (r *GameRecorder) PlayersChanged(ctx context.Context, delta int64) {
	r.players.Add(ctx, delta)
}

func (r *GameRecorder) BulletsChanged(ctx context.Context, delta int64) {
	r.bullets.Add(ctx, delta)
}
