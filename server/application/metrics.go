package application

import (
	"context"

	"dogfight/server/protocol"
)

// Recorder はゲームのカウンターを受け取ります。
type Recorder interface {
	CommandHandled(ctx context.Context, t protocol.EventType, applied bool)
	PlayersChanged(ctx context.Context, delta int64)
	BulletsChanged(ctx context.Context, delta int64)
}

// NopRecorder は何も記録しない Recorder です。
type NopRecorder struct{}

func (NopRecorder) CommandHandled(context.Context, protocol.EventType, bool) {}
func (NopRecorder) PlayersChanged(context.Context, int64)                    {}
func (NopRecorder) BulletsChanged(context.Context, int64)                    {}
