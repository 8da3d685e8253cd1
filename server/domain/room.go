package domain

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"dogfight/server/protocol"
)

type RoomID string

// DefaultRoomID はサーバーが1つだけ持つ共有ワールドのIDです。
const DefaultRoomID RoomID = "world"

func (id RoomID) String() string { return string(id) }
func (id RoomID) IsEmpty() bool  { return id == "" }

const DefaultTickInterval = time.Second / 30

var ErrNoApplication = errors.New("room has no application")

// Room はワールド状態を所有する唯一の goroutine です。
// join/leave/command は RoomTopic から1本のチャネルで受け取るため、
// 同じセッションからのメッセージは送信順に処理されます。
type Room struct {
	ID       RoomID
	sessions map[SessionID]struct{}

	pubsub      PubSub
	application Application

	tickInterval time.Duration
	clock        func() time.Time
	tracer       trace.Tracer
}

type RoomOption func(*Room)

func WithTickInterval(d time.Duration) RoomOption {
	return func(r *Room) {
		if d > 0 {
			r.tickInterval = d
		}
	}
}

// WithClock はテスト用に時刻の取得元を差し替えます。
func WithClock(clock func() time.Time) RoomOption {
	return func(r *Room) {
		if clock != nil {
			r.clock = clock
		}
	}
}

func NewRoom(id RoomID, pubsub PubSub, application Application, opts ...RoomOption) *Room {
	r := &Room{
		ID:           id,
		sessions:     make(map[SessionID]struct{}),
		pubsub:       pubsub,
		application:  application,
		tickInterval: DefaultTickInterval,
		clock:        time.Now,
		tracer:       otel.Tracer("dogfight/server/domain"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Room) Topic() Topic {
	return RoomTopic(r.ID)
}

// Run は ctx が終わるまでルームのイベントループを回します。
// リスポーン等の予約は Application.Deadline から単一のタイマーに載せ直します。
func (r *Room) Run(ctx context.Context) error {
	if r.application == nil {
		return ErrNoApplication
	}
	msgCh := r.pubsub.Subscribe(r.Topic())
	defer r.pubsub.Unsubscribe(r.Topic(), msgCh)

	ticker := time.NewTicker(r.tickInterval)
	defer ticker.Stop()

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()
	// 開始前から予約済みの期限も拾う
	timerC := r.rearm(timer)

	slog.InfoContext(ctx, "room started", "roomID", r.ID, "tickInterval", r.tickInterval)
	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "room stopped", "roomID", r.ID, "sessions", len(r.sessions))
			return nil
		case msg := <-msgCh:
			r.handleMessage(ctx, msg)
		case <-ticker.C:
			r.deliver(ctx, r.application.Tick(ctx, r.clock()))
		case <-timerC:
			r.deliver(ctx, r.application.Fire(ctx, r.clock()))
		}
		timerC = r.rearm(timer)
	}
}

func (r *Room) rearm(timer *time.Timer) <-chan time.Time {
	deadline, ok := r.application.Deadline()
	if !ok {
		timer.Stop()
		return nil
	}
	timer.Reset(max(deadline.Sub(r.clock()), 0))
	return timer.C
}

func (r *Room) handleMessage(ctx context.Context, msg Message) {
	switch msg.Kind {
	case MessageJoin:
		if _, ok := r.sessions[msg.SessionID]; ok {
			slog.WarnContext(ctx, "session already joined", "roomID", r.ID, "sessionID", msg.SessionID)
			return
		}
		ctx, span := r.startSpan(ctx, "room.join", msg.SessionID)
		defer span.End()
		r.sessions[msg.SessionID] = struct{}{}
		slog.InfoContext(ctx, "session joined room", "roomID", r.ID, "sessionID", msg.SessionID, "sessions", len(r.sessions))
		r.deliver(ctx, r.application.Join(ctx, msg.SessionID, r.clock()))
	case MessageLeave:
		if _, ok := r.sessions[msg.SessionID]; !ok {
			return
		}
		ctx, span := r.startSpan(ctx, "room.leave", msg.SessionID)
		defer span.End()
		delete(r.sessions, msg.SessionID)
		slog.InfoContext(ctx, "session left room", "roomID", r.ID, "sessionID", msg.SessionID, "sessions", len(r.sessions))
		r.deliver(ctx, r.application.Leave(ctx, msg.SessionID, r.clock()))
	case MessageCommand:
		if _, ok := r.sessions[msg.SessionID]; !ok {
			slog.DebugContext(ctx, "command from unknown session ignored", "roomID", r.ID, "sessionID", msg.SessionID)
			return
		}
		if msg.Command == nil {
			return
		}
		ctx, span := r.startSpan(ctx, "room.command", msg.SessionID)
		defer span.End()
		span.SetAttributes(attribute.String("command.type", msg.Command.CommandType().String()))
		r.deliver(ctx, r.application.HandleCommand(ctx, msg.SessionID, msg.Command, r.clock()))
	default:
		slog.WarnContext(ctx, "unexpected room message", "roomID", r.ID, "kind", msg.Kind)
	}
}

func (r *Room) startSpan(ctx context.Context, name string, sessionID SessionID) (context.Context, trace.Span) {
	return r.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("room.id", r.ID.String()),
		attribute.String("session.id", sessionID.String()),
	))
}

func (r *Room) deliver(ctx context.Context, deliveries []Delivery) {
	for _, d := range deliveries {
		switch d.Audience {
		case AudienceSession:
			if _, ok := r.sessions[d.SessionID]; ok {
				r.SendTo(ctx, d.SessionID, d.Event)
			}
		case AudienceAll:
			r.Broadcast(ctx, d.Event)
		case AudienceOthers:
			r.BroadcastExcept(ctx, d.SessionID, d.Event)
		default:
			slog.WarnContext(ctx, "unknown delivery audience", "audience", d.Audience)
		}
	}
}

func (r *Room) Broadcast(ctx context.Context, ev protocol.Event) {
	for sessionID := range r.sessions {
		r.SendTo(ctx, sessionID, ev)
	}
}

func (r *Room) BroadcastExcept(ctx context.Context, except SessionID, ev protocol.Event) {
	for sessionID := range r.sessions {
		if sessionID == except {
			continue
		}
		r.SendTo(ctx, sessionID, ev)
	}
}

// SendTo は1セッションへイベントを送ります。受信側が詰まっている場合は捨てます。
func (r *Room) SendTo(ctx context.Context, sessionID SessionID, ev protocol.Event) {
	err := r.pubsub.Publish(ctx, SessionTopic(sessionID), Message{
		Kind:      MessageEvent,
		SessionID: sessionID,
		Event:     ev,
	})
	if err != nil {
		slog.WarnContext(ctx, "session inbox full, event dropped", "sessionID", sessionID, "type", ev.Type, "err", err)
	}
}
