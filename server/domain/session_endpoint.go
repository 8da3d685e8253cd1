package domain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"dogfight/server/protocol"
)

var (
	// ErrBackpressure は書き込みチャネルが満杯の場合に返されるエラーです。
	ErrBackpressure = errors.New("write channel is full, apply backpressure")
	// ErrInitializationFailed はセッションエンドポイントの初期化に失敗した場合に返されるエラーです。
	ErrInitializationFailed = errors.New("failed to initialize session endpoint")
	// ErrSessionIdle は受信とpongが途絶えたセッションを閉じるときのエラーです。
	ErrSessionIdle = errors.New("session is idle")
	// ErrSessionClosed はサーバー側から Close されたときのエラーです。
	ErrSessionClosed = errors.New("session closed by server")
	ErrTransportRead  = errors.New("transport read failed")
	ErrTransportWrite = errors.New("transport write failed")
)

type EndpointConfig struct {
	IdleTimeout       time.Duration
	IdleCheckInterval time.Duration
	PingInterval      time.Duration
	WriteQueueSize    int

	// LeaveRetryInterval は leave 配送1回あたりの待ち時間です。
	// ルームが購読している間は届くまで繰り返します。
	LeaveRetryInterval time.Duration
}

func DefaultEndpointConfig() EndpointConfig {
	return EndpointConfig{
		IdleTimeout:        30 * time.Second,
		IdleCheckInterval:  time.Second,
		PingInterval:       10 * time.Second,
		WriteQueueSize:     1024,
		LeaveRetryInterval: time.Second,
	}
}

// SessionEndpoint は1接続をルームに繋ぎます。
// 受信フレームを Command にして RoomTopic へ、SessionTopic のイベントを接続のコーデックで書き出します。
type SessionEndpoint struct {
	ctx    context.Context
	cancel context.CancelFunc

	session    *Session
	connection *Connection
	pubsub     PubSub
	roomID     RoomID
	cfg        EndpointConfig

	ctrlCh  chan endpointEvent // 制御用チャネル
	writeCh chan []byte        // 書き込み用チャネル

	// lifecycle
	closed atomic.Bool
}

// NewSessionEndpoint は parent が終わるとシャットダウンとして閉じるエンドポイントを作ります。
func NewSessionEndpoint(parent context.Context, session *Session, connection *Connection, pubsub PubSub, roomID RoomID, cfg EndpointConfig) (*SessionEndpoint, error) {
	if parent == nil {
		return nil, ErrInitializationFailed
	}
	if session == nil {
		return nil, ErrInitializationFailed
	}
	if connection == nil {
		return nil, ErrInitializationFailed
	}
	if pubsub == nil {
		return nil, ErrInitializationFailed
	}
	if roomID.IsEmpty() {
		return nil, ErrInitializationFailed
	}
	if cfg.WriteQueueSize <= 0 {
		cfg.WriteQueueSize = DefaultEndpointConfig().WriteQueueSize
	}
	if cfg.IdleCheckInterval <= 0 {
		cfg.IdleCheckInterval = DefaultEndpointConfig().IdleCheckInterval
	}
	if cfg.LeaveRetryInterval <= 0 {
		cfg.LeaveRetryInterval = DefaultEndpointConfig().LeaveRetryInterval
	}
	ctx, cancel := context.WithCancel(parent)
	se := &SessionEndpoint{
		ctx:        ctx,
		cancel:     cancel,
		session:    session,
		connection: connection,
		pubsub:     pubsub,
		roomID:     roomID,
		cfg:        cfg,
		ctrlCh:     make(chan endpointEvent, 16),
		writeCh:    make(chan []byte, cfg.WriteQueueSize),
	}
	return se, nil
}

// Run は接続が終わるまでブロックします。正常なクローズとシャットダウンでは nil を返します。
func (se *SessionEndpoint) Run() error {
	// 自分宛のメッセージを購読
	sessionTopic := SessionTopic(se.session.ID())
	msgCh := se.pubsub.Subscribe(sessionTopic)
	defer se.pubsub.Unsubscribe(sessionTopic, msgCh)

	// join はループ開始前に送る。以降の command は必ず join の後ろに並ぶ
	if err := se.pubsub.PublishWait(se.ctx, RoomTopic(se.roomID), Message{Kind: MessageJoin, SessionID: se.session.ID()}); err != nil {
		se.close(CloseReasonShutdown)
		return nil
	}
	slog.InfoContext(se.ctx, "session endpoint started", "sessionID", se.session.ID(), "codec", se.connection.Codec().Name())

	eg, ctx := errgroup.WithContext(se.ctx)
	eg.Go(func() error {
		return se.ownerLoop(ctx)
	})
	eg.Go(func() error {
		return se.readLoop(ctx)
	})
	eg.Go(func() error {
		return se.writeLoop(ctx)
	})
	eg.Go(func() error {
		se.subscribeLoop(ctx, msgCh)
		return nil
	})
	eg.Go(func() error {
		NewHeartbeatService(se.cfg.PingInterval, se.session, se.connection).Run(ctx)
		return nil
	})

	err := eg.Wait()
	se.leave()

	reason := se.closeReasonFor(err)
	se.close(reason)
	slog.InfoContext(context.WithoutCancel(se.ctx), "session endpoint stopped", "sessionID", se.session.ID(), "reason", reason, "err", err)

	switch reason {
	case CloseReasonIdle, CloseReasonTransport:
		return err
	default:
		return nil
	}
}

func (se *SessionEndpoint) closeReasonFor(err error) CloseReason {
	var req closeRequest
	switch {
	case errors.As(err, &req):
		return req.reason
	case err == nil:
		if se.ctx.Err() != nil {
			return CloseReasonShutdown
		}
		return CloseReasonNormal
	case errors.Is(err, io.EOF):
		return CloseReasonNormal
	case errors.Is(err, ErrSessionIdle):
		return CloseReasonIdle
	default:
		return CloseReasonTransport
	}
}

// leave はルームへの退出通知です。シャットダウン中でも届くよう独立した ctx で送ります。
// ルームが詰まっていても購読を続けている限り再送し、ルームが止まっていれば諦めます。
func (se *SessionEndpoint) leave() {
	ctx := context.WithoutCancel(se.ctx)
	topic := RoomTopic(se.roomID)
	msg := Message{Kind: MessageLeave, SessionID: se.session.ID()}
	for attempt := 1; ; attempt++ {
		err := se.publishLeave(ctx, topic, msg)
		if err == nil {
			return
		}
		if se.pubsub.Subscribers(topic) == 0 {
			slog.WarnContext(ctx, "room stopped before leave was delivered", "sessionID", se.session.ID(), "err", err)
			return
		}
		slog.WarnContext(ctx, "room busy, retrying leave", "sessionID", se.session.ID(), "attempt", attempt, "err", err)
	}
}

func (se *SessionEndpoint) publishLeave(ctx context.Context, topic Topic, msg Message) error {
	ctx, cancel := context.WithTimeout(ctx, se.cfg.LeaveRetryInterval)
	defer cancel()
	return se.pubsub.PublishWait(ctx, topic, msg)
}

func (se *SessionEndpoint) Send(data []byte) error {
	select {
	case se.writeCh <- data:
		return nil
	default:
		return ErrBackpressure
	}
}

// Close はサーバー側から reason でセッションを閉じます。CloseReasonNone は Normal として扱います。
func (se *SessionEndpoint) Close(ctx context.Context, reason CloseReason) {
	if reason == CloseReasonNone {
		reason = CloseReasonNormal
	}
	se.sendCtrlEvent(ctx, endpointEvent{kind: evClose, reason: reason})
}

// ownerLoop は論理セッションの状態を監視し、必要に応じて接続の管理を行います。
func (se *SessionEndpoint) ownerLoop(ctx context.Context) error {
	ticker := time.NewTicker(se.cfg.IdleCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-se.ctrlCh:
			if err := se.handleControlEvent(ctx, ev); err != nil {
				return err
			}
		case <-ticker.C:
			if ok, reason := se.session.IsIdle(se.cfg.IdleTimeout); ok {
				return fmt.Errorf("%w: %s", ErrSessionIdle, reason)
			}
		}
	}
}

func (se *SessionEndpoint) readLoop(ctx context.Context) error {
	for {
		data, err := se.connection.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("%w: %w", ErrTransportRead, err)
		}
		se.session.TouchRead()
		se.handleData(ctx, data)
	}
}

func (se *SessionEndpoint) writeLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case data := <-se.writeCh:
			if err := se.connection.Write(ctx, data); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("%w: %w", ErrTransportWrite, err)
			}
			se.session.TouchWrite()
		}
	}
}

// subscribeLoop はpubsubからのイベントを接続のコーデックでエンコードしwriteChに転送します。
func (se *SessionEndpoint) subscribeLoop(ctx context.Context, msgCh <-chan Message) {
	codec := se.connection.Codec()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-msgCh:
			if msg.Kind != MessageEvent {
				continue
			}
			data, err := protocol.EncodeEvent(codec, msg.Event)
			if err != nil {
				slog.ErrorContext(ctx, "failed to encode event", "sessionID", se.session.ID(), "type", msg.Event.Type, "err", err)
				continue
			}
			if err := se.Send(data); err != nil {
				slog.WarnContext(ctx, "subscribeLoop: writeCh full, message dropped", "sessionID", se.session.ID(), "type", msg.Event.Type)
			}
		}
	}
}

func (se *SessionEndpoint) close(reason CloseReason) {
	if !se.closed.CompareAndSwap(false, true) {
		return
	}
	se.cancel()
	se.session.Close(reason)
	se.connection.Close(reason)
}

// handleData は受信フレームを Command にしてルームへ送ります。壊れたフレームは捨てて接続を維持します。
func (se *SessionEndpoint) handleData(ctx context.Context, data []byte) {
	frame, err := se.connection.Codec().Unmarshal(data)
	if err != nil {
		slog.WarnContext(ctx, "failed to decode frame", "sessionID", se.session.ID(), "err", err)
		return
	}
	cmd, err := protocol.DecodeCommand(frame)
	if err != nil {
		slog.WarnContext(ctx, "invalid command", "sessionID", se.session.ID(), "type", frame.Type, "err", err)
		return
	}
	err = se.pubsub.Publish(ctx, RoomTopic(se.roomID), Message{
		Kind:      MessageCommand,
		SessionID: se.session.ID(),
		Command:   cmd,
	})
	if err != nil {
		slog.WarnContext(ctx, "room inbox full, command dropped", "sessionID", se.session.ID(), "type", cmd.CommandType(), "err", err)
	}
}

// handleControlEvent は制御チャネルからのイベントを処理し論理セッションの状態を更新する唯一の関数です。
func (se *SessionEndpoint) handleControlEvent(ctx context.Context, ev endpointEvent) error {
	switch ev.kind {
	case evClose:
		return closeRequest{reason: ev.reason}
	default:
		slog.WarnContext(ctx, "unknown endpoint event kind", "kind", ev.kind)
		return nil
	}
}

func (se *SessionEndpoint) sendCtrlEvent(ctx context.Context, ev endpointEvent) {
	select {
	case se.ctrlCh <- ev:
	case <-ctx.Done():
	case <-se.ctx.Done():
	}
}
