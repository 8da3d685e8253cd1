package handler

import (
	"log/slog"
	"net/http"

	"github.com/coder/websocket"

	adapterwebsocket "dogfight/server/adapter/websocket"
	"dogfight/server/domain"
	"dogfight/server/protocol"
)

type AcceptConfig struct {
	Endpoint domain.EndpointConfig
	// ReadLimit は受信フレームの最大バイト数です。0 ならライブラリの既定値。
	ReadLimit int64
	// OriginPatterns が空なら Origin チェックをスキップします。
	OriginPatterns []string
}

type AcceptHandler struct {
	pubsub domain.PubSub
	roomID domain.RoomID
	cfg    AcceptConfig
}

func NewAcceptHandler(pubsub domain.PubSub, roomID domain.RoomID, cfg AcceptConfig) *AcceptHandler {
	return &AcceptHandler{pubsub: pubsub, roomID: roomID, cfg: cfg}
}

func (h *AcceptHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:       protocol.Subprotocols(),
		OriginPatterns:     h.cfg.OriginPatterns,
		InsecureSkipVerify: len(h.cfg.OriginPatterns) == 0, // 開発用: Origin チェックをスキップ
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to accept", "err", err)
		return
	}
	if h.cfg.ReadLimit > 0 {
		conn.SetReadLimit(h.cfg.ReadLimit)
	}

	// サブプロトコルなしの接続は JSON として扱う
	codec := protocol.CodecFor(conn.Subprotocol())
	session := domain.NewSession()
	transport := adapterwebsocket.NewTransportFrom(conn, codec.Binary())
	connection := domain.NewConnection(session.ID(), transport, codec)
	endpoint, err := domain.NewSessionEndpoint(ctx, session, connection, h.pubsub, h.roomID, h.cfg.Endpoint)
	if err != nil {
		slog.ErrorContext(ctx, "failed to create session endpoint", "err", err)
		_ = conn.Close(websocket.StatusInternalError, "initialization failed")
		return
	}
	slog.DebugContext(ctx, "accepted new connection", "sessionID", session.ID(), "codec", codec.Name(), "remoteAddr", r.RemoteAddr)
	if err := endpoint.Run(); err != nil {
		slog.WarnContext(ctx, "session endpoint closed", "sessionID", session.ID(), "err", err)
		return
	}
}
