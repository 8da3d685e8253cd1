package adapterwebsocket

import (
	"context"
	"errors"
	"io"

	"github.com/coder/websocket"

	"dogfight/server/domain"
)

type wsTransport struct {
	conn        *websocket.Conn
	messageType websocket.MessageType
}

// NewTransportFrom は coder/websocket の接続を domain.Transport にします。
// binary が true なら書き込みはバイナリフレームになります。
func NewTransportFrom(conn *websocket.Conn, binary bool) domain.Transport {
	mt := websocket.MessageText
	if binary {
		mt = websocket.MessageBinary
	}
	return &wsTransport{conn: conn, messageType: mt}
}

func (t *wsTransport) Read(ctx context.Context) ([]byte, error) {
	_, data, err := t.conn.Read(ctx)
	if err != nil {
		if isNormalClosure(err) {
			return nil, io.EOF
		}
		return nil, err
	}
	return data, nil
}

func (t *wsTransport) Write(ctx context.Context, data []byte) error {
	return t.conn.Write(ctx, t.messageType, data)
}

func (t *wsTransport) Ping(ctx context.Context) error {
	return t.conn.Ping(ctx)
}

func (t *wsTransport) Close(code int32, reason string) error {
	return t.conn.Close(websocket.StatusCode(code), reason)
}

// isNormalClosure は相手からの正常なクローズかを判定します。
func isNormalClosure(err error) bool {
	if errors.Is(err, io.EOF) {
		return true
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway, websocket.StatusNoStatusRcvd:
		return true
	default:
		return false
	}
}
