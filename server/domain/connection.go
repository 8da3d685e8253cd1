package domain

import (
	"context"

	"dogfight/server/protocol"
)

// Connection は物理的な接続を表します。
type Connection struct {
	SessionID SessionID
	transport Transport
	codec     protocol.Codec
}

// NewConnection は transport 上にセッションの接続を作ります。codec が nil なら JSON を使います。
func NewConnection(sessionID SessionID, transport Transport, codec protocol.Codec) *Connection {
	if codec == nil {
		codec = protocol.JSON
	}
	return &Connection{
		SessionID: sessionID,
		transport: transport,
		codec:     codec,
	}
}

func (c *Connection) Codec() protocol.Codec {
	return c.codec
}

func (c *Connection) Write(ctx context.Context, data []byte) error {
	return c.transport.Write(ctx, data)
}

func (c *Connection) Read(ctx context.Context) ([]byte, error) {
	return c.transport.Read(ctx)
}

func (c *Connection) Ping(ctx context.Context) error {
	return c.transport.Ping(ctx)
}

func (c *Connection) Close(reason CloseReason) {
	_ = c.transport.Close(closeCodeFor(reason), reason.String())
}
