package domain

import (
	"context"
)

//go:generate go tool mockgen -destination=./mocks/transport_mock.go -package=mocks . Transport

// Transport は Connection（物理接続）が依存するI/O境界です。
// 相手が正常にクローズした場合 Read は io.EOF を返します。
type Transport interface {
	Read(ctx context.Context) (data []byte, err error)
	Write(ctx context.Context, data []byte) error
	Ping(ctx context.Context) error
	Close(code int32, reason string) error
}

// WebSocket のクローズコード
const (
	CloseCodeNormal          int32 = 1000
	CloseCodeGoingAway       int32 = 1001
	CloseCodePolicyViolation int32 = 1008
	CloseCodeInternalError   int32 = 1011
)

func closeCodeFor(reason CloseReason) int32 {
	switch reason {
	case CloseReasonShutdown:
		return CloseCodeGoingAway
	case CloseReasonIdle:
		return CloseCodePolicyViolation
	case CloseReasonTransport:
		return CloseCodeInternalError
	default:
		return CloseCodeNormal
	}
}
