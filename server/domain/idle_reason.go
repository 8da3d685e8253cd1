package domain

import (
	"fmt"
	"strings"
)

// IdleReason は IsIdle が観測した「止まっている経路」のビット集合です。
type IdleReason uint8

const (
	IdleNone     IdleReason = 0
	IdleRead     IdleReason = 1 << 0
	IdleWrite    IdleReason = 1 << 1
	IdlePong     IdleReason = 1 << 2
	IdleDisabled IdleReason = 1 << 7 // timeout<=0
)

// 表示順
var idleReasonNames = []struct {
	bit  IdleReason
	name string
}{
	{IdleRead, "read"},
	{IdleWrite, "write"},
	{IdlePong, "pong"},
}

func (r IdleReason) Has(x IdleReason) bool { return r&x != 0 }

// Closes はこの組み合わせでセッションを切断すべきかを返します。
// 受信も pong も途絶えたときだけ切断します。送信側の停止は判定に使いません。
func (r IdleReason) Closes() bool {
	return r.Has(IdleRead) && r.Has(IdlePong)
}

func (r IdleReason) String() string {
	switch r {
	case IdleNone:
		return "none"
	case IdleDisabled:
		return "disabled"
	}
	parts := make([]string, 0, len(idleReasonNames))
	for _, n := range idleReasonNames {
		if r.Has(n.bit) {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return fmt.Sprintf("unknown(%d)", r)
	}
	return strings.Join(parts, "|")
}
