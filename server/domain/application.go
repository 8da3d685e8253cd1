package domain

import (
	"context"
	"time"

	"dogfight/server/protocol"
)

// Application はルームに注入されるゲームロジックです。
// すべてのメソッドはルームの goroutine からのみ呼ばれるため、実装はロック不要です。
// 戻り値の Delivery は返された順に配送されます。
type Application interface {
	Join(ctx context.Context, sessionID SessionID, now time.Time) []Delivery
	Leave(ctx context.Context, sessionID SessionID, now time.Time) []Delivery
	HandleCommand(ctx context.Context, sessionID SessionID, cmd protocol.Command, now time.Time) []Delivery
	Tick(ctx context.Context, now time.Time) []Delivery
	// Deadline は次に Fire を呼ぶべき時刻を返します。予定がなければ false です。
	Deadline() (time.Time, bool)
	Fire(ctx context.Context, now time.Time) []Delivery
}

type Audience uint8

const (
	// AudienceSession は SessionID のセッションだけに送ります。
	AudienceSession Audience = iota + 1
	// AudienceAll はルーム内の全セッションに送ります。
	AudienceAll
	// AudienceOthers は SessionID 以外の全セッションに送ります。
	AudienceOthers
)

type Delivery struct {
	Audience  Audience
	SessionID SessionID
	Event     protocol.Event
}

func SendTo(id SessionID, ev protocol.Event) Delivery {
	return Delivery{Audience: AudienceSession, SessionID: id, Event: ev}
}

func Broadcast(ev protocol.Event) Delivery {
	return Delivery{Audience: AudienceAll, Event: ev}
}

func BroadcastExcept(id SessionID, ev protocol.Event) Delivery {
	return Delivery{Audience: AudienceOthers, SessionID: id, Event: ev}
}
