package application

import (
	"time"

	"dogfight/server/protocol"
)

// Bullet はフィールド上の弾丸を表す構造体です。
// サーバーは位置を積分せず、経過時間で寿命だけを判定します。
type Bullet struct {
	ID        string
	OwnerID   string // 所有者が退出しても弾丸は残る
	Position  protocol.Vec3
	Velocity  protocol.Vec3
	CreatedAt time.Time
	Life      time.Duration

	seq uint64
}

// Expired は now 時点で寿命に達しているかを返します。
func (b Bullet) Expired(now time.Time) bool {
	return now.Sub(b.CreatedAt) >= b.Life
}

func (b Bullet) Record() protocol.BulletRecord {
	return protocol.BulletRecord{
		ID:        b.ID,
		OwnerID:   b.OwnerID,
		Position:  b.Position,
		Velocity:  b.Velocity,
		StartTime: b.CreatedAt.UnixMilli(),
		Life:      b.Life.Milliseconds(),
	}
}
