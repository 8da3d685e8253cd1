package application

import "dogfight/server/protocol"

// Player はワールド上の1機です。IDはセッションIDと同じ値です。
type Player struct {
	ID       string
	Position protocol.Vec3
	Rotation protocol.Quat
	Dead     bool
}

func (p Player) Alive() bool {
	return !p.Dead
}

func (p Player) Record() protocol.PlayerRecord {
	return protocol.PlayerRecord{
		ID:       p.ID,
		Position: p.Position,
		Rotation: p.Rotation,
		IsDead:   p.Dead,
	}
}
