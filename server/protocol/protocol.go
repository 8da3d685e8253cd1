package protocol

import "errors"

// EventType はフレームエンベロープの type フィールドに入るイベント名です。
type EventType string

// サーバー → クライアント
const (
	TypeInitSelf        EventType = "init_self"
	TypePlayerJoined    EventType = "player_joined"
	TypePlayerLeft      EventType = "player_left"
	TypeBulletFired     EventType = "bullet_fired"
	TypeBulletRemoved   EventType = "bullet_removed"
	TypePlayerExploded  EventType = "player_exploded"
	TypePlayerReset     EventType = "player_reset"
	TypePlayerRespawned EventType = "player_respawned"
	TypeGameStateUpdate EventType = "game_state_update"
)

// クライアント → サーバー
const (
	TypePlayerUpdate    EventType = "player_update"
	TypePlayerShoot     EventType = "player_shoot"
	TypePlayerCollision EventType = "player_collision"
)

func (t EventType) String() string { return string(t) }

var (
	ErrEmptyFrame      = errors.New("protocol: empty frame")
	ErrMissingType     = errors.New("protocol: frame type is missing")
	ErrUnknownType     = errors.New("protocol: unknown frame type")
	ErrInvalidPayload  = errors.New("protocol: invalid payload")
	ErrNonFiniteNumber = errors.New("protocol: payload contains a non-finite number")
)

// Vec3 は位置・速度ベクトル (x, y, z) です。
type Vec3 struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
	Z float64 `json:"z" msgpack:"z"`
}

// Add は v + o を返します。
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

// Scale は v * s を返します。
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{X: v.X * s, Y: v.Y * s, Z: v.Z * s}
}

// Quat は姿勢を表す単位クォータニオン (x, y, z, w) です。
type Quat struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
	Z float64 `json:"z" msgpack:"z"`
	W float64 `json:"w" msgpack:"w"`
}

// IdentityQuat は回転なしの姿勢です。
var IdentityQuat = Quat{X: 0, Y: 0, Z: 0, W: 1}

// PlayerRecord はワイヤー上のプレイヤー表現です。
type PlayerRecord struct {
	ID       string `json:"id" msgpack:"id"`
	Position Vec3   `json:"position" msgpack:"position"`
	Rotation Quat   `json:"rotation" msgpack:"rotation"`
	IsDead   bool   `json:"isDead" msgpack:"isDead"`
}

// BulletRecord はワイヤー上の弾丸表現です。
// StartTime は ms epoch、Life は ms 単位です。
type BulletRecord struct {
	ID        string `json:"id" msgpack:"id"`
	OwnerID   string `json:"ownerId" msgpack:"ownerId"`
	Position  Vec3   `json:"position" msgpack:"position"`
	Velocity  Vec3   `json:"velocity" msgpack:"velocity"`
	StartTime int64  `json:"startTime" msgpack:"startTime"`
	Life      int64  `json:"life" msgpack:"life"`
}

// PositionAt は時刻 atMillis (ms epoch) における弾丸の位置を返します。
// サーバーは弾丸の位置を積分しないため、クライアントと同じ式で導出します。
func (b BulletRecord) PositionAt(atMillis int64) Vec3 {
	elapsed := float64(atMillis-b.StartTime) / 1000
	return b.Position.Add(b.Velocity.Scale(elapsed))
}

// Snapshot はプレイヤーID → PlayerRecord の全量マップです。
type Snapshot map[string]PlayerRecord
