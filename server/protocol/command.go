package protocol

import (
	"fmt"

	"dogfight/utils"
)

// Command はクライアントから届いたインテントです。
// 具体型は UpdateIntent / ShootIntent / CollisionReport のいずれかです。
type Command interface {
	CommandType() EventType
}

// UpdateIntent は player_update のペイロードです。
type UpdateIntent struct {
	Position Vec3 `json:"position" msgpack:"position"`
	Rotation Quat `json:"rotation" msgpack:"rotation"`
}

// ShootIntent は player_shoot のペイロードです。
type ShootIntent struct {
	Position Vec3 `json:"position" msgpack:"position"`
	Velocity Vec3 `json:"velocity" msgpack:"velocity"`
}

// CollisionReport は player_collision のペイロードです。
type CollisionReport struct {
	Type string `json:"type" msgpack:"type"`
}

// CollisionUnknown はtypeが省略された衝突報告に使う名前です。
const CollisionUnknown = "unknown"

func (UpdateIntent) CommandType() EventType    { return TypePlayerUpdate }
func (ShootIntent) CommandType() EventType     { return TypePlayerShoot }
func (CollisionReport) CommandType() EventType { return TypePlayerCollision }

func (u UpdateIntent) validate() error {
	if !utils.Finite(u.Position.X, u.Position.Y, u.Position.Z, u.Rotation.X, u.Rotation.Y, u.Rotation.Z, u.Rotation.W) {
		return ErrNonFiniteNumber
	}
	return nil
}

func (s ShootIntent) validate() error {
	if !utils.Finite(s.Position.X, s.Position.Y, s.Position.Z, s.Velocity.X, s.Velocity.Y, s.Velocity.Z) {
		return ErrNonFiniteNumber
	}
	return nil
}

// DecodeCommand はフレームをクライアントインテントに変換します。
func DecodeCommand(f Frame) (Command, error) {
	switch f.Type {
	case TypePlayerUpdate:
		cmd, err := DecodePayload[UpdateIntent](f)
		if err != nil {
			return nil, err
		}
		if err := cmd.validate(); err != nil {
			return nil, err
		}
		return cmd, nil
	case TypePlayerShoot:
		cmd, err := DecodePayload[ShootIntent](f)
		if err != nil {
			return nil, err
		}
		if err := cmd.validate(); err != nil {
			return nil, err
		}
		return cmd, nil
	case TypePlayerCollision:
		// 衝突の申告は payload の形に関係なく受け付ける。読めない payload は type 不明として扱う
		var cmd CollisionReport
		if f.HasPayload() {
			if decoded, err := DecodePayload[CollisionReport](f); err == nil {
				cmd = decoded
			}
		}
		if cmd.Type == "" {
			cmd.Type = CollisionUnknown
		}
		return cmd, nil
	case "":
		return nil, ErrMissingType
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, f.Type)
	}
}
