package application

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"time"

	"dogfight/server/protocol"
)

var (
	ErrPlayerExists   = errors.New("application: player already exists")
	ErrPlayerNotFound = errors.New("application: player not found")
)

// Store はプレイヤーと弾丸の権威的な状態です。
// ルームの goroutine からのみ触るためロックは持ちません。返す値はすべてコピーです。
type Store struct {
	players map[string]Player
	bullets map[string]Bullet

	nextBulletID uint64
}

func NewStore() *Store {
	return &Store{
		players: make(map[string]Player),
		bullets: make(map[string]Bullet),
	}
}

func (s *Store) AddPlayer(p Player) error {
	if _, ok := s.players[p.ID]; ok {
		return fmt.Errorf("%w: %s", ErrPlayerExists, p.ID)
	}
	s.players[p.ID] = p
	return nil
}

func (s *Store) Player(id string) (Player, bool) {
	p, ok := s.players[id]
	return p, ok
}

// RemovePlayer はプレイヤーを削除します。その所有する弾丸は残します。
func (s *Store) RemovePlayer(id string) bool {
	if _, ok := s.players[id]; !ok {
		return false
	}
	delete(s.players, id)
	return true
}

// SetPose は生存中のプレイヤーの姿勢を上書きします。
func (s *Store) SetPose(id string, position protocol.Vec3, rotation protocol.Quat) (Player, bool) {
	p, ok := s.players[id]
	if !ok || p.Dead {
		return Player{}, false
	}
	p.Position = position
	p.Rotation = rotation
	s.players[id] = p
	return p, true
}

// MarkDead は生存中のプレイヤーを撃墜済みにします。既に死亡していれば false です。
func (s *Store) MarkDead(id string) (Player, bool) {
	p, ok := s.players[id]
	if !ok || p.Dead {
		return Player{}, false
	}
	p.Dead = true
	s.players[id] = p
	return p, true
}

// Respawn はプレイヤーを指定の姿勢で生存状態に戻します。
func (s *Store) Respawn(id string, position protocol.Vec3, rotation protocol.Quat) (Player, error) {
	p, ok := s.players[id]
	if !ok {
		return Player{}, fmt.Errorf("%w: %s", ErrPlayerNotFound, id)
	}
	p.Position = position
	p.Rotation = rotation
	p.Dead = false
	s.players[id] = p
	return p, nil
}

// Snapshot は全プレイヤーの新しいマップを返します。
func (s *Store) Snapshot() protocol.Snapshot {
	out := make(protocol.Snapshot, len(s.players))
	for id, p := range s.players {
		out[id] = p.Record()
	}
	return out
}

func (s *Store) NumPlayers() int {
	return len(s.players)
}

// AddBullet は bullet_<n> 形式のIDを採番して弾丸を登録します。
func (s *Store) AddBullet(ownerID string, position, velocity protocol.Vec3, now time.Time, life time.Duration) Bullet {
	seq := s.nextBulletID
	s.nextBulletID++
	b := Bullet{
		ID:        fmt.Sprintf("bullet_%d", seq),
		OwnerID:   ownerID,
		Position:  position,
		Velocity:  velocity,
		CreatedAt: now,
		Life:      life,
		seq:       seq,
	}
	s.bullets[b.ID] = b
	return b
}

func (s *Store) Bullet(id string) (Bullet, bool) {
	b, ok := s.bullets[id]
	return b, ok
}

func (s *Store) NumBullets() int {
	return len(s.bullets)
}

// ExpireBullets は寿命に達した弾丸を取り除き、発射順に返します。
func (s *Store) ExpireBullets(now time.Time) []Bullet {
	var expired []Bullet
	for id, b := range s.bullets {
		if b.Expired(now) {
			expired = append(expired, b)
			delete(s.bullets, id)
		}
	}
	slices.SortFunc(expired, func(a, b Bullet) int {
		return cmp.Compare(a.seq, b.seq)
	})
	return expired
}
