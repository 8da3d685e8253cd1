package application

import (
	"context"
	"log/slog"
	"time"

	"dogfight/server/domain"
	"dogfight/server/protocol"
)

type Config struct {
	SpawnPosition protocol.Vec3
	SpawnRotation protocol.Quat
	BulletLife    time.Duration
	RespawnDelay  time.Duration
}

func DefaultConfig() Config {
	return Config{
		SpawnPosition: protocol.Vec3{X: 0, Y: 15, Z: 0},
		SpawnRotation: protocol.IdentityQuat,
		BulletLife:    5 * time.Second,
		RespawnDelay:  3 * time.Second,
	}
}

// Game はドッグファイトのルールを実装する domain.Application です。
// 衝突判定はクライアント申告を信頼し、撃墜とリスポーンの確定だけをサーバーが行います。
type Game struct {
	cfg      Config
	store    *Store
	respawns *RespawnQueue
	recorder Recorder
}

var _ domain.Application = (*Game)(nil)

type Option func(*Game)

func WithRecorder(r Recorder) Option {
	return func(g *Game) {
		if r != nil {
			g.recorder = r
		}
	}
}

func NewGame(cfg Config, opts ...Option) *Game {
	g := &Game{
		cfg:      cfg,
		store:    NewStore(),
		respawns: NewRespawnQueue(),
		recorder: NopRecorder{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Game) Join(ctx context.Context, sessionID domain.SessionID, now time.Time) []domain.Delivery {
	p := Player{
		ID:       sessionID.String(),
		Position: g.cfg.SpawnPosition,
		Rotation: g.cfg.SpawnRotation,
	}
	if err := g.store.AddPlayer(p); err != nil {
		slog.WarnContext(ctx, "join ignored", "playerID", p.ID, "err", err)
		return nil
	}
	g.recorder.PlayersChanged(ctx, 1)
	slog.InfoContext(ctx, "player joined", "playerID", p.ID, "players", g.store.NumPlayers())

	return []domain.Delivery{
		domain.SendTo(sessionID, protocol.NewInitSelf(p.ID, g.store.Snapshot())),
		domain.BroadcastExcept(sessionID, protocol.NewPlayerJoined(p.Record())),
	}
}

func (g *Game) Leave(ctx context.Context, sessionID domain.SessionID, now time.Time) []domain.Delivery {
	id := sessionID.String()
	if !g.store.RemovePlayer(id) {
		slog.DebugContext(ctx, "leave for unknown player ignored", "playerID", id)
		return nil
	}
	g.respawns.Cancel(id)
	g.recorder.PlayersChanged(ctx, -1)
	slog.InfoContext(ctx, "player left", "playerID", id, "players", g.store.NumPlayers())

	return []domain.Delivery{domain.Broadcast(protocol.NewPlayerLeft(id))}
}

func (g *Game) HandleCommand(ctx context.Context, sessionID domain.SessionID, cmd protocol.Command, now time.Time) []domain.Delivery {
	switch c := cmd.(type) {
	case protocol.UpdateIntent:
		return g.handleUpdate(ctx, sessionID.String(), c)
	case protocol.ShootIntent:
		return g.handleShoot(ctx, sessionID.String(), c, now)
	case protocol.CollisionReport:
		return g.handleCollision(ctx, sessionID.String(), c, now)
	default:
		slog.WarnContext(ctx, "unsupported command", "playerID", sessionID, "type", cmd.CommandType())
		return nil
	}
}

func (g *Game) handleUpdate(ctx context.Context, id string, c protocol.UpdateIntent) []domain.Delivery {
	// ブロードキャストは次の tick のスナップショットに任せる
	_, ok := g.store.SetPose(id, c.Position, c.Rotation)
	g.recorder.CommandHandled(ctx, protocol.TypePlayerUpdate, ok)
	if !ok {
		slog.DebugContext(ctx, "player_update ignored", "playerID", id)
	}
	return nil
}

func (g *Game) handleShoot(ctx context.Context, id string, c protocol.ShootIntent, now time.Time) []domain.Delivery {
	p, ok := g.store.Player(id)
	if !ok || p.Dead {
		g.recorder.CommandHandled(ctx, protocol.TypePlayerShoot, false)
		slog.DebugContext(ctx, "player_shoot ignored", "playerID", id)
		return nil
	}
	b := g.store.AddBullet(id, c.Position, c.Velocity, now, g.cfg.BulletLife)
	g.recorder.CommandHandled(ctx, protocol.TypePlayerShoot, true)
	g.recorder.BulletsChanged(ctx, 1)
	slog.DebugContext(ctx, "bullet fired", "playerID", id, "bulletID", b.ID)

	return []domain.Delivery{domain.Broadcast(protocol.NewBulletFired(b.Record()))}
}

func (g *Game) handleCollision(ctx context.Context, id string, c protocol.CollisionReport, now time.Time) []domain.Delivery {
	p, ok := g.store.MarkDead(id)
	g.recorder.CommandHandled(ctx, protocol.TypePlayerCollision, ok)
	if !ok {
		slog.DebugContext(ctx, "player_collision ignored", "playerID", id, "collision", c.Type)
		return nil
	}
	at := now.Add(g.cfg.RespawnDelay)
	g.respawns.Schedule(id, at)
	slog.InfoContext(ctx, "player exploded", "playerID", id, "collision", c.Type, "respawnAt", at)

	return []domain.Delivery{domain.Broadcast(protocol.NewPlayerExploded(id, p.Position))}
}

// Tick は寿命切れの弾丸を1件ずつ通知し、最後に全プレイヤーのスナップショットを送ります。
func (g *Game) Tick(ctx context.Context, now time.Time) []domain.Delivery {
	expired := g.store.ExpireBullets(now)
	out := make([]domain.Delivery, 0, len(expired)+1)
	for _, b := range expired {
		slog.DebugContext(ctx, "bullet expired", "bulletID", b.ID, "ownerID", b.OwnerID)
		out = append(out, domain.Broadcast(protocol.NewBulletRemoved(b.ID)))
	}
	if len(expired) > 0 {
		g.recorder.BulletsChanged(ctx, -int64(len(expired)))
	}
	return append(out, domain.Broadcast(protocol.NewGameStateUpdate(g.store.Snapshot())))
}

func (g *Game) Deadline() (time.Time, bool) {
	return g.respawns.Next()
}

// Fire は期限を迎えたリスポーンを実行します。退出済みのプレイヤーは無視します。
func (g *Game) Fire(ctx context.Context, now time.Time) []domain.Delivery {
	var out []domain.Delivery
	for _, id := range g.respawns.PopDue(now) {
		p, err := g.store.Respawn(id, g.cfg.SpawnPosition, g.cfg.SpawnRotation)
		if err != nil {
			slog.DebugContext(ctx, "respawn skipped", "playerID", id, "err", err)
			continue
		}
		slog.InfoContext(ctx, "player respawned", "playerID", id)
		rec := p.Record()
		sessionID := domain.SessionID(id)
		out = append(out,
			domain.SendTo(sessionID, protocol.NewPlayerReset(rec)),
			domain.BroadcastExcept(sessionID, protocol.NewPlayerRespawned(rec)),
		)
	}
	return out
}
