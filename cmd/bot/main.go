package main

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/coder/websocket"

	"dogfight/internal/config"
	"dogfight/internal/telemetry"
	"dogfight/server/protocol"
)

const (
	flyRadius    = 40.0
	flyAltitude  = 15.0
	turnRate     = 0.6 // rad/s
	shootChance  = 0.05
	crashChance  = 0.003
	bulletSpeed  = 60.0
	decideRate   = time.Second / 10
	reconnectGap = 2 * time.Second
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("failed to load .env", "err", err)
		os.Exit(1)
	}
	cfg, err := config.LoadBot()
	if err != nil {
		slog.Error("invalid bot config", "err", err)
		os.Exit(1)
	}
	slog.SetDefault(telemetry.NewLogger(os.Stdout, "text", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("starting bots", "count", cfg.Count, "server", cfg.ServerURL)

	var wg sync.WaitGroup
	for i := range cfg.Count {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			// 偶数は JSON、奇数は msgpack で接続する
			codec := protocol.JSON
			if id%2 == 1 {
				codec = protocol.Msgpack
			}
			runBot(ctx, cfg.ServerURL, id, codec)
		}(i)
	}

	wg.Wait()
	slog.Info("all bots stopped")
}

func runBot(ctx context.Context, serverURL string, id int, codec protocol.Codec) {
	logger := slog.With("botID", id, "codec", codec.Name())

	for {
		if ctx.Err() != nil {
			return
		}
		err := botSession(ctx, serverURL, codec, logger)
		if err != nil && ctx.Err() == nil {
			logger.Warn("bot session ended, reconnecting", "err", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(reconnectGap):
			}
		}
	}
}

// botState は受信ループと判断ループで共有する状態です。
type botState struct {
	mu      sync.Mutex
	selfID  string
	dead    bool
	players int
	angle   float64
}

func (s *botState) handle(logger *slog.Logger, frame protocol.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch frame.Type {
	case protocol.TypeInitSelf:
		self, err := protocol.DecodePayload[protocol.InitSelf](frame)
		if err != nil {
			return err
		}
		s.selfID = self.ID
		s.players = len(self.Players)
		s.angle = rand.Float64() * 2 * math.Pi
		logger.Info("session assigned", "playerID", s.selfID, "players", s.players)
	case protocol.TypePlayerExploded:
		ev, err := protocol.DecodePayload[protocol.PlayerExploded](frame)
		if err != nil {
			return err
		}
		if ev.PlayerID == s.selfID {
			s.dead = true
			logger.Info("exploded", "position", ev.Position)
		}
	case protocol.TypePlayerReset:
		rec, err := protocol.DecodePayload[protocol.PlayerRecord](frame)
		if err != nil {
			return err
		}
		s.dead = rec.IsDead
		logger.Info("respawned", "position", rec.Position)
	case protocol.TypeGameStateUpdate:
		snap, err := protocol.DecodePayload[protocol.Snapshot](frame)
		if err != nil {
			return err
		}
		s.players = len(snap)
	}
	return nil
}

// next は生存中なら次の姿勢を返します。
func (s *botState) next(dt time.Duration) (protocol.UpdateIntent, protocol.Vec3, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selfID == "" || s.dead {
		return protocol.UpdateIntent{}, protocol.Vec3{}, false
	}
	s.angle += turnRate * dt.Seconds()
	pos := protocol.Vec3{
		X: flyRadius * math.Cos(s.angle),
		Y: flyAltitude,
		Z: flyRadius * math.Sin(s.angle),
	}
	// 円の接線方向を向く（Y軸回りの回転）
	heading := -s.angle
	rot := protocol.Quat{Y: math.Sin(heading / 2), W: math.Cos(heading / 2)}
	forward := protocol.Vec3{X: -math.Sin(s.angle), Z: math.Cos(s.angle)}
	return protocol.UpdateIntent{Position: pos, Rotation: rot}, forward, true
}

func botSession(ctx context.Context, serverURL string, codec protocol.Codec, logger *slog.Logger) error {
	conn, _, err := websocket.Dial(ctx, serverURL, &websocket.DialOptions{
		Subprotocols: []string{codec.Name()},
	})
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.CloseNow()

	logger.Info("connected", "subprotocol", conn.Subprotocol())

	messageType := websocket.MessageText
	if codec.Binary() {
		messageType = websocket.MessageBinary
	}
	send := func(t protocol.EventType, payload any) error {
		data, err := codec.Marshal(t, payload)
		if err != nil {
			return err
		}
		return conn.Write(ctx, messageType, data)
	}

	state := &botState{}
	readErr := make(chan error, 1)

	// 受信ループ
	go func() {
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				readErr <- err
				return
			}
			frame, err := codec.Unmarshal(data)
			if err != nil {
				logger.Warn("failed to decode frame", "err", err)
				continue
			}
			if err := state.handle(logger, frame); err != nil {
				logger.Warn("failed to decode payload", "type", frame.Type, "err", err)
			}
		}
	}()

	// 判断・送信ループ
	ticker := time.NewTicker(decideRate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "shutdown")
			return nil
		case err := <-readErr:
			return fmt.Errorf("read: %w", err)
		case <-ticker.C:
			update, forward, ok := state.next(decideRate)
			if !ok {
				continue
			}
			if err := send(protocol.TypePlayerUpdate, update); err != nil {
				return fmt.Errorf("write: %w", err)
			}
			if rand.Float64() < shootChance {
				shot := protocol.ShootIntent{Position: update.Position, Velocity: forward.Scale(bulletSpeed)}
				if err := send(protocol.TypePlayerShoot, shot); err != nil {
					return fmt.Errorf("write: %w", err)
				}
			}
			if rand.Float64() < crashChance {
				if err := send(protocol.TypePlayerCollision, protocol.CollisionReport{Type: "ground"}); err != nil {
					return fmt.Errorf("write: %w", err)
				}
			}
		}
	}
}
