package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"dogfight/server/application"
	"dogfight/server/domain"
	"dogfight/server/protocol"
	"dogfight/utils"
)

var (
	ErrInvalidValue = errors.New("config: invalid value")
)

type Config struct {
	Addr           string
	Port           string
	StaticDir      string
	OriginPatterns []string

	TickRate      int
	BulletLife    time.Duration
	RespawnDelay  time.Duration
	SpawnPosition protocol.Vec3

	IdleTimeout  time.Duration
	PingInterval time.Duration
	WriteQueue   int
	ReadLimit    int64

	LogLevel     slog.Level
	LogFormat    string
	OTLPEndpoint string
	ServiceName  string
}

// LoadDotEnv は .env ファイルを環境変数に読み込みます。既に設定済みの変数は上書きしません。
// ファイルがなければ何もしません。
func LoadDotEnv(paths ...string) error {
	if err := godotenv.Load(paths...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("config: load .env: %w", err)
	}
	return nil
}

// Load は環境変数からサーバー設定を読み込みます。不正な値はまとめて返します。
func Load() (Config, error) {
	var errs []error
	intVar := func(key string, def int) int {
		v, err := utils.GetEnvInt(key, def)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: %w", ErrInvalidValue, err))
		}
		return v
	}
	durationVar := func(key string, def time.Duration) time.Duration {
		v, err := utils.GetEnvDuration(key, def)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: %w", ErrInvalidValue, err))
		}
		return v
	}

	cfg := Config{
		Addr:         utils.GetEnvDefault("ADDR", "localhost"),
		Port:         utils.GetEnvDefault("PORT", "9090"),
		StaticDir:    utils.GetEnvDefault("STATIC_DIR", ""),
		TickRate:     intVar("TICK_RATE", 30),
		BulletLife:   durationVar("BULLET_LIFE", 5*time.Second),
		RespawnDelay: durationVar("RESPAWN_DELAY", 3*time.Second),
		IdleTimeout:  durationVar("IDLE_TIMEOUT", 30*time.Second),
		PingInterval: durationVar("PING_INTERVAL", 10*time.Second),
		WriteQueue:   intVar("WRITE_QUEUE", 1024),
		ReadLimit:    int64(intVar("READ_LIMIT", 32<<10)),
		LogFormat:    strings.ToLower(utils.GetEnvDefault("LOG_FORMAT", "text")),
		OTLPEndpoint: utils.GetEnvDefault("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		ServiceName:  utils.GetEnvDefault("OTEL_SERVICE_NAME", "dogfight"),
	}

	spawn, err := parseVec3(utils.GetEnvDefault("SPAWN_POSITION", "0,15,0"))
	if err != nil {
		errs = append(errs, fmt.Errorf("%w: SPAWN_POSITION: %w", ErrInvalidValue, err))
	}
	cfg.SpawnPosition = spawn
	cfg.OriginPatterns = splitList(utils.GetEnvDefault("ORIGIN_PATTERNS", ""))

	if err := cfg.LogLevel.UnmarshalText([]byte(utils.GetEnvDefault("LOG_LEVEL", "info"))); err != nil {
		errs = append(errs, fmt.Errorf("%w: LOG_LEVEL: %w", ErrInvalidValue, err))
	}

	errs = append(errs, cfg.validate()...)
	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() []error {
	var errs []error
	if _, err := strconv.ParseUint(c.Port, 10, 16); err != nil {
		errs = append(errs, fmt.Errorf("%w: PORT %q", ErrInvalidValue, c.Port))
	}
	if c.TickRate <= 0 || c.TickRate > 1000 {
		errs = append(errs, fmt.Errorf("%w: TICK_RATE must be in 1..1000, got %d", ErrInvalidValue, c.TickRate))
	}
	if c.BulletLife <= 0 {
		errs = append(errs, fmt.Errorf("%w: BULLET_LIFE must be positive", ErrInvalidValue))
	}
	if c.RespawnDelay < 0 {
		errs = append(errs, fmt.Errorf("%w: RESPAWN_DELAY must not be negative", ErrInvalidValue))
	}
	if c.IdleTimeout < 0 || c.PingInterval < 0 {
		errs = append(errs, fmt.Errorf("%w: IDLE_TIMEOUT and PING_INTERVAL must not be negative", ErrInvalidValue))
	}
	if c.WriteQueue <= 0 {
		errs = append(errs, fmt.Errorf("%w: WRITE_QUEUE must be positive", ErrInvalidValue))
	}
	if c.ReadLimit <= 0 {
		errs = append(errs, fmt.Errorf("%w: READ_LIMIT must be positive", ErrInvalidValue))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("%w: LOG_FORMAT must be text or json, got %q", ErrInvalidValue, c.LogFormat))
	}
	return errs
}

func (c Config) ListenAddr() string {
	return net.JoinHostPort(c.Addr, c.Port)
}

func (c Config) TickInterval() time.Duration {
	return time.Second / time.Duration(c.TickRate)
}

func (c Config) Game() application.Config {
	cfg := application.DefaultConfig()
	cfg.SpawnPosition = c.SpawnPosition
	cfg.BulletLife = c.BulletLife
	cfg.RespawnDelay = c.RespawnDelay
	return cfg
}

func (c Config) Endpoint() domain.EndpointConfig {
	cfg := domain.DefaultEndpointConfig()
	cfg.IdleTimeout = c.IdleTimeout
	cfg.PingInterval = c.PingInterval
	cfg.WriteQueueSize = c.WriteQueue
	return cfg
}

// splitList はカンマ区切りの値を空要素を除いて分割します。
func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

type BotConfig struct {
	Count     int
	ServerURL string
	LogLevel  slog.Level
}

// LoadBot は cmd/bot 用の設定を読み込みます。
func LoadBot() (BotConfig, error) {
	var errs []error
	count, err := utils.GetEnvInt("BOT_COUNT", 3)
	if err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrInvalidValue, err))
	} else if count <= 0 {
		errs = append(errs, fmt.Errorf("%w: BOT_COUNT must be positive, got %d", ErrInvalidValue, count))
	}
	cfg := BotConfig{
		Count:     count,
		ServerURL: utils.GetEnvDefault("SERVER_URL", "ws://localhost:9090/ws"),
	}
	if !strings.HasPrefix(cfg.ServerURL, "ws://") && !strings.HasPrefix(cfg.ServerURL, "wss://") {
		errs = append(errs, fmt.Errorf("%w: SERVER_URL must be a ws:// or wss:// URL, got %q", ErrInvalidValue, cfg.ServerURL))
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(utils.GetEnvDefault("LOG_LEVEL", "info"))); err != nil {
		errs = append(errs, fmt.Errorf("%w: LOG_LEVEL: %w", ErrInvalidValue, err))
	}
	if err := errors.Join(errs...); err != nil {
		return BotConfig{}, err
	}
	return cfg, nil
}

func parseVec3(s string) (protocol.Vec3, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return protocol.Vec3{}, fmt.Errorf("want x,y,z, got %q", s)
	}
	var xyz [3]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return protocol.Vec3{}, err
		}
		xyz[i] = v
	}
	if !utils.Finite(xyz[:]...) {
		return protocol.Vec3{}, fmt.Errorf("non-finite coordinate in %q", s)
	}
	return protocol.Vec3{X: xyz[0], Y: xyz[1], Z: xyz[2]}, nil
}
