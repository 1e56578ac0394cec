package server

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 进程级配置：默认值 → YAML 文件 → 环境变量 → 命令行
type Config struct {
	Addr        string     `yaml:"addr"`
	DefaultRoom string     `yaml:"default_room"`
	Log         LogConfig  `yaml:"log"`
	Game        GameConfig `yaml:"game"`
	NATS        NATSConfig `yaml:"nats"`
	CORSOrigins []string   `yaml:"cors_origins"`
}

// LogConfig 日志输出与滚动策略
type LogConfig struct {
	File       string `yaml:"file"`
	Level      string `yaml:"level"`
	Console    bool   `yaml:"console"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// GameConfig 游戏规则参数，时间单位为毫秒
type GameConfig struct {
	TicksPerSecond   int    `yaml:"ticks_per_second"`
	RequiredPlayers  int    `yaml:"required_players"`
	ReadyDelayMs     int    `yaml:"ready_delay_ms"`
	MatchDurationMs  int    `yaml:"match_duration_ms"`
	FinishGraceMs    int    `yaml:"finish_grace_ms"`
	ResultDurationMs int    `yaml:"result_duration_ms"`
	StartTimer       int    `yaml:"start_timer"`
	FinishOnce       bool   `yaml:"finish_once"`
	ResetReadyOnDrop bool   `yaml:"reset_ready_on_drop"`
	DuplicateJoin    string `yaml:"duplicate_join"`
}

// NATSConfig URL 为空时不启用事件总线
type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// DefaultConfig 与参考玩法一致：2 人开局，准备 4 秒，对局 60 秒，结算 10 秒
func DefaultConfig() Config {
	return Config{
		Addr:        ":8080",
		DefaultRoom: "room-1",
		Log: LogConfig{
			File:       "app.log",
			Level:      "debug",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 7,
		},
		Game: GameConfig{
			TicksPerSecond:   TicksPerSecond,
			RequiredPlayers:  2,
			ReadyDelayMs:     4000,
			MatchDurationMs:  60000,
			FinishGraceMs:    3000,
			ResultDurationMs: 10000,
			StartTimer:       60,
			DuplicateJoin:    string(DuplicateReject),
		},
		NATS: NATSConfig{SubjectPrefix: "tileclash.rooms"},
	}
}

// LoadConfig 读取 YAML（path 为空则跳过）并叠加环境变量
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Addr = getEnv("TILECLASH_ADDR", c.Addr)
	if port := os.Getenv("PORT"); port != "" {
		c.Addr = ":" + port
	}
	c.DefaultRoom = getEnv("TILECLASH_DEFAULT_ROOM", c.DefaultRoom)
	c.Log.File = getEnv("TILECLASH_LOG_FILE", c.Log.File)
	c.Log.Level = getEnv("TILECLASH_LOG_LEVEL", c.Log.Level)
	c.NATS.URL = getEnv("TILECLASH_NATS_URL", c.NATS.URL)
	c.Game.RequiredPlayers = getEnvAsInt("TILECLASH_REQUIRED_PLAYERS", c.Game.RequiredPlayers)
	c.Game.DuplicateJoin = getEnv("TILECLASH_DUPLICATE_JOIN", c.Game.DuplicateJoin)
	if origins := os.Getenv("TILECLASH_CORS_ORIGINS"); origins != "" {
		c.CORSOrigins = strings.Split(origins, ",")
	}
}

// Validate 拒绝会让阶段机无法运行的参数
func (c Config) Validate() error {
	g := c.Game
	if g.TicksPerSecond <= 0 {
		return fmt.Errorf("game.ticks_per_second must be > 0, got %d", g.TicksPerSecond)
	}
	if g.RequiredPlayers <= 0 {
		return fmt.Errorf("game.required_players must be > 0, got %d", g.RequiredPlayers)
	}
	if g.ReadyDelayMs < 0 || g.MatchDurationMs <= 0 || g.FinishGraceMs < 0 || g.ResultDurationMs < 0 {
		return fmt.Errorf("game durations must be non-negative and match_duration_ms > 0")
	}
	return nil
}

// RoomConfig 转换为房间运行参数
func (c Config) RoomConfig() RoomConfig {
	return RoomConfig{
		Phase:          c.Game.PhaseConfig(),
		TicksPerSecond: c.Game.TicksPerSecond,
		Duplicate:      ParseDuplicatePolicy(c.Game.DuplicateJoin),
	}
}

func (g GameConfig) PhaseConfig() PhaseConfig {
	return PhaseConfig{
		RequiredPlayers: g.RequiredPlayers,
		ReadyDelay:      ms(g.ReadyDelayMs),
		MatchDuration:   ms(g.MatchDurationMs),
		FinishGrace:     ms(g.FinishGraceMs),
		ResultDuration:  ms(g.ResultDurationMs),
		StartTimer:      g.StartTimer,
		FinishOnce:      g.FinishOnce,
		ResetOnDrop:     g.ResetReadyOnDrop,
	}
}

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvAsInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
