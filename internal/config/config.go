package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// Config holds all application settings.
type Config struct {
	Bot         BotConfig         `mapstructure:"bot"`
	Quiz        QuizConfig        `mapstructure:"quiz"`
	Leaderboard LeaderboardConfig `mapstructure:"leaderboard"`
	History     HistoryConfig     `mapstructure:"history"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Log         LogConfig         `mapstructure:"log"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
}

// BotConfig configures the Telegram bot.
type BotConfig struct {
	Token string `mapstructure:"token"`
	Debug bool   `mapstructure:"debug"`
	// AnswerDelay is the pause between the answer feedback and the next question.
	AnswerDelay time.Duration `mapstructure:"answer_delay"`
	// RatePerSecond and RateBurst limit updates per chat.
	RatePerSecond float64 `mapstructure:"rate_per_second"`
	RateBurst     int     `mapstructure:"rate_burst"`
	PollTimeout   int     `mapstructure:"poll_timeout"`
	// ChatIdleTTL is how long an idle chat's settings are kept in memory.
	ChatIdleTTL time.Duration `mapstructure:"chat_idle_ttl"`
}

// QuizConfig configures the question bank and session defaults.
type QuizConfig struct {
	BankPath     string `mapstructure:"bank_path"`
	DefaultSize  int    `mapstructure:"default_size"`
	DefaultTimed bool   `mapstructure:"default_timed"`
	// Seed fixes the sampling source when non-zero.
	Seed int64 `mapstructure:"seed"`
}

// LeaderboardConfig selects the leaderboard backend: memory, gist or redis.
type LeaderboardConfig struct {
	Backend      string `mapstructure:"backend"`
	GistID       string `mapstructure:"gist_id"`
	GithubToken  string `mapstructure:"github_token"`
	GistFilename string `mapstructure:"gist_filename"`
	GistAPIURL   string `mapstructure:"gist_api_url"`
	RedisKey     string `mapstructure:"redis_key"`
}

// HistoryConfig selects where per-user question history is kept: memory or redis.
type HistoryConfig struct {
	Backend   string `mapstructure:"backend"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// RedisConfig supports single, sentinel and cluster modes.
type RedisConfig struct {
	Mode       string   `mapstructure:"mode"`
	Addrs      []string `mapstructure:"addrs"`
	Addr       string   `mapstructure:"addr"`
	Password   string   `mapstructure:"password"`
	DB         int      `mapstructure:"db"`
	MasterName string   `mapstructure:"master_name"`
	MaxRetries int      `mapstructure:"max_retries"`
}

// LogConfig configures zap and the rotating log file.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
	// Quiet drops the stdout output, for programs that own the terminal.
	Quiet bool `mapstructure:"quiet"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// Configured reports whether any Redis address is set.
func (r RedisConfig) Configured() bool {
	return len(r.Addrs) > 0 || r.Addr != ""
}

func setDefaults(vip *viper.Viper) {
	vip.SetDefault("bot.answer_delay", time.Second)
	vip.SetDefault("bot.rate_per_second", 2.0)
	vip.SetDefault("bot.rate_burst", 5)
	vip.SetDefault("bot.poll_timeout", 60)
	vip.SetDefault("bot.chat_idle_ttl", 24*time.Hour)

	vip.SetDefault("quiz.bank_path", "questions.txt")
	vip.SetDefault("quiz.default_size", 10)

	vip.SetDefault("leaderboard.gist_filename", "leaderboard.json")
	vip.SetDefault("leaderboard.gist_api_url", "https://api.github.com")
	vip.SetDefault("leaderboard.redis_key", "quiz:leaderboard")

	vip.SetDefault("history.backend", "memory")
	vip.SetDefault("history.key_prefix", "quiz:history")

	vip.SetDefault("redis.mode", "single")

	vip.SetDefault("log.level", "info")
	vip.SetDefault("log.file", "logs/bot.log")
	vip.SetDefault("log.max_size_mb", 100)
	vip.SetDefault("log.max_backups", 5)
	vip.SetDefault("log.max_age_days", 30)
	vip.SetDefault("log.compress", true)

	vip.SetDefault("metrics.addr", ":9090")
}

// envBindings maps config keys to the environment variables that override them.
var envBindings = [][2]string{
	{"bot.token", "TELEGRAM_BOT_TOKEN"},
	{"bot.debug", "BOT_DEBUG"},

	{"quiz.bank_path", "QUIZ_BANK_PATH"},
	{"quiz.seed", "QUIZ_SEED"},

	{"leaderboard.backend", "LEADERBOARD_BACKEND"},
	{"leaderboard.gist_id", "GITHUB_GIST_ID"},
	{"leaderboard.github_token", "GITHUB_TOKEN"},

	{"history.backend", "HISTORY_BACKEND"},

	{"redis.mode", "REDIS_MODE"},
	{"redis.addrs", "REDIS_ADDRS"},
	{"redis.addr", "REDIS_ADDR"},
	{"redis.password", "REDIS_PASSWORD"},
	{"redis.db", "REDIS_DB"},
	{"redis.master_name", "REDIS_MASTER_NAME"},

	{"log.level", "LOG_LEVEL"},
	{"log.file", "LOG_FILE"},

	{"metrics.enabled", "METRICS_ENABLED"},
	{"metrics.addr", "METRICS_ADDR"},
}

func bindEnv(vip *viper.Viper) error {
	for _, b := range envBindings {
		if err := vip.BindEnv(b[0], b[1]); err != nil {
			return fmt.Errorf("failed to bind %s to %s: %w", b[1], b[0], err)
		}
	}
	return nil
}

// Load reads configuration from configPath (optional) and the environment.
// Environment variables override file values.
func Load(configPath string) (*Config, error) {
	vip := viper.New()
	setDefaults(vip)
	if err := bindEnv(vip); err != nil {
		return nil, err
	}

	if configPath != "" {
		vip.SetConfigFile(configPath)
		if err := vip.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", configPath, err)
		}
	}

	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Leaderboard.Backend = strings.ToLower(strings.TrimSpace(cfg.Leaderboard.Backend))
	cfg.History.Backend = strings.ToLower(strings.TrimSpace(cfg.History.Backend))

	// Without an explicit backend the Gist leaderboard is used when its
	// credentials are present, memory otherwise.
	if cfg.Leaderboard.Backend == "" {
		cfg.Leaderboard.Backend = "memory"
		if cfg.Leaderboard.GistID != "" && cfg.Leaderboard.GithubToken != "" {
			cfg.Leaderboard.Backend = "gist"
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges and backend requirements. The bot token is
// checked by the bot command, not here, so the terminal UI can share Load.
func (c *Config) Validate() error {
	if c.Quiz.DefaultSize < 1 {
		return fmt.Errorf("quiz.default_size must be at least 1, got %d", c.Quiz.DefaultSize)
	}
	if c.Bot.RatePerSecond <= 0 || c.Bot.RateBurst < 1 {
		return fmt.Errorf("bot rate limit must be positive (rate_per_second=%v, rate_burst=%d)", c.Bot.RatePerSecond, c.Bot.RateBurst)
	}
	if c.Bot.AnswerDelay < 0 {
		return fmt.Errorf("bot.answer_delay must not be negative")
	}
	if c.Bot.ChatIdleTTL < 0 {
		return fmt.Errorf("bot.chat_idle_ttl must not be negative")
	}

	switch c.Leaderboard.Backend {
	case "memory":
	case "gist":
		if c.Leaderboard.GistID == "" || c.Leaderboard.GithubToken == "" {
			return fmt.Errorf("gist leaderboard requires GITHUB_GIST_ID and GITHUB_TOKEN")
		}
	case "redis":
		if !c.Redis.Configured() {
			return fmt.Errorf("redis leaderboard requires redis.addr or redis.addrs")
		}
	default:
		return fmt.Errorf("unsupported leaderboard backend: %q", c.Leaderboard.Backend)
	}

	switch c.History.Backend {
	case "memory":
	case "redis":
		if !c.Redis.Configured() {
			return fmt.Errorf("redis history requires redis.addr or redis.addrs")
		}
	default:
		return fmt.Errorf("unsupported history backend: %q", c.History.Backend)
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// UsesRedis reports whether any backend needs a Redis connection.
func (c *Config) UsesRedis() bool {
	return c.Leaderboard.Backend == "redis" || c.History.Backend == "redis"
}

// ParseLevel maps a log level name to a zap level.
func ParseLevel(level string) (zapcore.Level, error) {
	if strings.TrimSpace(level) == "" {
		return zapcore.InfoLevel, nil
	}
	lvl, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return zapcore.InfoLevel, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return lvl, nil
}
