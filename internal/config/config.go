package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Telegram Telegram `yaml:"telegram"`
	Media    Media    `yaml:"media"`
	Storage  Storage  `yaml:"storage"`
	Health   Health   `yaml:"health"`
	History  History  `yaml:"history"`
}

// Telegram holds bot API configuration.
type Telegram struct {
	Token            string `yaml:"token" envconfig:"TELEGRAM_BOT_TOKEN"`
	MaxMessageLength int    `yaml:"max_message_length" envconfig:"TELEGRAM_MAX_MESSAGE_LENGTH"`
	ChannelURL       string `yaml:"channel_url" envconfig:"TELEGRAM_CHANNEL_URL"`
	PollTimeout      int    `yaml:"poll_timeout" envconfig:"TELEGRAM_POLL_TIMEOUT"`
}

// Media holds extractor configuration.
type Media struct {
	CookiesFile   string        `yaml:"cookies_file" envconfig:"YOUTUBE_COOKIES_FILE"`
	SocketTimeout time.Duration `yaml:"socket_timeout" envconfig:"MEDIA_SOCKET_TIMEOUT"`
	// BestSelector is the fallback yt-dlp format expression used when no
	// per-resolution option can be offered.
	BestSelector string `yaml:"best_selector" envconfig:"MEDIA_BEST_SELECTOR"`
}

// Storage holds filesystem configuration.
type Storage struct {
	TempPath    string        `yaml:"temp_path" envconfig:"STORAGE_TEMP_PATH"`
	MaxFileSize int64         `yaml:"max_file_size" envconfig:"MAX_FILE_SIZE"`
	Retention   time.Duration `yaml:"retention" envconfig:"STORAGE_RETENTION"`
	SweepEvery  time.Duration `yaml:"sweep_every" envconfig:"STORAGE_SWEEP_EVERY"`
}

// Health holds liveness endpoint configuration.
type Health struct {
	Host string `yaml:"host" envconfig:"HEALTH_HOST"`
	Port int    `yaml:"port" envconfig:"PORT"`
}

// History holds download-history store configuration.
type History struct {
	SQLitePath string `yaml:"sqlite_path" envconfig:"HISTORY_SQLITE_PATH"`
}

// defaults returns the baseline configuration. Defaults are applied before
// the file and environment are read, so precedence is env > file > default.
func defaults() *Config {
	return &Config{
		Telegram: Telegram{
			MaxMessageLength: 4096,
			ChannelURL:       "https://youtube.com/@animarvelx",
			PollTimeout:      30,
		},
		Media: Media{
			SocketTimeout: 30 * time.Second,
			BestSelector:  "bestvideo[ext=mp4][vcodec^=avc1]+bestaudio[ext=m4a]/bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best",
		},
		Storage: Storage{
			TempPath:    "./temp",
			MaxFileSize: 891289600, // 850 MiB
			Retention:   10 * time.Minute,
			SweepEvery:  5 * time.Minute,
		},
		Health: Health{
			Host: "0.0.0.0",
			Port: 8080,
		},
		History: History{
			SQLitePath: "./data/history.db",
		},
	}
}

// Load reads configuration starting from the defaults, overlaying the YAML
// file (when given) and then the environment.
func Load(configPath string) (*Config, error) {
	cfg := defaults()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	// Environment variables override file values.
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set.
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	if c.Media.CookiesFile == "" {
		return fmt.Errorf("YOUTUBE_COOKIES_FILE is required")
	}
	if c.Storage.TempPath == "" {
		return fmt.Errorf("STORAGE_TEMP_PATH is required")
	}
	if c.Storage.MaxFileSize <= 0 {
		return fmt.Errorf("MAX_FILE_SIZE must be positive")
	}
	return nil
}

// Address returns the health server address in host:port format.
func (h *Health) Address() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}
