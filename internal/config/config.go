// Package config loads service settings from defaults, an optional TOML file
// and the environment, in that order of precedence (environment wins).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// PathEnv names the environment variable pointing at the TOML file.
const PathEnv = "MONTAGE_CONFIG"

type Server struct {
	Port           string   `toml:"port"`
	PublicBaseURL  string   `toml:"public_base_url"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

type Render struct {
	JobsRoot               string `toml:"jobs_root"`
	FFmpegBinary           string `toml:"ffmpeg_binary"`
	HWAccel                string `toml:"hwaccel"`
	DownloadTimeoutSeconds int    `toml:"download_timeout_seconds"`
	// CleanupInputs removes downloaded media and fonts once a render succeeds.
	CleanupInputs bool `toml:"cleanup_inputs"`
}

type Logging struct {
	Level     string `toml:"level"`
	Format    string `toml:"format"`
	AddSource bool   `toml:"add_source"`
}

type Database struct {
	URL string `toml:"url"`
}

type Redis struct {
	Addr          string `toml:"addr"`
	EventsChannel string `toml:"events_channel"`
}

type GDrive struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RefreshToken string `toml:"refresh_token"`
	FolderID     string `toml:"folder_id"`
}

type Storage struct {
	Provider  string `toml:"provider"`
	LocalRoot string `toml:"local_root"`
	GDrive    GDrive `toml:"gdrive"`
}

type Config struct {
	Server   Server   `toml:"server"`
	Render   Render   `toml:"render"`
	Logging  Logging  `toml:"logging"`
	Database Database `toml:"database"`
	Redis    Redis    `toml:"redis"`
	Storage  Storage  `toml:"storage"`
}

func Default() Config {
	return Config{
		Server: Server{Port: "6108"},
		Render: Render{
			JobsRoot:               "render_jobs",
			FFmpegBinary:           "ffmpeg",
			HWAccel:                "auto",
			DownloadTimeoutSeconds: 120,
		},
		Logging: Logging{Level: "info"},
		Redis:   Redis{EventsChannel: "montage:jobs:events"},
		Storage: Storage{Provider: "none"},
	}
}

// Load reads path (or $MONTAGE_CONFIG when path is empty), applies
// environment overrides and validates the result. A missing file is not an
// error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = strings.TrimSpace(os.Getenv(PathEnv))
	}
	if path != "" {
		if err := cfg.decodeFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) decodeFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	if err := toml.NewDecoder(f).Decode(c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	setString(&c.Server.Port, "HTTP_PORT")
	setString(&c.Server.PublicBaseURL, "PUBLIC_BASE_URL")
	if v := env("CORS_ALLOWED_ORIGINS"); v != "" {
		c.Server.AllowedOrigins = strings.Split(v, ",")
	}

	setString(&c.Render.JobsRoot, "RENDER_JOBS_ROOT")
	setString(&c.Render.FFmpegBinary, "FFMPEG_BINARY")
	setString(&c.Render.HWAccel, "RENDER_HWACCEL")
	setInt(&c.Render.DownloadTimeoutSeconds, "DOWNLOAD_TIMEOUT_SECONDS")
	setBool(&c.Render.CleanupInputs, "RENDER_CLEANUP_INPUTS")

	setString(&c.Logging.Level, "LOG_LEVEL")
	setString(&c.Logging.Format, "LOG_FORMAT")
	setBool(&c.Logging.AddSource, "LOG_SOURCE")

	setString(&c.Database.URL, "DATABASE_URL")
	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.EventsChannel, "REDIS_EVENTS_CHANNEL")

	setString(&c.Storage.Provider, "STORAGE_PROVIDER")
	setString(&c.Storage.LocalRoot, "STORAGE_LOCAL_ROOT")
	setString(&c.Storage.GDrive.ClientID, "GDRIVE_CLIENT_ID")
	setString(&c.Storage.GDrive.ClientSecret, "GDRIVE_CLIENT_SECRET")
	setString(&c.Storage.GDrive.RefreshToken, "GDRIVE_REFRESH_TOKEN")
	setString(&c.Storage.GDrive.FolderID, "GDRIVE_FOLDER_ID")
}

func (c *Config) normalize() {
	c.Server.Port = strings.TrimSpace(c.Server.Port)
	if c.Server.PublicBaseURL == "" {
		c.Server.PublicBaseURL = "http://127.0.0.1:" + c.Server.Port
	}
	c.Server.PublicBaseURL = strings.TrimRight(c.Server.PublicBaseURL, "/")

	c.Render.HWAccel = strings.ToLower(strings.TrimSpace(c.Render.HWAccel))
	if c.Render.HWAccel == "" {
		c.Render.HWAccel = "auto"
	}
	c.Storage.Provider = strings.ToLower(strings.TrimSpace(c.Storage.Provider))
	if c.Storage.Provider == "" {
		c.Storage.Provider = "none"
	}
}

// DownloadTimeout is the per-asset download bound.
func (c *Config) DownloadTimeout() time.Duration {
	return time.Duration(c.Render.DownloadTimeoutSeconds) * time.Second
}

// Addr is the HTTP listen address.
func (c *Config) Addr() string {
	return "0.0.0.0:" + c.Server.Port
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func setString(dst *string, key string) {
	if v := env(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := env(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := env(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
