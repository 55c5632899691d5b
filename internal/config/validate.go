package config

import (
	"errors"
	"fmt"
	"strconv"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateRender(); err != nil {
		return err
	}
	return c.validateStorage()
}

func (c *Config) validateServer() error {
	port, err := strconv.Atoi(c.Server.Port)
	if err != nil || port <= 0 || port > 65535 {
		return fmt.Errorf("server.port must be a valid TCP port, got %q", c.Server.Port)
	}
	return nil
}

func (c *Config) validateRender() error {
	if c.Render.JobsRoot == "" {
		return errors.New("render.jobs_root must be set")
	}
	if c.Render.FFmpegBinary == "" {
		return errors.New("render.ffmpeg_binary must be set")
	}
	switch c.Render.HWAccel {
	case "auto", "on", "off":
	default:
		return fmt.Errorf("render.hwaccel must be auto, on or off, got %q", c.Render.HWAccel)
	}
	if c.Render.DownloadTimeoutSeconds <= 0 {
		return errors.New("render.download_timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Provider {
	case "none":
	case "localfs":
		if c.Storage.LocalRoot == "" {
			return errors.New("storage.local_root is required for the localfs provider")
		}
	case "gdrive":
		g := c.Storage.GDrive
		if g.ClientID == "" || g.ClientSecret == "" || g.RefreshToken == "" {
			return errors.New("storage.gdrive client_id, client_secret and refresh_token are required for the gdrive provider")
		}
	default:
		return fmt.Errorf("storage.provider must be none, localfs or gdrive, got %q", c.Storage.Provider)
	}
	return nil
}
