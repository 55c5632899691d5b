// Package capability probes the local ffmpeg build once at startup.
package capability

import (
	"context"
	"os/exec"
	"strings"
	"time"

	"montage/internal/pkg/logger"
)

var commandContext = exec.CommandContext

const nvencEncoder = "h264_nvenc"

// Mode selects how hardware encoding is decided.
type Mode string

const (
	ModeAuto Mode = "auto"
	ModeOn   Mode = "on"
	ModeOff  Mode = "off"
)

type Report struct {
	Binary         string `json:"binary"`
	HardwareEncode bool   `json:"hardware_encode"`
	Mode           Mode   `json:"mode"`
	Probed         bool   `json:"probed"`
	Error          string `json:"error,omitempty"`
}

// Detect reports whether the hardware encoder is usable. ModeOn and ModeOff
// skip the probe. A failed probe means software encoding.
func Detect(ctx context.Context, binary string, mode Mode, log *logger.Logger) Report {
	if binary == "" {
		binary = "ffmpeg"
	}
	r := Report{Binary: binary, Mode: mode}

	switch mode {
	case ModeOn:
		r.HardwareEncode = true
		return r
	case ModeOff:
		return r
	}
	r.Mode = ModeAuto

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	out, err := commandContext(ctx, binary, "-hide_banner", "-encoders").Output() //nolint:gosec
	r.Probed = true
	if err != nil {
		r.Error = err.Error()
		if log != nil {
			log.Warn("encoder probe failed, using software encoding", "binary", binary, "error", err.Error())
		}
		return r
	}
	r.HardwareEncode = strings.Contains(string(out), nvencEncoder)
	if log != nil {
		log.Info("encoder probe finished", "binary", binary, "hardware_encode", r.HardwareEncode)
	}
	return r
}
