package processor

import (
	"os"
	"path/filepath"
)

type Cleanup struct {
	enabled bool
}

func NewCleanup(enabled bool) *Cleanup {
	return &Cleanup{enabled: enabled}
}

// CleanupJob removes downloaded inputs from a finished job's directory. The
// artifact stays so it can still be served.
func (c *Cleanup) CleanupJob(workDir string) {
	if !c.enabled || workDir == "" {
		return
	}
	for _, sub := range []string{mediaDir, fontsDir} {
		_ = os.RemoveAll(filepath.Join(workDir, sub))
	}
}
