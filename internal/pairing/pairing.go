// Package pairing observes and toggles the dongle pairing attribute
// exposed under sysfs. The hardware owns the attribute; this package
// only reads and writes it.
package pairing

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Status reports dongle presence and the current pairing mode.
type Status struct {
	Available bool   `json:"available"`
	Pairing   bool   `json:"pairing"`
	Error     string `json:"error,omitempty"`
}

// Controller glob-matches pairing attribute files. More than one dongle
// can be plugged in at once, so writes hit every match.
type Controller struct {
	AttributeGlob string
	Log           *slog.Logger
}

// Read returns the pairing status. Available means at least one pairing
// attribute path exists; pairing mode is read from the first match.
func (c *Controller) Read() Status {
	paths, err := filepath.Glob(c.AttributeGlob)
	if err != nil {
		return Status{Error: fmt.Sprintf("PAIR_GLOB: %v", err)}
	}
	if len(paths) == 0 {
		c.log().Debug("no pairing attribute found", "glob", c.AttributeGlob)
		return Status{}
	}
	blob, err := os.ReadFile(paths[0])
	if err != nil {
		return Status{Available: true, Error: fmt.Sprintf("PAIR_READ: %v", err)}
	}
	state := strings.TrimSpace(string(blob))
	c.log().Info("pairing status from hardware", "value", state)
	return Status{Available: true, Pairing: state == "1"}
}

// Set writes pairing mode to every matched dongle. No matching path is
// a reported failure, not a silent no-op.
func (c *Controller) Set(enabled bool) error {
	paths, err := filepath.Glob(c.AttributeGlob)
	if err != nil {
		return fmt.Errorf("PAIR_GLOB: %w", err)
	}
	if len(paths) == 0 {
		return fmt.Errorf("PAIR_NO_DONGLE: no dongle found")
	}
	value := "0"
	if enabled {
		value = "1"
	}
	for _, p := range paths {
		if err := os.WriteFile(p, []byte(value), 0o644); err != nil {
			return fmt.Errorf("PAIR_WRITE: %s: %w", p, err)
		}
	}
	c.log().Info("pairing mode set", "enabled", enabled, "dongles", len(paths))
	return nil
}

func (c *Controller) log() *slog.Logger {
	if c.Log != nil {
		return c.Log
	}
	return slog.Default()
}
