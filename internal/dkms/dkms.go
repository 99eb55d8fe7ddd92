// Package dkms derives driver installation state from the dkms module
// manager. State is computed fresh on every read; nothing is cached.
package dkms

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/sync/errgroup"

	"xonemgr/internal/execx"
)

// SentinelVersion is reported when no plugin manifest exists.
const SentinelVersion = "0.0.0"

// State is the installation snapshot for the driver pair.
type State struct {
	XoneInstalled  bool   `json:"xone_installed"`
	PadInstalled   bool   `json:"pad_installed"`
	FullyInstalled bool   `json:"fully_installed"`
	PluginVersion  string `json:"plugin_version"`
	Error          string `json:"error,omitempty"`
}

// Reader queries dkms for the two managed modules.
type Reader struct {
	Runner       execx.Runner
	XoneModule   string
	PadModule    string
	ManifestPath string
	QueryTimeout time.Duration
	Log          *slog.Logger
}

// Read returns the current install state. Query failures yield a state
// with both flags false and the reason attached; they never abort.
func (r *Reader) Read(ctx context.Context) State {
	st := State{PluginVersion: r.pluginVersion()}

	var xoneOut, padOut string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		xoneOut, err = r.status(gctx, r.XoneModule)
		return err
	})
	g.Go(func() (err error) {
		padOut, err = r.status(gctx, r.PadModule)
		return err
	})
	if err := g.Wait(); err != nil {
		r.log().Error("dkms status query failed", "error", err)
		st.Error = err.Error()
		return st
	}

	// dkms emits diagnostic text even when nothing is installed, so
	// non-empty output is not enough; only an explicit status counts.
	st.XoneInstalled = containsInstalled(xoneOut)
	st.PadInstalled = containsInstalled(padOut)
	st.FullyInstalled = st.XoneInstalled && st.PadInstalled
	r.log().Info("install status",
		"xone", st.XoneInstalled, "pad", st.PadInstalled, "plugin_version", st.PluginVersion)
	return st
}

func (r *Reader) status(ctx context.Context, module string) (string, error) {
	res, err := r.Runner.Run(ctx, execx.Spec{
		Argv:    []string{"dkms", "status", module},
		Timeout: r.QueryTimeout,
	})
	if err != nil {
		return "", err
	}
	r.log().Debug("dkms status", "module", module,
		"stdout", strings.TrimSpace(res.Stdout), "exit", res.ExitCode)
	return res.Stdout, nil
}

type manifest struct {
	Version string `toml:"version"`
}

// pluginVersion resolves the locally declared plugin version. A missing
// or unreadable manifest is the sentinel version, never an error.
func (r *Reader) pluginVersion() string {
	blob, err := os.ReadFile(r.ManifestPath)
	if err != nil {
		return SentinelVersion
	}
	var m manifest
	if err := toml.Unmarshal(blob, &m); err != nil || m.Version == "" {
		r.log().Warn("plugin manifest unreadable", "path", r.ManifestPath)
		return SentinelVersion
	}
	return m.Version
}

func (r *Reader) log() *slog.Logger {
	if r.Log != nil {
		return r.Log
	}
	return slog.Default()
}

func containsInstalled(out string) bool {
	return strings.Contains(strings.ToLower(out), "installed")
}
