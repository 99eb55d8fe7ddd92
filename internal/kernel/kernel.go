// Package kernel tracks which kernel release the driver modules were
// built against. Compiled kernel modules stop loading after a kernel
// upgrade; comparing the running release against the persisted record
// tells us exactly when a rebuild is due.
package kernel

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"xonemgr/internal/execx"
	"xonemgr/internal/fsutil"
)

// Mismatch reports a divergence between the kernel the drivers were
// built against and the one currently running.
type Mismatch struct {
	Old string `json:"old_kernel"`
	New string `json:"new_kernel"`
}

// Tracker owns the persisted kernel record. The file is the sole source
// of truth; no in-memory state survives a restart.
type Tracker struct {
	RecordPath   string
	Runner       execx.Runner
	QueryTimeout time.Duration
	Log          *slog.Logger
}

// Current reads the running kernel release via uname.
func (t *Tracker) Current(ctx context.Context) (string, error) {
	res, err := t.Runner.Run(ctx, execx.Spec{
		Argv:    []string{"uname", "-r"},
		Timeout: t.QueryTimeout,
	})
	if err != nil {
		return "", fmt.Errorf("KRN_QUERY: %w", err)
	}
	release := strings.TrimSpace(res.Stdout)
	if release == "" {
		return "", fmt.Errorf("KRN_QUERY: uname reported no release")
	}
	return release, nil
}

// Recorded returns the persisted kernel release, if a record exists.
func (t *Tracker) Recorded() (string, bool) {
	blob, err := os.ReadFile(t.RecordPath)
	if err != nil {
		return "", false
	}
	release := strings.TrimSpace(string(blob))
	return release, release != ""
}

// Save force-writes the record. Called after every successful install.
func (t *Tracker) Save(release string) error {
	if err := fsutil.EnsureDir(t.RecordPath); err != nil {
		return fmt.Errorf("KRN_SAVE: %w", err)
	}
	if err := fsutil.AtomicWrite(t.RecordPath, []byte(release), 0o644); err != nil {
		return fmt.Errorf("KRN_SAVE: %w", err)
	}
	t.log().Info("saved kernel record", "kernel", release)
	return nil
}

// SaveCurrent records the running kernel.
func (t *Tracker) SaveCurrent(ctx context.Context) error {
	release, err := t.Current(ctx)
	if err != nil {
		return err
	}
	return t.Save(release)
}

// Clear deletes the record, returning the tracker to the untracked
// state. Called after a successful uninstall.
func (t *Tracker) Clear() error {
	if err := os.Remove(t.RecordPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("KRN_CLEAR: %w", err)
	}
	return nil
}

// Reconcile runs one pass of the mismatch check. With the drivers not
// fully installed there is nothing to reconcile and the record is left
// frozen. With no record yet, the running kernel is persisted as the
// baseline. A divergent record produces a Mismatch; the record itself
// stays untouched until the next successful install overwrites it.
func (t *Tracker) Reconcile(ctx context.Context, fullyInstalled bool) (*Mismatch, error) {
	if !fullyInstalled {
		return nil, nil
	}
	current, err := t.Current(ctx)
	if err != nil {
		return nil, err
	}
	recorded, ok := t.Recorded()
	if !ok {
		// First check after an install: adopt the running kernel.
		return nil, t.Save(current)
	}
	if recorded == current {
		return nil, nil
	}
	t.log().Info("kernel mismatch detected", "was", recorded, "now", current)
	return &Mismatch{Old: recorded, New: current}, nil
}

func (t *Tracker) log() *slog.Logger {
	if t.Log != nil {
		return t.Log
	}
	return slog.Default()
}
