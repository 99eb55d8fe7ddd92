// Package doctor reports on the host environment the driver scripts
// depend on: required packages, bundled scripts, and the state root.
package doctor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"xonemgr/internal/execx"
)

// RequiredPackages are the host packages the install script needs. The
// build chain (gcc, dkms) compiles the modules; cabextract unpacks the
// firmware; plymouth ships the splash hook the script patches.
var RequiredPackages = []string{
	"curl",
	"wget",
	"git",
	"gcc",
	"cabextract",
	"dkms",
	"libisl",
	"libmpc",
	"plymouth",
}

type Finding struct {
	Code    string `json:"code"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

type Report struct {
	Healthy  bool      `json:"healthy"`
	Findings []Finding `json:"findings"`
}

// Service probes the host through the same process runner the
// lifecycle operations use.
type Service struct {
	Runner          execx.Runner
	SettingsRoot    string
	InstallScript   string
	UninstallScript string
	QueryTimeout    time.Duration
}

func (s *Service) Run(ctx context.Context) Report {
	findings := []Finding{}

	for _, script := range []struct{ code, path string }{
		{"ENV_INSTALL_SCRIPT", s.InstallScript},
		{"ENV_UNINSTALL_SCRIPT", s.UninstallScript},
	} {
		if _, err := os.Stat(script.path); err != nil {
			findings = append(findings, Finding{
				Code: script.code, Level: "error",
				Message: fmt.Sprintf("script missing: %s", script.path),
			})
		}
	}

	if err := s.checkWritable(); err != nil {
		findings = append(findings, Finding{
			Code: "ENV_STATE_ROOT", Level: "error",
			Message: fmt.Sprintf("settings root not writable: %v", err),
		})
	}

	findings = append(findings, s.checkPackages(ctx)...)

	healthy := true
	for _, f := range findings {
		if f.Level == "error" {
			healthy = false
		}
	}
	return Report{Healthy: healthy, Findings: findings}
}

// checkPackages queries pacman for each required package. A missing
// pacman downgrades the whole check to a warning rather than failing
// the report on non-Arch hosts.
func (s *Service) checkPackages(ctx context.Context) []Finding {
	var findings []Finding
	for _, pkg := range RequiredPackages {
		res, err := s.Runner.Run(ctx, execx.Spec{
			Argv:    []string{"pacman", "-Q", pkg},
			Timeout: s.QueryTimeout,
		})
		if err != nil {
			return []Finding{{
				Code: "ENV_PKG_QUERY", Level: "warn",
				Message: fmt.Sprintf("package query unavailable: %v", err),
			}}
		}
		if res.ExitCode != 0 {
			findings = append(findings, Finding{
				Code: "ENV_PKG_MISSING", Level: "error",
				Message: fmt.Sprintf("required package not installed: %s", pkg),
			})
		}
	}
	return findings
}

func (s *Service) checkWritable() error {
	if err := os.MkdirAll(s.SettingsRoot, 0o755); err != nil {
		return err
	}
	probe := filepath.Join(s.SettingsRoot, ".doctor-probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return err
	}
	return os.Remove(probe)
}
