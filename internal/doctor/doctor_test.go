package doctor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"xonemgr/internal/execx"
)

type pacmanStub struct {
	missing map[string]bool
	err     error
}

func (s *pacmanStub) Run(_ context.Context, spec execx.Spec) (execx.Result, error) {
	if s.err != nil {
		return execx.Result{}, s.err
	}
	pkg := spec.Argv[len(spec.Argv)-1]
	if s.missing[pkg] {
		return execx.Result{ExitCode: 1, Stderr: "error: package '" + pkg + "' was not found"}, nil
	}
	return execx.Result{Stdout: pkg + " 1.0-1"}, nil
}

func newService(t *testing.T, runner execx.Runner) *Service {
	t.Helper()
	dir := t.TempDir()
	install := filepath.Join(dir, "install.sh")
	uninstall := filepath.Join(dir, "uninstall.sh")
	for _, p := range []string{install, uninstall} {
		if err := os.WriteFile(p, []byte("#!/bin/bash\n"), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	return &Service{
		Runner:          runner,
		SettingsRoot:    filepath.Join(dir, "state"),
		InstallScript:   install,
		UninstallScript: uninstall,
	}
}

func TestHealthyHost(t *testing.T) {
	s := newService(t, &pacmanStub{})
	report := s.Run(context.Background())
	if !report.Healthy {
		t.Fatalf("want healthy, got findings %+v", report.Findings)
	}
}

func TestMissingPackage(t *testing.T) {
	s := newService(t, &pacmanStub{missing: map[string]bool{"cabextract": true}})
	report := s.Run(context.Background())
	if report.Healthy {
		t.Fatal("missing package should fail the report")
	}
	found := false
	for _, f := range report.Findings {
		if f.Code == "ENV_PKG_MISSING" {
			found = true
		}
	}
	if !found {
		t.Fatalf("no ENV_PKG_MISSING finding: %+v", report.Findings)
	}
}

func TestPacmanUnavailableIsWarning(t *testing.T) {
	s := newService(t, &pacmanStub{err: errors.New("PROC_LAUNCH: pacman: not found")})
	report := s.Run(context.Background())
	if !report.Healthy {
		t.Fatalf("pacman absence should not fail the report: %+v", report.Findings)
	}
	if len(report.Findings) != 1 || report.Findings[0].Code != "ENV_PKG_QUERY" {
		t.Fatalf("findings = %+v", report.Findings)
	}
}

func TestMissingScript(t *testing.T) {
	s := newService(t, &pacmanStub{})
	s.InstallScript = filepath.Join(t.TempDir(), "nope.sh")
	report := s.Run(context.Background())
	if report.Healthy {
		t.Fatal("missing install script should fail the report")
	}
}
