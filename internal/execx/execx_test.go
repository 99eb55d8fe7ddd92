package execx

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRunCapturesOutputAndExitCode(t *testing.T) {
	r := OSRunner{}
	res, err := r.Run(context.Background(), Spec{Argv: []string{"sh", "-c", "echo out; echo err >&2; exit 3"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", res.ExitCode)
	}
	if strings.TrimSpace(res.Stdout) != "out" {
		t.Errorf("Stdout = %q", res.Stdout)
	}
	if strings.TrimSpace(res.Stderr) != "err" {
		t.Errorf("Stderr = %q", res.Stderr)
	}
}

func TestRunZeroExit(t *testing.T) {
	r := OSRunner{}
	res, err := r.Run(context.Background(), Spec{Argv: []string{"true"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", res.ExitCode)
	}
}

func TestRunLaunchFailure(t *testing.T) {
	r := OSRunner{}
	_, err := r.Run(context.Background(), Spec{Argv: []string{"/nonexistent/binary-xyz"}})
	if !errors.Is(err, ErrLaunch) {
		t.Fatalf("err = %v, want ErrLaunch", err)
	}
}

func TestRunEmptyArgv(t *testing.T) {
	r := OSRunner{}
	_, err := r.Run(context.Background(), Spec{})
	if !errors.Is(err, ErrLaunch) {
		t.Fatalf("err = %v, want ErrLaunch", err)
	}
}

func TestRunTimeout(t *testing.T) {
	r := OSRunner{}
	start := time.Now()
	_, err := r.Run(context.Background(), Spec{
		Argv:    []string{"sleep", "30"},
		Timeout: 100 * time.Millisecond,
	})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Errorf("timed-out child not collected promptly: %s", elapsed)
	}
	if !strings.Contains(err.Error(), "100ms") {
		t.Errorf("timeout error should carry the configured bound: %v", err)
	}
}

func TestCleanEnvStripsLoaderOverrides(t *testing.T) {
	t.Setenv("LD_LIBRARY_PATH", "/bad/lib")
	t.Setenv("LD_PRELOAD", "/bad/preload.so")
	t.Setenv("PATH", "/custom/bin")

	for _, kv := range CleanEnv() {
		if strings.HasPrefix(kv, "LD_LIBRARY_PATH=") || strings.HasPrefix(kv, "LD_PRELOAD=") {
			t.Errorf("loader override leaked into clean env: %s", kv)
		}
		if strings.HasPrefix(kv, "PATH=") {
			if !strings.HasPrefix(kv, "PATH=/usr/sbin:/usr/bin:/sbin:/bin:") {
				t.Errorf("system bin dirs not prepended: %s", kv)
			}
			if !strings.Contains(kv, "/custom/bin") {
				t.Errorf("original PATH dropped: %s", kv)
			}
		}
	}
}
