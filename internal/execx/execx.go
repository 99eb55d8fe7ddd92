// Package execx runs external commands with an explicit environment and a
// hard deadline, reporting exit status as data rather than as an error.
package execx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// maxOutputBytes caps the bytes captured per output stream. Install
// scripts can be chatty; anything past the cap is discarded.
const maxOutputBytes = 1 << 20 // 1 MiB

// killGrace is how long a timed-out child gets between SIGKILL and the
// runner giving up on collecting it.
const killGrace = 5 * time.Second

// ErrLaunch means the command never started (binary missing, not
// executable). Distinct from a command that ran and exited nonzero.
var ErrLaunch = errors.New("PROC_LAUNCH: command failed to start")

// ErrTimeout means the command exceeded its configured deadline. The
// child is killed before this is returned.
var ErrTimeout = errors.New("PROC_TIMEOUT: command deadline exceeded")

// Spec describes a single invocation. Env is the complete environment
// for the child; when nil, CleanEnv() is used.
type Spec struct {
	Argv    []string
	Timeout time.Duration
	Env     []string
}

// Result is the collected outcome of an invocation. A nonzero ExitCode
// is not an error; launch failure and timeout are.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Runner executes commands. The interface exists so lifecycle logic can
// be tested against stubbed subprocess output.
type Runner interface {
	Run(ctx context.Context, spec Spec) (Result, error)
}

// OSRunner runs commands on the host via os/exec.
type OSRunner struct{}

func (OSRunner) Run(ctx context.Context, spec Spec) (Result, error) {
	if len(spec.Argv) == 0 {
		return Result{}, fmt.Errorf("%w: empty argv", ErrLaunch)
	}
	runCtx := ctx
	if spec.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, spec.Argv[0], spec.Argv[1:]...)
	cmd.Env = spec.Env
	if cmd.Env == nil {
		cmd.Env = CleanEnv()
	}
	cmd.WaitDelay = killGrace

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &limitWriter{buf: &stdout, limit: maxOutputBytes}
	cmd.Stderr = &limitWriter{buf: &stderr, limit: maxOutputBytes}

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}

	if runCtx.Err() == context.DeadlineExceeded {
		return res, fmt.Errorf("%w: %s exceeded %s", ErrTimeout, spec.Argv[0], spec.Timeout)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	if err != nil {
		return res, fmt.Errorf("%w: %s: %v", ErrLaunch, spec.Argv[0], err)
	}
	return res, nil
}

// CleanEnv returns a copy of the process environment safe for launching
// system binaries. The host runtime may carry LD_LIBRARY_PATH/LD_PRELOAD
// overrides that break bash and readline, so those are dropped, and the
// standard system bin directories are prepended to PATH.
func CleanEnv() []string {
	const binPaths = "/usr/sbin:/usr/bin:/sbin:/bin"
	env := make([]string, 0, len(os.Environ()))
	sawPath := false
	for _, kv := range os.Environ() {
		switch {
		case strings.HasPrefix(kv, "LD_LIBRARY_PATH="), strings.HasPrefix(kv, "LD_PRELOAD="):
			continue
		case strings.HasPrefix(kv, "PATH="):
			env = append(env, "PATH="+binPaths+":"+strings.TrimPrefix(kv, "PATH="))
			sawPath = true
		default:
			env = append(env, kv)
		}
	}
	if !sawPath {
		env = append(env, "PATH="+binPaths)
	}
	return env
}

// limitWriter stops buffering after limit bytes but keeps reporting full
// writes so the child never sees a write failure.
type limitWriter struct {
	buf   *bytes.Buffer
	limit int
	n     int
}

func (lw *limitWriter) Write(p []byte) (int, error) {
	remaining := lw.limit - lw.n
	if remaining <= 0 {
		return len(p), nil
	}
	toWrite := p
	if len(p) > remaining {
		toWrite = p[:remaining]
	}
	n, err := lw.buf.Write(toWrite)
	lw.n += n
	return len(p), err
}
