// Package app is the lifecycle orchestrator: it composes the install
// state reader, kernel tracker, update checker, release fetcher, and
// pairing controller behind the operations the host calls.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"xonemgr/internal/audit"
	"xonemgr/internal/checksum"
	"xonemgr/internal/config"
	"xonemgr/internal/dkms"
	"xonemgr/internal/doctor"
	"xonemgr/internal/event"
	"xonemgr/internal/execx"
	"xonemgr/internal/kernel"
	"xonemgr/internal/pairing"
	"xonemgr/internal/release"
)

// Markers the install script uses to signal that kernel headers were
// upgraded mid-install and a reboot must happen before retrying.
const (
	rebootExitCode      = 100
	rebootMarker        = "REBOOT_REQUIRED"
	rebootMessage       = "Kernel has been upgraded to match headers. Please reboot and try again."
	installScriptGone   = "Install script not found"
	uninstallScriptGone = "Uninstall script not found"
)

type Options struct {
	ConfigPath   string
	SettingsRoot string
	HTTPClient   *http.Client
	Runner       execx.Runner
	Emitter      event.Emitter
	Log          *slog.Logger
}

// Service wires the lifecycle components over one settings root.
type Service struct {
	Config  config.Config
	Root    string
	Reader  *dkms.Reader
	Kernel  *kernel.Tracker
	Release *release.Service
	Pairing *pairing.Controller
	Doctor  *doctor.Service
	Emitter event.Emitter
	Audit   *audit.Logger

	runner execx.Runner
	log    *slog.Logger
}

func New(opts Options) (*Service, error) {
	root := opts.SettingsRoot
	if root == "" {
		root = config.SettingsRoot()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("CFG_ROOT: %w", err)
	}
	configPath := opts.ConfigPath
	if configPath == "" {
		configPath = config.ConfigPath(root)
	}
	cfg, err := config.Ensure(configPath)
	if err != nil {
		return nil, err
	}

	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	runner := opts.Runner
	if runner == nil {
		runner = execx.OSRunner{}
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: time.Duration(cfg.Timeouts.FetchSeconds) * time.Second}
	}
	emitter := opts.Emitter
	if emitter == nil {
		if cfg.Events.NATSURL != "" {
			natsEmitter, err := event.NewNATSEmitter(cfg.Events.NATSURL, cfg.Events.Subject, log)
			if err != nil {
				// A dead bus only costs the front end its toast; the
				// lifecycle engine keeps working against the log.
				log.Warn("event bus unreachable, falling back to log emitter", "error", err)
			} else {
				emitter = natsEmitter
			}
		}
		if emitter == nil {
			emitter = &event.LogEmitter{Log: log}
		}
	}

	queryTimeout := time.Duration(cfg.Timeouts.QuerySeconds) * time.Second
	sums := &checksum.Store{Path: config.ChecksumPath(root)}

	modules := cfg.Drivers.Modules
	xoneModule, padModule := config.ModuleXone, config.ModuleXpad
	if len(modules) > 0 {
		xoneModule = modules[0]
	}
	if len(modules) > 1 {
		padModule = modules[1]
	}

	return &Service{
		Config: cfg,
		Root:   root,
		Reader: &dkms.Reader{
			Runner:       runner,
			XoneModule:   xoneModule,
			PadModule:    padModule,
			ManifestPath: config.ManifestPath(root),
			QueryTimeout: queryTimeout,
			Log:          log,
		},
		Kernel: &kernel.Tracker{
			RecordPath:   config.KernelRecordPath(root),
			Runner:       runner,
			QueryTimeout: queryTimeout,
			Log:          log,
		},
		Release: &release.Service{
			Client:      client,
			ReleaseURL:  cfg.Update.ReleaseURL,
			AssetExt:    cfg.Update.AssetExtension,
			DownloadDir: config.DownloadDir(root, cfg),
			Sums:        sums,
			Log:         log,
		},
		Pairing: &pairing.Controller{AttributeGlob: cfg.Pairing.AttributeGlob, Log: log},
		Doctor: &doctor.Service{
			Runner:          runner,
			SettingsRoot:    root,
			InstallScript:   config.InstallScript(),
			UninstallScript: config.UninstallScript(),
			QueryTimeout:    queryTimeout,
		},
		Emitter: emitter,
		Audit:   audit.New(config.AuditPath(root)),
		runner:  runner,
		log:     log,
	}, nil
}

// Load is the host load hook. It runs exactly one kernel reconciliation
// pass and notifies the front end on mismatch; it never retries and
// never fails the load.
func (s *Service) Load(ctx context.Context) {
	s.log.Info("driver manager loaded")
	state := s.InstallStatus(ctx)
	mismatch, err := s.Kernel.Reconcile(ctx, state.FullyInstalled)
	if err != nil {
		s.log.Error("kernel reconciliation failed", "error", err)
		return
	}
	if mismatch != nil {
		s.Emitter.Emit(ctx, event.KernelUpdate(mismatch.Old, mismatch.New))
	}
}

// Unload is the host unload hook.
func (s *Service) Unload(context.Context) {
	s.log.Info("driver manager unloaded")
}

// Uninstall is the host plugin-removal hook.
func (s *Service) Uninstall(context.Context) {
	s.log.Info("driver manager uninstalled")
}

// InstallStatus derives the current driver installation state.
func (s *Service) InstallStatus(ctx context.Context) dkms.State {
	return s.Reader.Read(ctx)
}

// PairingStatus reads the dongle pairing attribute.
func (s *Service) PairingStatus() pairing.Status {
	return s.Pairing.Read()
}

// CheckForUpdates compares the upstream latest release against the
// locally declared plugin version.
func (s *Service) CheckForUpdates(ctx context.Context) release.UpdateReport {
	state := s.InstallStatus(ctx)
	return s.Release.Check(ctx, state.PluginVersion)
}

// EnablePairing puts every attached dongle into pairing mode.
func (s *Service) EnablePairing(ctx context.Context) (res Result) {
	defer s.guard("enable_pairing", &res)
	return s.setPairing(ctx, true)
}

// DisablePairing takes every attached dongle out of pairing mode.
func (s *Service) DisablePairing(ctx context.Context) (res Result) {
	defer s.guard("disable_pairing", &res)
	return s.setPairing(ctx, false)
}

func (s *Service) setPairing(_ context.Context, enabled bool) Result {
	op := "disable_pairing"
	if enabled {
		op = "enable_pairing"
	}
	if err := s.Pairing.Set(enabled); err != nil {
		_ = s.Audit.Record(audit.Entry{Operation: op, Phase: "finish", Outcome: "failed", Detail: err.Error()})
		return failure(err.Error())
	}
	_ = s.Audit.Record(audit.Entry{Operation: op, Phase: "finish", Outcome: "ok"})
	return success("")
}

// DownloadLatestRelease fetches the newest distributable archive and
// records its checksum.
func (s *Service) DownloadLatestRelease(ctx context.Context) (res DownloadResult) {
	defer s.guard("download", &res.Result)
	report := s.CheckForUpdates(ctx)
	if report.Error != "" {
		return DownloadResult{Result: failure(report.Error)}
	}
	if report.DownloadURL == "" {
		return DownloadResult{Result: failure("no distributable asset in latest release")}
	}
	_ = s.Audit.Record(audit.Entry{Operation: "download", Phase: "start", Outcome: "ok",
		Fields: map[string]string{"url": report.DownloadURL}})
	dl, err := s.Release.Fetch(ctx, report.DownloadURL)
	if err != nil {
		_ = s.Audit.Record(audit.Entry{Operation: "download", Phase: "finish", Outcome: "failed", Detail: err.Error()})
		return DownloadResult{Result: failure(err.Error())}
	}
	_ = s.Audit.Record(audit.Entry{Operation: "download", Phase: "finish", Outcome: "ok",
		Fields: map[string]string{"path": dl.Path, "sha256": dl.Hash, "version": dl.Version}})
	return DownloadResult{Result: success(""), Path: dl.Path, Hash: dl.Hash, Version: dl.Version}
}

// InstallDrivers runs the bundled install script. Exit code 100 or the
// stdout marker means the script upgraded kernel headers and the box
// must reboot before the build can succeed; that outcome is neither a
// success nor a generic failure, and the kernel record stays untouched.
func (s *Service) InstallDrivers(ctx context.Context) (res Result) {
	defer s.guard("install", &res)
	script := config.InstallScript()
	if _, err := os.Stat(script); err != nil {
		return failure(installScriptGone)
	}
	s.log.Info("starting driver installation", "script", script)
	_ = s.Audit.Record(audit.Entry{Operation: "install", Phase: "start", Outcome: "ok"})

	out, err := s.runner.Run(ctx, execx.Spec{
		Argv:    []string{"bash", script},
		Timeout: time.Duration(s.Config.Timeouts.InstallSeconds) * time.Second,
	})
	if err != nil {
		_ = s.Audit.Record(audit.Entry{Operation: "install", Phase: "finish", Outcome: "failed", Detail: err.Error()})
		return failure(err.Error())
	}
	if out.ExitCode == rebootExitCode || containsMarker(out.Stdout) {
		s.log.Info("kernel upgraded during install, reboot required")
		_ = s.Audit.Record(audit.Entry{Operation: "install", Phase: "finish", Outcome: "reboot_required"})
		return Result{RebootRequired: true, Message: rebootMessage, Output: out.Stdout}
	}
	if out.ExitCode != 0 {
		s.log.Error("install failed", "exit", out.ExitCode, "stderr", out.Stderr)
		_ = s.Audit.Record(audit.Entry{Operation: "install", Phase: "finish", Outcome: "failed", Detail: out.Stderr})
		res = failure(firstNonEmpty(out.Stderr, "Installation failed"))
		res.Output = out.Stdout
		return res
	}

	if err := s.Kernel.SaveCurrent(ctx); err != nil {
		// Install succeeded; a record write failure only costs us the
		// next mismatch check, so log it rather than failing the op.
		s.log.Error("saving kernel record failed", "error", err)
	}
	s.log.Info("driver installation completed")
	_ = s.Audit.Record(audit.Entry{Operation: "install", Phase: "finish", Outcome: "ok"})
	return Result{Success: true, Output: out.Stdout}
}

// UninstallDrivers runs the bundled uninstall script and forgets the
// kernel record on success.
func (s *Service) UninstallDrivers(ctx context.Context) (res Result) {
	defer s.guard("uninstall", &res)
	script := config.UninstallScript()
	if _, err := os.Stat(script); err != nil {
		return failure(uninstallScriptGone)
	}
	s.log.Info("starting driver uninstallation", "script", script)
	_ = s.Audit.Record(audit.Entry{Operation: "uninstall", Phase: "start", Outcome: "ok"})

	out, err := s.runner.Run(ctx, execx.Spec{
		Argv:    []string{"bash", script},
		Timeout: time.Duration(s.Config.Timeouts.UninstallSeconds) * time.Second,
	})
	if err != nil {
		_ = s.Audit.Record(audit.Entry{Operation: "uninstall", Phase: "finish", Outcome: "failed", Detail: err.Error()})
		return failure(err.Error())
	}
	if out.ExitCode != 0 {
		_ = s.Audit.Record(audit.Entry{Operation: "uninstall", Phase: "finish", Outcome: "failed", Detail: out.Stderr})
		res = failure(firstNonEmpty(out.Stderr, "Uninstallation failed"))
		res.Output = out.Stdout
		return res
	}

	if err := s.Kernel.Clear(); err != nil {
		s.log.Error("clearing kernel record failed", "error", err)
	}
	s.log.Info("driver uninstallation completed")
	_ = s.Audit.Record(audit.Entry{Operation: "uninstall", Phase: "finish", Outcome: "ok"})
	return Result{Success: true, Output: out.Stdout}
}

// RunDoctor reports on the host environment.
func (s *Service) RunDoctor(ctx context.Context) doctor.Report {
	return s.Doctor.Run(ctx)
}

// guard is the catch-all at the orchestrator boundary: no fault,
// anticipated or not, escapes as a panic to the host.
func (s *Service) guard(op string, res *Result) {
	if r := recover(); r != nil {
		s.log.Error("unanticipated fault", "operation", op, "fault", r)
		*res = failure(fmt.Sprintf("internal fault during %s: %v", op, r))
	}
}
