package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"xonemgr/internal/app"
	"xonemgr/internal/config"
)

type ExitCoder interface {
	ExitCode() int
}

type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }
func (e *exitError) ExitCode() int { return e.code }

// rebootExitCode mirrors the install script contract so wrappers can
// branch on it without parsing output.
const rebootExitCode = 100

func main() {
	_ = godotenv.Load()
	if err := newRootCmd().Execute(); err != nil {
		if err.Error() != "" {
			fmt.Fprintln(os.Stderr, err)
		}
		if ex, ok := err.(ExitCoder); ok {
			os.Exit(ex.ExitCode())
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	var jsonOutput bool
	var logLevel string

	newSvc := func() (*app.Service, error) {
		svc, err := app.New(app.Options{ConfigPath: configPath})
		if err != nil {
			return nil, err
		}
		setupLogging(logLevel, svc.Config.Logging.Level)
		return svc, nil
	}

	cmd := &cobra.Command{
		Use:           "xonemgr",
		Short:         "Lifecycle manager for the xone and xpad-noone drivers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output JSON")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override configured log level")

	cmd.AddCommand(newStatusCmd(newSvc, &jsonOutput))
	cmd.AddCommand(newPairingCmd(newSvc, &jsonOutput))
	cmd.AddCommand(newUpdateCmd(newSvc, &jsonOutput))
	cmd.AddCommand(newInstallCmd(newSvc, &jsonOutput))
	cmd.AddCommand(newUninstallCmd(newSvc, &jsonOutput))
	cmd.AddCommand(newLoadCmd(newSvc, &jsonOutput))
	cmd.AddCommand(newDoctorCmd(newSvc, &jsonOutput))
	cmd.AddCommand(newVersionCmd(&jsonOutput))

	return cmd
}

func setupLogging(override, configured string) {
	level := configured
	if override != "" {
		level = override
	}
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})))
}

func newStatusCmd(newSvc func() (*app.Service, error), jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show driver installation status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newSvc()
			if err != nil {
				return err
			}
			st := svc.InstallStatus(cmd.Context())
			if *jsonOutput {
				return print(true, st, "")
			}
			fmt.Printf("xone:       %s\n", installed(st.XoneInstalled))
			fmt.Printf("xpad-noone: %s\n", installed(st.PadInstalled))
			fmt.Printf("plugin:     v%s\n", st.PluginVersion)
			if st.Error != "" {
				color.Red("warning: %s", st.Error)
			}
			return nil
		},
	}
}

func newPairingCmd(newSvc func() (*app.Service, error), jsonOutput *bool) *cobra.Command {
	pairingCmd := &cobra.Command{Use: "pairing", Short: "Manage dongle pairing mode"}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show pairing status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newSvc()
			if err != nil {
				return err
			}
			st := svc.PairingStatus()
			if *jsonOutput {
				return print(true, st, "")
			}
			switch {
			case !st.Available:
				fmt.Println("no dongle connected")
			case st.Pairing:
				color.Green("pairing mode enabled")
			default:
				fmt.Println("pairing mode disabled")
			}
			return nil
		},
	}

	onCmd := &cobra.Command{
		Use:   "on",
		Short: "Enable pairing mode",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newSvc()
			if err != nil {
				return err
			}
			return reportResult(*jsonOutput, svc.EnablePairing(cmd.Context()), "pairing mode enabled")
		},
	}

	offCmd := &cobra.Command{
		Use:   "off",
		Short: "Disable pairing mode",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newSvc()
			if err != nil {
				return err
			}
			return reportResult(*jsonOutput, svc.DisablePairing(cmd.Context()), "pairing mode disabled")
		},
	}

	pairingCmd.AddCommand(statusCmd, onCmd, offCmd)
	return pairingCmd
}

func newUpdateCmd(newSvc func() (*app.Service, error), jsonOutput *bool) *cobra.Command {
	updateCmd := &cobra.Command{Use: "update", Short: "Check for and download driver releases"}

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Check the upstream release endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newSvc()
			if err != nil {
				return err
			}
			report := svc.CheckForUpdates(cmd.Context())
			if *jsonOutput {
				return print(true, report, "")
			}
			if report.Error != "" {
				return &exitError{code: 1, msg: "update check failed: " + report.Error}
			}
			if report.UpdateAvailable {
				color.Yellow("update available: %s (installed %s)", report.LatestVersion, report.CurrentVersion)
				if report.FileExists {
					fmt.Println("a verified copy is already downloaded")
				}
			} else {
				fmt.Printf("up to date (%s)\n", report.CurrentVersion)
			}
			return nil
		},
	}

	downloadCmd := &cobra.Command{
		Use:   "download",
		Short: "Download the latest release archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newSvc()
			if err != nil {
				return err
			}
			res := svc.DownloadLatestRelease(cmd.Context())
			if *jsonOutput {
				return printThenExit(res, res.Result)
			}
			if !res.Success {
				return &exitError{code: 1, msg: "download failed: " + res.Error}
			}
			color.Green("downloaded %s (%s)", res.Path, res.Version)
			fmt.Printf("sha256: %s\n", res.Hash)
			return nil
		},
	}

	updateCmd.AddCommand(checkCmd, downloadCmd)
	return updateCmd
}

func newInstallCmd(newSvc func() (*app.Service, error), jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Build and install the drivers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newSvc()
			if err != nil {
				return err
			}
			return reportResult(*jsonOutput, svc.InstallDrivers(cmd.Context()), "drivers installed")
		},
	}
}

func newUninstallCmd(newSvc func() (*app.Service, error), jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall",
		Short: "Remove the drivers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newSvc()
			if err != nil {
				return err
			}
			return reportResult(*jsonOutput, svc.UninstallDrivers(cmd.Context()), "drivers uninstalled")
		},
	}
}

func newLoadCmd(newSvc func() (*app.Service, error), jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "load",
		Short: "Run the host load hook (one kernel reconciliation pass)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newSvc()
			if err != nil {
				return err
			}
			svc.Load(cmd.Context())
			return print(*jsonOutput, map[string]bool{"loaded": true}, "loaded")
		},
	}
}

func newDoctorCmd(newSvc func() (*app.Service, error), jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the host environment for install prerequisites",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newSvc()
			if err != nil {
				return err
			}
			report := svc.RunDoctor(cmd.Context())
			if *jsonOutput {
				if err := print(true, report, ""); err != nil {
					return err
				}
			} else {
				for _, f := range report.Findings {
					if f.Level == "error" {
						color.Red("%s: %s", f.Code, f.Message)
					} else {
						color.Yellow("%s: %s", f.Code, f.Message)
					}
				}
				if report.Healthy {
					color.Green("host looks ready")
				}
			}
			if !report.Healthy {
				return &exitError{code: 1, msg: "doctor found problems"}
			}
			return nil
		},
	}
}

func newVersionCmd(jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := map[string]string{
				"version": config.Version,
				"commit":  config.Commit,
				"date":    config.Date,
			}
			if *jsonOutput {
				return print(true, info, "")
			}
			fmt.Printf("xonemgr %s\ncommit: %s\nbuilt at: %s\n", config.Version, config.Commit, config.Date)
			return nil
		},
	}
}

// reportResult prints a lifecycle result and maps it onto the process
// exit code: 0 success, 100 reboot required, 1 anything else.
func reportResult(jsonOutput bool, res app.Result, okMsg string) error {
	if jsonOutput {
		return printThenExit(res, res)
	}
	switch {
	case res.RebootRequired:
		color.Yellow("%s", res.Message)
		return &exitError{code: rebootExitCode, msg: ""}
	case res.Success:
		color.Green("%s", okMsg)
		return nil
	default:
		return &exitError{code: 1, msg: res.Error}
	}
}

// printThenExit emits the JSON payload and still signals the outcome
// through the exit code for scripted callers.
func printThenExit(payload any, res app.Result) error {
	if err := print(true, payload, ""); err != nil {
		return err
	}
	switch {
	case res.RebootRequired:
		return &exitError{code: rebootExitCode, msg: ""}
	case res.Success:
		return nil
	default:
		return &exitError{code: 1, msg: ""}
	}
}

func print(jsonOutput bool, payload any, message string) error {
	if jsonOutput {
		blob, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(blob))
		return nil
	}
	if message != "" {
		fmt.Println(message)
	}
	return nil
}

func installed(v bool) string {
	if v {
		return color.GreenString("installed")
	}
	return color.RedString("not installed")
}
