package config

import (
	"os"
	"path/filepath"
)

// SettingsDirEnv points at the directory holding all persisted state.
// The host plugin runtime sets it; unset means a throwaway temp root.
const SettingsDirEnv = "XONEMGR_SETTINGS_DIR"

// PluginDirEnv points at the plugin installation holding the bundled
// install/uninstall scripts.
const PluginDirEnv = "XONEMGR_PLUGIN_DIR"

// SettingsRoot resolves the state directory from the environment.
func SettingsRoot() string {
	if dir := os.Getenv(SettingsDirEnv); dir != "" {
		return dir
	}
	return filepath.Join(os.TempDir(), "xonemgr")
}

func ConfigPath(root string) string {
	return filepath.Join(root, "config.toml")
}

// KernelRecordPath is the single-line file holding the kernel release
// the drivers were last built against.
func KernelRecordPath(root string) string {
	return filepath.Join(root, "installed_kernel_version")
}

func ChecksumPath(root string) string {
	return filepath.Join(root, "checksums.toml")
}

// ManifestPath is the plugin manifest carrying the locally declared
// plugin version.
func ManifestPath(root string) string {
	return filepath.Join(root, "manifest.toml")
}

func AuditPath(root string) string {
	return filepath.Join(root, "audit.log")
}

// DownloadDir is where release archives land. An explicit configured
// dir wins; otherwise downloads live under the settings root.
func DownloadDir(root string, cfg Config) string {
	if cfg.Update.DownloadDir != "" {
		return cfg.Update.DownloadDir
	}
	return filepath.Join(root, "downloads")
}

// ScriptsDir locates the bundled install/uninstall scripts.
func ScriptsDir() string {
	dir := os.Getenv(PluginDirEnv)
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, "defaults", "scripts")
}

func InstallScript() string {
	return filepath.Join(ScriptsDir(), "install.sh")
}

func UninstallScript() string {
	return filepath.Join(ScriptsDir(), "uninstall.sh")
}
