package config

// Module names and hardware paths are fixed by the drivers themselves;
// the defaults here are the values a stock install uses.
const (
	ModuleXone    = "xone"
	ModuleXpad    = "xpad-noone"
	DefaultGlob   = "/sys/bus/usb/drivers/xone-dongle/*/pairing"
	defaultLatest = "https://api.github.com/repos/dlundqvist/xone/releases/latest"
)

func DefaultConfig() Config {
	return Config{
		Version: SchemaVersion,
		Drivers: DriversConfig{
			Modules: []string{ModuleXone, ModuleXpad},
		},
		Update: UpdateConfig{
			ReleaseURL:     defaultLatest,
			AssetExtension: ".tar.gz",
		},
		Pairing: PairingConfig{
			AttributeGlob: DefaultGlob,
		},
		Timeouts: TimeoutsConfig{
			InstallSeconds:   600,
			UninstallSeconds: 300,
			QuerySeconds:     15,
			FetchSeconds:     30,
		},
		Events: EventsConfig{
			Subject: "xonemgr.events",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
