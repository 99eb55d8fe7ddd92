package config

// SchemaVersion is the frozen config schema version.
const SchemaVersion = 1

// Config is the on-disk configuration for the driver manager.
type Config struct {
	Version  int            `toml:"version"`
	Drivers  DriversConfig  `toml:"drivers"`
	Update   UpdateConfig   `toml:"update"`
	Pairing  PairingConfig  `toml:"pairing"`
	Timeouts TimeoutsConfig `toml:"timeouts"`
	Events   EventsConfig   `toml:"events"`
	Logging  LoggingConfig  `toml:"logging"`
}

// DriversConfig names the dkms modules under management.
type DriversConfig struct {
	Modules []string `toml:"modules"`
}

// UpdateConfig points at the upstream release endpoint and the local
// download area.
type UpdateConfig struct {
	ReleaseURL     string `toml:"release_url"`
	AssetExtension string `toml:"asset_extension"`
	DownloadDir    string `toml:"download_dir,omitempty"`
}

// PairingConfig holds the sysfs glob for dongle pairing attributes.
type PairingConfig struct {
	AttributeGlob string `toml:"attribute_glob"`
}

// TimeoutsConfig bounds the external operations, in seconds.
type TimeoutsConfig struct {
	InstallSeconds   int `toml:"install_seconds"`
	UninstallSeconds int `toml:"uninstall_seconds"`
	QuerySeconds     int `toml:"query_seconds"`
	FetchSeconds     int `toml:"fetch_seconds"`
}

// EventsConfig configures the host event channel. An empty NATS URL
// means events are logged instead of published.
type EventsConfig struct {
	NATSURL string `toml:"nats_url,omitempty"`
	Subject string `toml:"subject"`
}

type LoggingConfig struct {
	Level string `toml:"level"`
}
