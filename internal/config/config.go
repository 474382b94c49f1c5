// Package config implements the plugin host's Configuration Store: a
// durable, schema-validated mapping of system settings and per-plugin
// state to a human-editable YAML file (§4.3 of the spec).
package config

// PluginConfig is the per-plugin record kept in the store.
type PluginConfig struct {
	Enabled  bool                   `yaml:"enabled"`
	Settings map[string]interface{} `yaml:"settings,omitempty"`
}

// ServerConfig is advisory configuration for the HTTP front-end.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// Enabled is advisory: it is persisted and validated, but the serve
	// subcommand does not consult it and starts the HTTP front-end
	// regardless of its value.
	Enabled bool `yaml:"enabled"`
	// RescanSchedule is an optional cron expression (robfig/cron
	// syntax). Empty disables scheduled rescans. This is a
	// supplemental field (§12 of SPEC_FULL.md) layered beside the
	// fields the base spec names; it changes nothing about how
	// rescan() itself behaves.
	RescanSchedule string `yaml:"rescan_schedule,omitempty"`
}

// Config is the root document persisted to config.yaml.
type Config struct {
	PluginsDir string                  `yaml:"plugins_dir"`
	LogLevel   string                  `yaml:"log_level"`
	Server     ServerConfig            `yaml:"server"`
	Plugins    map[string]PluginConfig `yaml:"plugins"`
}

// ValidLogLevels enumerates the log_level enum per the data model.
var ValidLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Default returns the spec's documented default configuration.
func Default() Config {
	return Config{
		PluginsDir: "target/plugins",
		LogLevel:   "info",
		Server: ServerConfig{
			Host:    "127.0.0.1",
			Port:    8080,
			Enabled: true,
		},
		Plugins: map[string]PluginConfig{},
	}
}

// Validate enforces the Config invariants from §3: a non-empty
// plugins_dir, a recognized log_level, and a server port in range.
func (c Config) Validate() error {
	if c.PluginsDir == "" {
		return errInvalid("plugins_dir must not be empty")
	}
	if !ValidLogLevels[c.LogLevel] {
		return errInvalid("log_level must be one of trace, debug, info, warn, error")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return errInvalid("server.port must be in [1, 65535]")
	}
	return nil
}

type validationError string

func (e validationError) Error() string { return string(e) }

func errInvalid(msg string) error { return validationError(msg) }
