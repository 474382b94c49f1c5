package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/plughost/plughost/pkg/plugin"
)

// Store is the Configuration Store: an in-memory Config snapshot
// backed by a YAML file, with atomic writes and schema validation.
// Readers in flight see either the old or new snapshot, never a
// partial mix — every read inspects or copies the current Config under
// RLock, and every write swaps in a whole new Config under Lock.
type Store struct {
	mu   sync.RWMutex
	path string
	cfg  Config
	log  *slog.Logger

	watcher *fsnotify.Watcher
	stop    chan struct{}
}

// Load reads path, synthesizing and persisting a default Config if the
// file is missing. A malformed or schema-invalid file falls back to
// defaults in memory without touching the file on disk, so the
// operator can inspect and fix it by hand (§4.3). Unknown top-level
// keys are dropped with a warning.
func Load(path string, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	s := &Store{path: path, log: log}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		s.cfg = Default()
		if err := s.save(s.cfg); err != nil {
			return nil, plugin.NewError(plugin.KindIoError, "", "writing default config", err)
		}
		return s, nil
	}
	if err != nil {
		return nil, plugin.NewError(plugin.KindIoError, "", "reading config", err)
	}

	cfg, err := parse(data)
	if err != nil {
		log.Warn("config file is invalid, falling back to defaults without overwriting it", "path", path, "error", err)
		s.cfg = Default()
		return s, nil
	}

	var top map[string]interface{}
	if yaml.Unmarshal(data, &top) == nil {
		for key := range top {
			switch key {
			case "plugins_dir", "log_level", "server", "plugins":
			default:
				log.Warn("dropping unknown top-level config key", "path", path, "key", key)
			}
		}
	}

	s.cfg = normalize(cfg)
	return s, nil
}

// parse decodes and schema-validates a YAML document, returning a
// ConfigError (never a bare decode error) on any failure.
func parse(data []byte) (Config, error) {
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Config{}, plugin.NewError(plugin.KindConfigError, "", "invalid YAML", err)
	}

	schemaLoader := gojsonschema.NewStringLoader(jsonSchema)
	docLoader := gojsonschema.NewGoLoader(raw)
	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return Config{}, plugin.NewError(plugin.KindConfigError, "", "schema validation error", err)
	}
	if !result.Valid() {
		return Config{}, plugin.NewError(plugin.KindConfigError, "", fmt.Sprintf("schema violations: %v", result.Errors()), nil)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, plugin.NewError(plugin.KindConfigError, "", "decoding config", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, plugin.NewError(plugin.KindConfigError, "", err.Error(), err)
	}
	return cfg, nil
}

// normalize fills in zero-value defaults for fields that round-trip
// fine through YAML but must never be nil in memory (the plugins map).
func normalize(cfg Config) Config {
	if cfg.Plugins == nil {
		cfg.Plugins = map[string]PluginConfig{}
	}
	return cfg
}

// Snapshot returns a copy of the current in-memory Config.
func (s *Store) Snapshot() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// save writes cfg to a sibling temp file and renames it over the
// target path, so a crash mid-write never leaves a truncated config
// (§4.3). Caller must hold no lock; save acquires its own.
func (s *Store) save(cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}

	tmp, err := os.CreateTemp(dir, ".config-*.yaml.tmp")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp config: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp config: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("rename config into place: %w", err)
	}

	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	return nil
}

// Save persists cfg, replacing the in-memory snapshot only once the
// write has durably landed.
func (s *Store) Save(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return plugin.NewError(plugin.KindConfigError, "", err.Error(), err)
	}
	if err := s.save(normalize(cfg)); err != nil {
		return plugin.NewError(plugin.KindIoError, "", "saving config", err)
	}
	return nil
}

// Reload re-reads the config file from disk and atomically swaps the
// in-memory snapshot. A malformed file on reload is logged, as on
// initial Load, but the previous snapshot is kept rather than replaced
// with defaults.
func (s *Store) Reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return plugin.NewError(plugin.KindIoError, "", "reloading config", err)
	}
	cfg, err := parse(data)
	if err != nil {
		s.log.Warn("config reload produced an invalid document, keeping previous snapshot", "error", err)
		return nil
	}
	s.mu.Lock()
	s.cfg = normalize(cfg)
	s.mu.Unlock()
	return nil
}

// GetPluginEnabled returns the plugin's enabled bit, defaulting to
// true when the plugin is not mentioned in config at all.
func (s *Store) GetPluginEnabled(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pc, ok := s.cfg.Plugins[name]
	if !ok {
		return true
	}
	return pc.Enabled
}

// SetPluginEnabled sets and persists the plugin's enabled bit. Stale
// entries for plugins not currently loaded are preserved, never
// pruned, so settings survive a plugin temporarily failing to load.
func (s *Store) SetPluginEnabled(name string, enabled bool) error {
	s.mu.Lock()
	cfg := s.cfg
	pc := cfg.Plugins[name]
	pc.Enabled = enabled
	cfg.Plugins = cloneAndSet(cfg.Plugins, name, pc)
	s.mu.Unlock()

	return s.Save(cfg)
}

// GetPluginSettings returns a copy of the plugin's free-form settings.
func (s *Store) GetPluginSettings(name string) map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pc, ok := s.cfg.Plugins[name]
	if !ok {
		return map[string]interface{}{}
	}
	out := make(map[string]interface{}, len(pc.Settings))
	for k, v := range pc.Settings {
		out[k] = v
	}
	return out
}

// SetPluginSetting sets a single settings key and persists it. Unknown
// plugins get an implicit enabled=true entry, matching the documented
// default for GetPluginEnabled.
func (s *Store) SetPluginSetting(name, key string, value interface{}) error {
	s.mu.Lock()
	cfg := s.cfg
	pc, existed := cfg.Plugins[name]
	if !existed {
		pc.Enabled = true
	}
	if pc.Settings == nil {
		pc.Settings = map[string]interface{}{}
	}
	settings := make(map[string]interface{}, len(pc.Settings)+1)
	for k, v := range pc.Settings {
		settings[k] = v
	}
	settings[key] = value
	pc.Settings = settings
	cfg.Plugins = cloneAndSet(cfg.Plugins, name, pc)
	s.mu.Unlock()

	return s.Save(cfg)
}

func cloneAndSet(m map[string]PluginConfig, name string, pc PluginConfig) map[string]PluginConfig {
	out := make(map[string]PluginConfig, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	out[name] = pc
	return out
}

// Path returns the on-disk path this store reads from and writes to.
func (s *Store) Path() string { return s.path }

// Watch starts an fsnotify watch on the config file and invokes onChange
// (typically Manager.ReloadConfig) whenever it is written or replaced.
// Grounded in the teacher's loader.Loader, which watches the plugin
// directory the same way for hot reload. Returns a stop function.
func (s *Store) Watch(onChange func()) (stop func(), err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create config watcher: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch config dir: %w", err)
	}

	s.watcher = w
	s.stop = make(chan struct{})
	target := filepath.Clean(s.path)

	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					onChange()
				}
			case werr, ok := <-w.Errors:
				if !ok {
					return
				}
				s.log.Warn("config watcher error", "error", werr)
			case <-s.stop:
				return
			}
		}
	}()

	return func() {
		close(s.stop)
		w.Close()
	}, nil
}
