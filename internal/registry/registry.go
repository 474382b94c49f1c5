// Package registry owns dynamically loaded plugin libraries: discovery,
// loading, lookup, execution, and unloading. It knows nothing about
// enable/disable policy or configuration — that lives one layer up, in
// the manager package.
package registry

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/plughost/plughost/pkg/plugin"
)

// entry is one loaded plugin: its library handle and the self pointer
// returned by register_plugin. The library must outlive the plugin
// instance (R1) — unload() enforces that ordering explicitly.
type entry struct {
	lib         *library
	self        uintptr
	name        string
	version     string
	description string
	path        string
	loadedAt    time.Time
}

// Registry is the owner of loaded plugin libraries. All access goes
// through a single RWMutex: get/list/execute take a read lock and
// load_from_path/unload take a write lock (Scan takes it once per
// candidate, through LoadFromPath). Execute holds the read
// lock for the full duration of the plugin call, so a concurrent
// unload blocks until any in-flight execute on the registry returns —
// this is what makes scenario F (§8) hold without per-plugin locks.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	log     *slog.Logger
}

// New creates an empty Registry.
func New(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{entries: make(map[string]*entry), log: log}
}

// isSharedObject reports whether name carries one of the platform
// shared-library suffixes the scan recognizes (§6).
func isSharedObject(name string) bool {
	lower := strings.ToLower(name)
	for _, suf := range plugin.SharedObjectSuffixes {
		if strings.HasSuffix(lower, suf) {
			return true
		}
	}
	return false
}

// Scan enumerates directory for shared objects and attempts to load
// each one. A failure on any single file is recorded in the report and
// does not abort the scan (R4 applies per-candidate, not to the scan
// as a whole). The loaded list is sorted by filename so two scans of
// an unchanged directory are byte-identical (invariant 6).
func (r *Registry) Scan(directory string) (plugin.ScanReport, error) {
	dirEntries, err := os.ReadDir(directory)
	if err != nil {
		if os.IsNotExist(err) {
			return plugin.ScanReport{}, nil
		}
		return plugin.ScanReport{}, fmt.Errorf("read plugins dir %s: %w", directory, err)
	}

	var candidates []string
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		if isSharedObject(de.Name()) {
			candidates = append(candidates, de.Name())
		}
	}
	sort.Strings(candidates)

	r.mu.RLock()
	loadedByPath := make(map[string]string, len(r.entries))
	for name, e := range r.entries {
		loadedByPath[e.path] = name
	}
	r.mu.RUnlock()

	report := plugin.ScanReport{Loaded: []string{}, Failed: []plugin.ScanFailure{}}
	for _, filename := range candidates {
		path := filepath.Join(directory, filename)
		if name, ok := loadedByPath[path]; ok {
			// Already resident from an earlier scan: report it as loaded
			// again rather than re-opening it as a duplicate.
			report.Loaded = append(report.Loaded, name)
			continue
		}
		name, err := r.LoadFromPath(path)
		if err != nil {
			report.Failed = append(report.Failed, plugin.ScanFailure{Path: path, Error: err.Error()})
			r.log.Warn("plugin load failed during scan", "path", path, "error", err)
			continue
		}
		report.Loaded = append(report.Loaded, name)
	}
	return report, nil
}

// LoadFromPath opens the shared object at path, validates the ABI
// contract, instantiates the plugin, and registers it under its
// self-reported name. On any error the library is closed and no
// registry state is mutated (R4).
func (r *Registry) LoadFromPath(path string) (string, error) {
	lib, err := openLibrary(path)
	if err != nil {
		return "", plugin.NewError(plugin.KindLoadFailed, "", path, err)
	}

	if lib.abiVersion != nil {
		if got := lib.abiVersion(); got != plugin.ABIVersion {
			lib.close()
			return "", plugin.NewError(plugin.KindAbiMismatch, "", fmt.Sprintf("%s: host ABI %d, plugin ABI %d", path, plugin.ABIVersion, got), nil)
		}
	} else {
		r.log.Warn("plugin does not export plugin_abi_version, loading without a version check", "path", path)
	}

	self := lib.registerPlugin()
	if self == 0 {
		lib.close()
		return "", plugin.NewError(plugin.KindLoadFailed, "", path+": register_plugin returned a null instance", nil)
	}

	name := lib.callString(lib.pluginName, self)
	if name == "" {
		lib.destroy(self)
		lib.close()
		return "", plugin.NewError(plugin.KindLoadFailed, "", path+": plugin reported an empty name", nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[name]; exists {
		lib.destroy(self)
		lib.close()
		return "", plugin.NewError(plugin.KindDuplicateName, name, fmt.Sprintf("%s: name already registered", path), nil)
	}

	e := &entry{
		lib:         lib,
		self:        self,
		name:        name,
		version:     lib.callString(lib.version, self),
		description: lib.callString(lib.description, self),
		path:        path,
		loadedAt:    time.Now(),
	}
	r.entries[name] = e
	r.log.Info("plugin loaded", "name", name, "version", e.version, "path", path)
	return name, nil
}

// Unload drops the plugin instance and closes its library handle. It
// takes the registry write lock, which blocks until any in-flight
// Execute on this (or any other) plugin releases its read lock — so a
// long-running call is never yanked out from under itself (scenario F).
func (r *Registry) Unload(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[name]
	if !ok {
		return plugin.NewError(plugin.KindNotFound, name, "plugin not loaded", nil)
	}

	e.lib.destroy(e.self)
	if err := e.lib.close(); err != nil {
		r.log.Warn("error closing plugin library", "name", name, "error", err)
	}
	delete(r.entries, name)
	r.log.Info("plugin unloaded", "name", name)
	return nil
}

func infoFor(e *entry) plugin.Info {
	return plugin.Info{
		Name:        e.name,
		Version:     e.version,
		Description: e.description,
		Loaded:      true,
		Path:        e.path,
		LoadedAt:    e.loadedAt,
	}
}

// Get returns the projection for a single loaded plugin.
func (r *Registry) Get(name string) (plugin.Info, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[name]
	if !ok {
		return plugin.Info{}, plugin.NewError(plugin.KindNotFound, name, "plugin not loaded", nil)
	}
	return infoFor(e), nil
}

// List returns every loaded plugin, sorted by name.
func (r *Registry) List() []plugin.Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]plugin.Info, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, infoFor(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Execute forwards input to the named plugin and returns its raw
// output, wrapping any foreign panic as ExecutionFailed without
// tearing down the host. It does not consult enable state — that is
// the Manager's job. The read lock is held for the whole call so a
// concurrent Unload cannot free the library mid-execution.
func (r *Registry) Execute(name, input string) (output string, err error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[name]
	if !ok {
		return "", plugin.NewError(plugin.KindNotFound, name, "plugin not loaded", nil)
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = plugin.NewError(plugin.KindExecutionFailed, name, "plugin panicked", fmt.Errorf("%v", rec))
		}
	}()

	result, pluginErr, failed := e.lib.execString(e.self, input)
	if failed {
		return "", plugin.NewError(plugin.KindExecutionFailed, name, pluginErr, nil)
	}
	return result, nil
}

// Has reports whether name is currently loaded.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[name]
	return ok
}

// Names returns the set of currently loaded plugin names, in no
// particular order. The Manager uses its length as the loaded-plugin
// count it reports to metrics.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.entries))
	for name := range r.entries {
		out = append(out, name)
	}
	return out
}

// Close unloads every plugin, dropping instances before closing any
// library handle (ownership summary, §3): no cycles, no library
// outliving the plugin it backs.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, e := range r.entries {
		e.lib.destroy(e.self)
		if err := e.lib.close(); err != nil {
			r.log.Warn("error closing plugin library during shutdown", "name", name, "error", err)
		}
	}
	r.entries = make(map[string]*entry)
}
