// Package manager implements the plugin host's user-facing policy
// layer: it composes the Registry and the Configuration Store, adds
// enable/disable semantics, retry/backoff, timing, and batch
// execution, and is the single object both front-ends share.
package manager

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/plughost/plughost/internal/config"
	"github.com/plughost/plughost/internal/events"
	"github.com/plughost/plughost/internal/history"
	"github.com/plughost/plughost/internal/metrics"
	"github.com/plughost/plughost/internal/registry"
	"github.com/plughost/plughost/pkg/plugin"
)

// ExecutionOptions govern retry and advisory-timeout behavior for a
// single Execute or ExecuteMany call (§4.4).
type ExecutionOptions struct {
	MaxAttempts    int
	RetryBackoff   time.Duration
	PerCallTimeout *time.Duration
}

// DefaultExecutionOptions returns the documented zero-value defaults:
// one attempt, no backoff, no advisory timeout.
func DefaultExecutionOptions() ExecutionOptions {
	return ExecutionOptions{MaxAttempts: 1}
}

func (o ExecutionOptions) normalized() ExecutionOptions {
	if o.MaxAttempts < 1 {
		o.MaxAttempts = 1
	}
	return o
}

// Manager is the single shared object both the CLI and the HTTP
// front-end hold a reference to. It owns the Configuration Store
// exclusively and shares the Registry (ownership summary, §3). There
// is deliberately no package-level instance anywhere in this
// implementation — callers construct one explicitly and inject it.
type Manager struct {
	registry *registry.Registry
	store    *config.Store
	log      *slog.Logger

	metrics *metrics.Metrics
	events  *events.Bus
	history *history.Store // nil when history persistence is disabled

	// execLock holds one mutex per plugin name (the map itself is
	// guarded by execMu); Execute takes it to serialize concurrent
	// calls per plugin name, satisfying the "at most one concurrent
	// call per plugin name" bound on ExecuteMany (§5) without limiting
	// cross-plugin concurrency.
	execMu   sync.Mutex
	execLock map[string]*sync.Mutex
}

// Option configures optional collaborators on a Manager.
type Option func(*Manager)

// WithMetrics attaches a metrics bundle; execution/load/unload events
// are observed as they occur.
func WithMetrics(m *metrics.Metrics) Option {
	return func(mgr *Manager) { mgr.metrics = m }
}

// WithEvents attaches an event bus that lifecycle changes are
// published to.
func WithEvents(b *events.Bus) Option {
	return func(mgr *Manager) { mgr.events = b }
}

// WithHistory attaches a durable execution-history store.
func WithHistory(h *history.Store) Option {
	return func(mgr *Manager) { mgr.history = h }
}

// Init loads configuration from configPath, constructs a Registry, and
// performs an initial scan of the configured plugins directory. It
// reports the scan outcome but never fails solely because some
// plugins failed to load.
func Init(configPath string, log *slog.Logger, opts ...Option) (*Manager, plugin.ScanReport, error) {
	if log == nil {
		log = slog.Default()
	}

	store, err := config.Load(configPath, log)
	if err != nil {
		return nil, plugin.ScanReport{}, fmt.Errorf("load config: %w", err)
	}

	reg := registry.New(log)
	mgr := &Manager{
		registry: reg,
		store:    store,
		log:      log,
		execLock: make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(mgr)
	}

	cfg := store.Snapshot()
	report, err := reg.Scan(cfg.PluginsDir)
	if err != nil {
		return nil, plugin.ScanReport{}, fmt.Errorf("initial plugin scan: %w", err)
	}
	mgr.observeScan(report)
	return mgr, report, nil
}

func (m *Manager) observeScan(report plugin.ScanReport) {
	if m.metrics != nil {
		for range report.Loaded {
			m.metrics.ObserveLoad(true, len(m.registry.Names()))
		}
		for range report.Failed {
			m.metrics.ObserveLoad(false, len(m.registry.Names()))
		}
		m.metrics.RescansTotal.Inc()
	}
	if m.events != nil {
		for _, name := range report.Loaded {
			m.events.Publish(events.Event{Kind: events.KindLoaded, Plugin: name})
		}
	}
}

// List returns the union of loaded plugins and plugins named in
// config, sorted by name. An entry present only in config has
// Loaded = false; Enabled is always drawn from config.
func (m *Manager) List() []plugin.Info {
	loaded := m.registry.List()
	byName := make(map[string]plugin.Info, len(loaded))
	for _, info := range loaded {
		byName[info.Name] = info
	}

	cfg := m.store.Snapshot()
	for name := range cfg.Plugins {
		if _, ok := byName[name]; !ok {
			byName[name] = plugin.Info{Name: name, Loaded: false}
		}
	}

	out := make([]plugin.Info, 0, len(byName))
	for _, info := range byName {
		info.Enabled = m.store.GetPluginEnabled(info.Name)
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Get returns a single plugin's projection, joining registry and
// config state the same way List does.
func (m *Manager) Get(name string) (plugin.Info, error) {
	info, err := m.registry.Get(name)
	if err != nil {
		if !plugin.IsKind(err, plugin.KindNotFound) {
			return plugin.Info{}, err
		}
		if !m.knownToConfig(name) {
			return plugin.Info{}, err
		}
		info = plugin.Info{Name: name, Loaded: false}
	}
	info.Enabled = m.store.GetPluginEnabled(name)
	return info, nil
}

func (m *Manager) knownToConfig(name string) bool {
	cfg := m.store.Snapshot()
	_, ok := cfg.Plugins[name]
	return ok
}

// Enable sets the plugin's enabled flag and persists it. It does not
// load or unload the library. NotFound is returned only when neither
// the registry nor the config knows the name, so a user may pre-enable
// a plugin that is not yet deployed.
func (m *Manager) Enable(name string) error {
	return m.setEnabled(name, true)
}

// Disable is the mirror of Enable.
func (m *Manager) Disable(name string) error {
	return m.setEnabled(name, false)
}

func (m *Manager) setEnabled(name string, enabled bool) error {
	if !m.registry.Has(name) && !m.knownToConfig(name) {
		return plugin.NewError(plugin.KindNotFound, name, "plugin not known to registry or config", nil)
	}
	if err := m.store.SetPluginEnabled(name, enabled); err != nil {
		return err
	}
	return nil
}

// lockFor returns the per-plugin-name mutex, creating it if absent.
func (m *Manager) lockFor(name string) *sync.Mutex {
	m.execMu.Lock()
	defer m.execMu.Unlock()
	l, ok := m.execLock[name]
	if !ok {
		l = &sync.Mutex{}
		m.execLock[name] = l
	}
	return l
}

// Execute runs a single plugin call, applying enable-state checks,
// timing, and transient-error retry per options (§4.4).
func (m *Manager) Execute(name, input string, opts ExecutionOptions) plugin.Result {
	opts = opts.normalized()

	lock := m.lockFor(name)
	lock.Lock()
	defer lock.Unlock()

	start := time.Now()

	if !m.registry.Has(name) {
		return m.finish(name, len(input), "", plugin.NewError(plugin.KindNotFound, name, "plugin not loaded", nil), start, 0)
	}
	if !m.store.GetPluginEnabled(name) {
		return m.finish(name, len(input), "", plugin.NewError(plugin.KindDisabled, name, "plugin is disabled", nil), start, 0)
	}

	var (
		output string
		err    error
	)
	attempts := 0
	for {
		attempts++
		output, err = m.registry.Execute(name, input)
		if err == nil {
			break
		}
		if !isTransient(err) || attempts >= opts.MaxAttempts {
			break
		}
		if opts.RetryBackoff > 0 {
			time.Sleep(opts.RetryBackoff)
		}
	}

	if opts.PerCallTimeout != nil {
		if elapsed := time.Since(start); elapsed > *opts.PerCallTimeout {
			m.log.Warn("plugin call exceeded advisory per-call timeout",
				"plugin", name, "timeout", *opts.PerCallTimeout, "elapsed", elapsed, "attempts", attempts)
		}
	}

	return m.finish(name, len(input), output, err, start, attempts)
}

func (m *Manager) finish(name string, inputBytes int, output string, err error, start time.Time, attempts int) plugin.Result {
	duration := time.Since(start)
	result := plugin.Result{
		PluginName:     name,
		Output:         output,
		DurationMillis: duration.Milliseconds(),
		Attempts:       attempts,
		At:             start,
	}
	if err != nil {
		var perr *plugin.Error
		if !asPluginError(err, &perr) {
			perr = plugin.NewError(plugin.KindExecutionFailed, name, err.Error(), err)
		}
		if perr.Kind == plugin.KindExecutionFailed && hasTransientPrefix(perr.Message) {
			stripped := *perr
			stripped.Message = perr.Message[len(plugin.TransientPrefix):]
			perr = &stripped
		}
		result.Err = perr
	}

	if m.metrics != nil && attempts > 0 {
		m.metrics.ObserveExecution(name, result.Success(), duration.Seconds(), attempts)
	}
	if m.events != nil {
		m.events.Publish(events.Event{Kind: events.KindExecuted, Plugin: name, Detail: outcomeLabel(result)})
	}
	if m.history != nil {
		rec := history.Record{
			Plugin:      name,
			InputBytes:  inputBytes,
			OutputBytes: len(output),
			DurationMS:  duration.Milliseconds(),
			Attempts:    attempts,
			Success:     result.Success(),
			At:          start,
		}
		if result.Err != nil {
			rec.ErrorKind = result.Err.Kind.String()
			rec.ErrorMessage = result.Err.Message
		}
		if appendErr := m.history.Append(rec); appendErr != nil {
			m.log.Warn("failed to persist execution history", "plugin", name, "error", appendErr)
		}
	}
	return result
}

func outcomeLabel(r plugin.Result) string {
	if r.Success() {
		return "success"
	}
	return "failure"
}

// isTransient reports whether err is retry-eligible per §7: an
// IoError, or an ExecutionFailed whose message carried the
// "transient:" sentinel (already stripped by the registry layer is
// not the case here — the sentinel survives into the wrapped error
// message so the Manager, not the Registry, makes the retry call).
func isTransient(err error) bool {
	var perr *plugin.Error
	if !asPluginError(err, &perr) {
		return false
	}
	switch perr.Kind {
	case plugin.KindIoError:
		return true
	case plugin.KindExecutionFailed:
		return hasTransientPrefix(perr.Message)
	default:
		return false
	}
}

func hasTransientPrefix(msg string) bool {
	return len(msg) >= len(plugin.TransientPrefix) && msg[:len(plugin.TransientPrefix)] == plugin.TransientPrefix
}

func asPluginError(err error, target **plugin.Error) bool {
	if err == nil {
		return false
	}
	if pe, ok := err.(*plugin.Error); ok {
		*target = pe
		return true
	}
	return false
}

// ExecRequest is one entry in a batch submitted to ExecuteMany.
type ExecRequest struct {
	Name  string
	Input string
}

// ExecuteMany runs each request independently; a failure on one entry
// never aborts the batch. Results preserve input order (§4.4,
// invariant 5). Distinct plugin names execute concurrently; calls to
// the same name are serialized via Execute's per-name lock.
func (m *Manager) ExecuteMany(reqs []ExecRequest, opts ExecutionOptions) []plugin.Result {
	results := make([]plugin.Result, len(reqs))
	var wg sync.WaitGroup
	for i, req := range reqs {
		wg.Add(1)
		go func(i int, req ExecRequest) {
			defer wg.Done()
			results[i] = m.Execute(req.Name, req.Input, opts)
		}(i, req)
	}
	wg.Wait()
	return results
}

// ReloadConfig delegates to the Configuration Store's reload; it does
// not rescan plugins.
func (m *Manager) ReloadConfig() error {
	if err := m.store.Reload(); err != nil {
		return err
	}
	if m.metrics != nil {
		m.metrics.ConfigReloadsTotal.Inc()
	}
	if m.events != nil {
		m.events.Publish(events.Event{Kind: events.KindConfigReloaded})
	}
	return nil
}

// Rescan re-invokes Registry.Scan against the configured plugins
// directory. Newly found plugins are added; plugins whose files have
// disappeared are not unloaded automatically (Open Question (b)).
func (m *Manager) Rescan() (plugin.ScanReport, error) {
	cfg := m.store.Snapshot()
	report, err := m.registry.Scan(cfg.PluginsDir)
	if err != nil {
		return plugin.ScanReport{}, err
	}
	m.observeScan(report)
	return report, nil
}

// Store exposes the underlying Configuration Store for front-ends
// that need direct settings access (e.g. rendering plugin settings).
func (m *Manager) Store() *config.Store { return m.store }

// Events exposes the event bus, or nil if none was configured.
func (m *Manager) Events() *events.Bus { return m.events }

// History exposes the execution history store, or nil if disabled.
func (m *Manager) History() *history.Store { return m.history }

// Close tears down the Registry, destroying every plugin instance
// before closing its library handle.
func (m *Manager) Close() {
	m.registry.Close()
}
