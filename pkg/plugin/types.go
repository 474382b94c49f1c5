package plugin

import "time"

// Info is the read-only projection joining Registry state with
// Configuration Store state. It is derived on demand and never stored.
type Info struct {
	Name        string    `json:"name"`
	Version     string    `json:"version,omitempty"`
	Description string    `json:"description,omitempty"`
	Enabled     bool      `json:"enabled"`
	Loaded      bool      `json:"loaded"`
	Path        string    `json:"path,omitempty"`
	LoadedAt    time.Time `json:"loaded_at,omitempty"`
}

// Result is what every Manager.Execute call returns; Err is non-nil
// when the call failed.
type Result struct {
	PluginName     string    `json:"plugin_name"`
	Output         string    `json:"output"`
	DurationMillis int64     `json:"duration_millis"`
	Attempts       int       `json:"attempts"`
	Err            *Error    `json:"error,omitempty"`
	At             time.Time `json:"at"`
}

// Success reports whether the execution completed without error.
func (r Result) Success() bool { return r.Err == nil }

// ScanFailure pairs a candidate path with the error that kept it out
// of the registry.
type ScanFailure struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// ScanReport is what Registry.Scan and Manager.Rescan return.
type ScanReport struct {
	Loaded []string      `json:"loaded"`
	Failed []ScanFailure `json:"failed"`
}
