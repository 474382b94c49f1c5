// Package plugin defines the C ABI contract between plughost and the
// native shared objects it loads, plus the error taxonomy and result
// shapes shared across the registry, manager, and front-ends.
package plugin

import (
	"errors"
	"fmt"
)

// ABIVersion is the host's current ABI version. A plugin that exports
// plugin_abi_version must report this exact value or the Registry
// refuses to load it. Bump this whenever the exported symbol set or
// any of their signatures change.
const ABIVersion uint32 = 1

// Symbol names the Registry looks up in a loaded shared object. All of
// them use the C calling convention; Self is an opaque pointer handed
// back by RegisterPlugin and passed as the first argument to every
// other call.
const (
	SymRegisterPlugin   = "register_plugin"
	SymAbiVersion       = "plugin_abi_version"
	SymName             = "plugin_name"
	SymVersion          = "plugin_version"
	SymDescription      = "plugin_description"
	SymExecute          = "plugin_execute"
	SymFreeString       = "plugin_free_string"
	SymDestroy          = "plugin_destroy"
)

// TransientPrefix is the sentinel a plugin prefixes its error string
// with to mark an ExecutionFailed error as retry-eligible. This is the
// implementation's chosen convention for classifying transient errors
// (the source spec leaves the convention to the implementer).
const TransientPrefix = "transient:"

// SharedObjectSuffixes lists the platform-specific shared library
// filename suffixes the Registry's directory scan matches against.
var SharedObjectSuffixes = []string{".so", ".dylib", ".dll"}

// Kind classifies a runtime error the way §7 of the spec does. It is
// never used for control flow inside plugins themselves — only the
// host assigns a Kind to an error it produces or observes.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindDisabled
	KindLoadFailed
	KindAbiMismatch
	KindDuplicateName
	KindExecutionFailed
	KindTimeout
	KindConfigError
	KindIoError
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindDisabled:
		return "Disabled"
	case KindLoadFailed:
		return "LoadFailed"
	case KindAbiMismatch:
		return "AbiMismatch"
	case KindDuplicateName:
		return "DuplicateName"
	case KindExecutionFailed:
		return "ExecutionFailed"
	case KindTimeout:
		return "Timeout"
	case KindConfigError:
		return "ConfigError"
	case KindIoError:
		return "IoError"
	default:
		return "Unknown"
	}
}

// Error is the structured error type every core operation returns.
// Front-ends map Kind to their own presentation (exit code, HTTP
// status) via errors.As.
type Error struct {
	Kind    Kind
	Plugin  string // plugin name, when applicable; empty otherwise
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Plugin != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Plugin, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// NewError builds an *Error, optionally wrapping a cause.
func NewError(kind Kind, plugin, message string, cause error) *Error {
	return &Error{Kind: kind, Plugin: plugin, Message: message, Cause: cause}
}

// IsKind reports whether err is (or wraps) an *Error of the given Kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
