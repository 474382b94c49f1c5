package registry

import (
	"fmt"
	"unsafe"

	"github.com/ebitengine/purego"

	"github.com/plughost/plughost/pkg/plugin"
)

// library wraps one dlopen'd shared object and the C-ABI vtable
// resolved from it (§4.1 of the spec: a fixed set of named exported
// functions taking an opaque self pointer, rather than a host-language
// object model). A library never outlives the single *entry that owns
// it: Registry.Unload and Registry.Close destroy the plugin instance
// before closing the handle, never the reverse.
type library struct {
	path   string
	handle uintptr

	registerPlugin func() uintptr
	abiVersion     func() uint32 // nil when the optional symbol is absent
	pluginName     func(self uintptr) uintptr
	version        func(self uintptr) uintptr
	description    func(self uintptr) uintptr
	execute        func(self uintptr, input string, outOutput uintptr, outError uintptr) int32
	freeString     func(s uintptr)
	destroy        func(self uintptr)

	// closeFn defaults to purego.Dlclose(handle); overridden in tests so
	// unit tests never need a real shared object to construct a library.
	closeFn func() error
}

// openLibrary dlopens path and resolves every required symbol in the
// plugin ABI. On any error the handle is closed and nil is returned;
// the caller must not have mutated any other state yet (R4).
func openLibrary(path string) (*library, error) {
	handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, fmt.Errorf("dlopen: %w", err)
	}

	lib := &library{path: path, handle: handle}
	lib.closeFn = func() error { return purego.Dlclose(lib.handle) }

	required := []struct {
		sym string
		fn  interface{}
	}{
		{plugin.SymRegisterPlugin, &lib.registerPlugin},
		{plugin.SymName, &lib.pluginName},
		{plugin.SymVersion, &lib.version},
		{plugin.SymDescription, &lib.description},
		{plugin.SymExecute, &lib.execute},
		{plugin.SymFreeString, &lib.freeString},
		{plugin.SymDestroy, &lib.destroy},
	}

	for _, r := range required {
		if err := bind(handle, r.sym, r.fn); err != nil {
			purego.Dlclose(handle)
			return nil, err
		}
	}

	// plugin_abi_version is optional: absence is a warning, not a load
	// failure (§4.1).
	if sym, err := purego.Dlsym(handle, plugin.SymAbiVersion); err == nil {
		purego.RegisterFunc(&lib.abiVersion, sym)
	}

	return lib, nil
}

// bind resolves name in handle and registers it onto fptr, which must
// be a pointer to a func variable with a purego-compatible signature.
func bind(handle uintptr, name string, fptr interface{}) error {
	sym, err := purego.Dlsym(handle, name)
	if err != nil {
		return fmt.Errorf("missing required symbol %s: %w", name, err)
	}
	purego.RegisterFunc(fptr, sym)
	return nil
}

func (l *library) close() error {
	return l.closeFn()
}

// readCString copies a NUL-terminated C string out of plugin memory
// into a Go string. It does not free the C-side buffer; callers do
// that separately via freeString once they're done with ptr.
func readCString(ptr uintptr) string {
	if ptr == 0 {
		return ""
	}
	var buf []byte
	for i := uintptr(0); ; i++ {
		b := *(*byte)(unsafe.Pointer(ptr + i))
		if b == 0 {
			break
		}
		buf = append(buf, b)
	}
	return string(buf)
}

// callString invokes a self-taking accessor that returns a C string,
// copies the result into a Go string, and frees the plugin's buffer.
func (l *library) callString(fn func(uintptr) uintptr, self uintptr) string {
	ptr := fn(self)
	s := readCString(ptr)
	if ptr != 0 {
		l.freeString(ptr)
	}
	return s
}

// execString invokes plugin_execute and returns the output or the
// plugin-reported error string, both copied out and freed the same
// way as callString.
func (l *library) execString(self uintptr, input string) (output string, pluginErr string, failed bool) {
	var outPtr, errPtr uintptr
	rc := l.execute(self, input, uintptr(unsafe.Pointer(&outPtr)), uintptr(unsafe.Pointer(&errPtr)))

	if rc == 0 {
		output = readCString(outPtr)
		if outPtr != 0 {
			l.freeString(outPtr)
		}
		return output, "", false
	}

	pluginErr = readCString(errPtr)
	if errPtr != 0 {
		l.freeString(errPtr)
	}
	return "", pluginErr, true
}
