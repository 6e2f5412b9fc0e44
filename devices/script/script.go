// Package script provides a device whose behavior is written in Lua.
//
// The script defines two global functions:
//
//	function load(offset, len)  -- return a string of exactly len bytes, or nil
//	function store(offset, data) -- return true if the write was applied
//
// Offsets arrive as Lua numbers, so offsets above 2^53 lose precision.
// Scripts run in a sandbox with the base, table, string and math
// libraries only; mmio.log(msg) writes to the plugin log.
package script

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"

	mmio "github.com/reglet-dev/spike-mmio-sdk"
)

const (
	loadFunc  = "load"
	storeFunc = "store"
)

// Args documents the argument string for the manifest.
type Args struct {
	Path string `json:"path" jsonschema:"description=Path to the Lua script (may also be given as the positional value)"`
}

// Device runs load and store through a Lua state. Calls are serialized
// because an LState is not safe for concurrent use.
type Device struct {
	name string

	mu    sync.Mutex
	state *lua.LState
	load  lua.LValue
	store lua.LValue
}

var (
	_ mmio.Device = (*Device)(nil)

	// Removed before the script runs; a script defines its own load.
	unsafeBaseFunctions = []string{"dofile", "loadfile", "loadstring", "load"}
)

// New loads the script named by "path=..." or the positional value. A
// script that cannot be read or run yields a device that fails every
// access.
func New(args string) *Device {
	a := mmio.ParseArgs(args)
	path := a.GetStringDefault("path", a.Positional())

	d, err := NewFromFile(path)
	if err != nil {
		slog.Error("script device disabled", "path", path, "error", err)
		return &Device{name: path}
	}
	slog.Info("script device created", "path", path)
	return d
}

// NewFromFile reads and runs the script at path.
func NewFromFile(path string) (*Device, error) {
	if path == "" {
		return nil, oops.In("script").Code("MMIO_SCRIPT_PATH").New("no script path given")
	}
	code, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, oops.In("script").Code("MMIO_SCRIPT_PATH").With("path", path).Hint("failed to read script").Wrap(err)
	}
	return NewFromSource(filepath.Base(path), string(code))
}

// NewFromSource runs code in a fresh sandboxed state and binds its load and
// store functions.
func NewFromSource(name, code string) (*Device, error) {
	L, err := newState(name)
	if err != nil {
		return nil, err
	}

	if err := L.DoString(code); err != nil {
		L.Close()
		return nil, oops.In("script").Code("MMIO_SCRIPT_INVALID").With("script", name).Hint("script failed to run").Wrap(err)
	}

	d := &Device{
		name:  name,
		state: L,
		load:  L.GetGlobal(loadFunc),
		store: L.GetGlobal(storeFunc),
	}
	for fn, v := range map[string]lua.LValue{loadFunc: d.load, storeFunc: d.store} {
		if v.Type() != lua.LTFunction {
			L.Close()
			return nil, oops.In("script").Code("MMIO_SCRIPT_INVALID").With("script", name).With("function", fn).Errorf("script does not define %s()", fn)
		}
	}
	return d, nil
}

// Load calls load(offset, len). It succeeds only if the script returns a
// string of exactly len(buf) bytes.
func (d *Device) Load(offset uint64, buf []byte) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == nil {
		return false
	}
	ret, ok := d.call(d.load, lua.LNumber(offset), lua.LNumber(len(buf)))
	if !ok {
		return false
	}
	s, isString := ret.(lua.LString)
	if !isString || len(s) != len(buf) {
		return false
	}
	copy(buf, s)
	return true
}

// Store calls store(offset, data) and reports the script's truthiness.
func (d *Device) Store(offset uint64, buf []byte) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == nil {
		return false
	}
	ret, ok := d.call(d.store, lua.LNumber(offset), lua.LString(buf))
	return ok && lua.LVAsBool(ret)
}

// Close releases the Lua state.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != nil {
		d.state.Close()
		d.state = nil
	}
	return nil
}

// call runs fn with one return value. Callers hold d.mu.
func (d *Device) call(fn lua.LValue, args ...lua.LValue) (lua.LValue, bool) {
	L := d.state
	if err := L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, args...); err != nil {
		slog.Warn("script call failed", "script", d.name, "error", err)
		return lua.LNil, false
	}
	ret := L.Get(-1)
	L.Pop(1)
	return ret, true
}

// newState opens a state with only the safe libraries and the mmio table.
func newState(name string) (*lua.LState, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})

	libs := []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	}
	for _, lib := range libs {
		if err := L.CallByParam(lua.P{
			Fn:      L.NewFunction(lib.fn),
			NRet:    0,
			Protect: true,
		}, lua.LString(lib.name)); err != nil {
			L.Close()
			return nil, oops.In("script").With("library", lib.name).Hint("failed to open library").Wrap(err)
		}
	}

	for _, fn := range unsafeBaseFunctions {
		L.SetGlobal(fn, lua.LNil)
	}

	host := L.NewTable()
	L.SetField(host, "log", L.NewFunction(func(L *lua.LState) int {
		slog.Info(L.CheckString(1), "script", name)
		return 0
	}))
	L.SetGlobal("mmio", host)

	return L, nil
}
