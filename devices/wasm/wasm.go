// Package wasm provides a device whose behavior is a WebAssembly module,
// run in-process with wazero.
//
// The module must export its memory and two functions:
//
//	mmio_load(offset i64, ptr i32, len i32) -> i32
//	mmio_store(offset i64, ptr i32, len i32) -> i32
//
// Data is exchanged through a scratch window at address 0 of the module's
// memory: for a load the module writes len bytes at ptr, for a store the
// bytes are at ptr before the call. A non-zero result is success, a trap is
// failure. Modules may import WASI and the "mmio" host module, which
// provides log(ptr i32, len i32).
package wasm

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/samber/oops"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	mmio "github.com/reglet-dev/spike-mmio-sdk"
)

const (
	// ScratchSize is the largest access the device forwards to the module.
	ScratchSize = 4096

	// MemoryLimitPages caps module memory at 16 MiB.
	MemoryLimitPages = 256

	memoryExport = "memory"
	loadExport   = "mmio_load"
	storeExport  = "mmio_store"
	hostModule   = "mmio"
)

var accessSignature = struct {
	params, results []api.ValueType
}{
	params:  []api.ValueType{api.ValueTypeI64, api.ValueTypeI32, api.ValueTypeI32},
	results: []api.ValueType{api.ValueTypeI32},
}

// Args documents the argument string for the manifest.
type Args struct {
	Path string `json:"path" jsonschema:"description=Path to the .wasm module (may also be given as the positional value)"`
}

// Device forwards accesses to a module instance. Calls are serialized
// because they share the scratch window.
type Device struct {
	name string

	mu    sync.Mutex
	rt    wazero.Runtime
	mod   api.Module
	mem   api.Memory
	load  api.Function
	store api.Function
}

var _ mmio.Device = (*Device)(nil)

// New loads the module named by "path=..." or the positional value. A
// module that cannot be read or instantiated yields a device that fails
// every access.
func New(args string) *Device {
	a := mmio.ParseArgs(args)
	path := a.GetStringDefault("path", a.Positional())

	d, err := NewFromFile(context.Background(), path)
	if err != nil {
		slog.Error("wasm device disabled", "path", path, "error", err)
		return &Device{name: path}
	}
	slog.Info("wasm device created", "path", path)
	return d
}

// NewFromFile reads and instantiates the module at path.
func NewFromFile(ctx context.Context, path string) (*Device, error) {
	if path == "" {
		return nil, oops.In("wasm").Code("MMIO_WASM_PATH").New("no module path given")
	}
	code, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, oops.In("wasm").Code("MMIO_WASM_PATH").With("path", path).Hint("failed to read module").Wrap(err)
	}
	return NewFromBinary(ctx, filepath.Base(path), code)
}

// NewFromBinary compiles and instantiates code in a runtime owned by the
// returned device.
func NewFromBinary(ctx context.Context, name string, code []byte) (*Device, error) {
	rt := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfig().
		WithMemoryLimitPages(MemoryLimitPages))

	fail := func(err error, hint string) (*Device, error) {
		_ = rt.Close(ctx)
		return nil, oops.In("wasm").Code("MMIO_WASM_INVALID").With("module", name).Hint(hint).Wrap(err)
	}

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		return fail(err, "failed to instantiate WASI")
	}
	if err := instantiateHost(ctx, rt, name); err != nil {
		return fail(err, "failed to instantiate host module")
	}

	mod, err := rt.Instantiate(ctx, code)
	if err != nil {
		return fail(err, "failed to instantiate module")
	}

	// mod.Memory() is never nil, even for a module without memory.
	mem := mod.ExportedMemory(memoryExport)
	if mem == nil {
		return fail(oops.Errorf("module does not export %q", memoryExport), "missing memory")
	}
	if mem.Size() < ScratchSize {
		return fail(oops.Errorf("memory of %d bytes is smaller than the scratch window", mem.Size()), "memory too small")
	}

	d := &Device{name: name, rt: rt, mod: mod, mem: mem}
	for _, b := range []struct {
		export string
		fn     *api.Function
	}{
		{loadExport, &d.load},
		{storeExport, &d.store},
	} {
		fn := mod.ExportedFunction(b.export)
		if fn == nil {
			return fail(oops.Errorf("module does not export %s", b.export), "missing export")
		}
		def := fn.Definition()
		if !slices.Equal(def.ParamTypes(), accessSignature.params) || !slices.Equal(def.ResultTypes(), accessSignature.results) {
			return fail(oops.Errorf("%s has signature %v -> %v", b.export, def.ParamTypes(), def.ResultTypes()), "wrong export signature")
		}
		*b.fn = fn
	}
	return d, nil
}

// Load calls mmio_load and copies the scratch window into buf.
func (d *Device) Load(offset uint64, buf []byte) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.mod == nil || len(buf) > ScratchSize {
		return false
	}
	if !d.call(d.load, offset, len(buf)) {
		return false
	}
	data, ok := d.mem.Read(0, uint32(len(buf)))
	if !ok {
		return false
	}
	copy(buf, data)
	return true
}

// Store stages buf in the scratch window and calls mmio_store.
func (d *Device) Store(offset uint64, buf []byte) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.mod == nil || len(buf) > ScratchSize {
		return false
	}
	if !d.mem.Write(0, buf) {
		return false
	}
	return d.call(d.store, offset, len(buf))
}

// Close releases the runtime and everything instantiated in it.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.rt == nil {
		return nil
	}
	err := d.rt.Close(context.Background())
	d.rt, d.mod, d.mem = nil, nil, nil
	return err
}

// call runs fn against the scratch window. Callers hold d.mu.
func (d *Device) call(fn api.Function, offset uint64, n int) bool {
	results, err := fn.Call(context.Background(), offset, api.EncodeU32(0), api.EncodeU32(uint32(n)))
	if err != nil {
		slog.Warn("wasm call failed", "module", d.name, "function", fn.Definition().Name(), "error", err)
		return false
	}
	return api.DecodeU32(results[0]) != 0
}

func instantiateHost(ctx context.Context, rt wazero.Runtime, name string) error {
	_, err := rt.NewHostModuleBuilder(hostModule).
		NewFunctionBuilder().
		WithFunc(func(_ context.Context, m api.Module, ptr, length uint32) {
			msg, ok := m.Memory().Read(ptr, length)
			if !ok {
				return
			}
			slog.Info(string(msg), "module", name)
		}).
		Export("log").
		Instantiate(ctx)
	return err
}
