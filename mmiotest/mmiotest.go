// Package mmiotest drives registered plugins through their published C
// function table, the same path the simulator uses, so tests cover the
// trampolines and handle management as well as the device itself.
package mmiotest

import (
	"testing"

	"github.com/stretchr/testify/require"

	mmio "github.com/reglet-dev/spike-mmio-sdk"
	"github.com/reglet-dev/spike-mmio-sdk/internal/abi"
)

// Instance is one allocated device, owned by the test.
type Instance struct {
	t      testing.TB
	desc   *abi.Descriptor
	handle uintptr
	closed bool
}

// Open starts the SDK if needed and allocates an instance of the plugin
// published under name. The instance is deallocated at test cleanup unless
// closed earlier.
func Open(t testing.TB, name, args string) *Instance {
	t.Helper()
	return OpenRaw(t, name, []byte(args))
}

// OpenRaw is Open with arbitrary argument bytes, for arguments that are not
// valid text.
func OpenRaw(t testing.TB, name string, args []byte) *Instance {
	t.Helper()
	require.NoError(t, mmio.Start())

	desc, ok := abi.Lookup(name)
	require.True(t, ok, "plugin %q is not published", name)

	inst := &Instance{
		t:      t,
		desc:   desc,
		handle: desc.Alloc(args),
	}
	require.NotZero(t, inst.handle, "allocate returned a null handle")
	t.Cleanup(inst.Close)
	return inst
}

// Handle returns the opaque handle the allocate function returned.
func (i *Instance) Handle() uintptr {
	return i.handle
}

// Load reads len(buf) bytes at offset through the load function.
func (i *Instance) Load(offset uint64, buf []byte) bool {
	return i.desc.Load(i.handle, offset, buf)
}

// Store writes buf at offset through the store function.
func (i *Instance) Store(offset uint64, buf []byte) bool {
	return i.desc.Store(i.handle, offset, buf)
}

// MustLoad reads n bytes at offset and fails the test if the load fails.
func (i *Instance) MustLoad(offset uint64, n int) []byte {
	i.t.Helper()
	buf := make([]byte, n)
	require.True(i.t, i.Load(offset, buf), "load of %d bytes at %#x failed", n, offset)
	return buf
}

// MustStore writes buf at offset and fails the test if the store fails.
func (i *Instance) MustStore(offset uint64, buf []byte) {
	i.t.Helper()
	require.True(i.t, i.Store(offset, buf), "store of %d bytes at %#x failed", len(buf), offset)
}

// Close deallocates the instance. Further calls are no-ops; the guard is the
// harness's, the ABI itself has none.
func (i *Instance) Close() {
	if i.closed {
		return
	}
	i.closed = true
	i.desc.Dealloc(i.handle)
}
