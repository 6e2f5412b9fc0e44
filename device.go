package mmio

import "github.com/reglet-dev/spike-mmio-sdk/domain/ports"

// Device is the interface a plugin implements. See ports.Device for the
// load and store contracts.
//
// A Device that also implements io.Closer is closed when the host
// deallocates it.
type Device = ports.Device

// NewFunc constructs a device from the argument string given to the
// simulator. It cannot fail: invalid arguments should fall back to
// defaults. Non-UTF-8 bytes in the original argument arrive as U+FFFD.
type NewFunc[T Device] func(args string) T
