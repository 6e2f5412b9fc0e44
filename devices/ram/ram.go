// Package ram provides a flat byte-addressable memory device.
package ram

import (
	"log/slog"
	"sync"

	mmio "github.com/reglet-dev/spike-mmio-sdk"
)

const (
	// DefaultSize is the region size when no size argument is given.
	DefaultSize = 4096
	// MaxSize caps the size argument.
	MaxSize = 64 << 20
)

// Args documents the argument string for the manifest.
type Args struct {
	Size uint64 `json:"size,omitempty" jsonschema:"description=Region size in bytes,default=4096,minimum=1,maximum=67108864"`
	Fill uint8  `json:"fill,omitempty" jsonschema:"description=Initial value of every byte"`
}

// Device is a region of memory. Accesses must lie entirely inside it.
type Device struct {
	mu  sync.RWMutex
	mem []byte
}

var _ mmio.Device = (*Device)(nil)

// New builds a region from "size=N,fill=B". The size may also be given as
// the positional value. Out-of-range or unparsable values fall back to the
// defaults.
func New(args string) *Device {
	a := mmio.ParseArgs(args)

	size := a.GetUintDefault("size", mmio.ParseUint(a.Positional(), 64, DefaultSize))
	if size == 0 || size > MaxSize {
		slog.Warn("ram size out of range, using default", "size", size, "default", DefaultSize)
		size = DefaultSize
	}
	fill := a.GetUintDefault("fill", 0)
	if fill > 0xff {
		fill = 0
	}

	d := &Device{mem: make([]byte, size)}
	if fill != 0 {
		for i := range d.mem {
			d.mem[i] = byte(fill)
		}
	}
	slog.Info("ram device created", "size", size, "fill", fill)
	return d
}

// Size returns the region size in bytes.
func (d *Device) Size() int {
	return len(d.mem)
}

// Load copies [offset, offset+len(buf)) into buf.
func (d *Device) Load(offset uint64, buf []byte) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.inRange(offset, len(buf)) {
		return false
	}
	copy(buf, d.mem[offset:])
	return true
}

// Store copies buf to [offset, offset+len(buf)). A store that does not fit
// changes nothing.
func (d *Device) Store(offset uint64, buf []byte) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.inRange(offset, len(buf)) {
		return false
	}
	copy(d.mem[offset:], buf)
	return true
}

func (d *Device) inRange(offset uint64, n int) bool {
	size := uint64(len(d.mem))
	return offset <= size && uint64(n) <= size-offset
}
