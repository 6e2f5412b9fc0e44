// Package counter provides a read-only 32-bit register device. It is the
// smallest useful plugin: the value is fixed at construction from a
// hexadecimal argument and every load returns it.
package counter

import (
	"encoding/binary"
	"fmt"
	"log/slog"

	mmio "github.com/reglet-dev/spike-mmio-sdk"
)

// DefaultValue is used when the argument is empty or not valid hex.
const DefaultValue uint32 = 0xABAB

// Args documents the argument string for the manifest.
type Args struct {
	Value string `json:"value,omitempty" jsonschema:"description=Register value in hexadecimal with optional 0x prefix,default=abab"`
}

// Device returns the same little-endian value for every load at every
// offset and accepts and discards every store.
type Device struct {
	value uint32
}

var _ mmio.Device = (*Device)(nil)

// New parses args as a hexadecimal value, falling back to DefaultValue.
func New(args string) *Device {
	d := &Device{value: uint32(mmio.ParseHex(args, 32, uint64(DefaultValue)))}
	slog.Info("counter device created", "value", fmt.Sprintf("%#x", d.value))
	return d
}

// Value returns the register value.
func (d *Device) Value() uint32 {
	return d.value
}

// Load writes the value in little-endian order. A buffer shorter than four
// bytes receives the low-order bytes; bytes past the fourth read as zero.
func (d *Device) Load(offset uint64, buf []byte) bool {
	var word [4]byte
	binary.LittleEndian.PutUint32(word[:], d.value)
	n := copy(buf, word[:])
	clear(buf[n:])
	slog.Debug("counter load", "offset", offset, "len", len(buf))
	return true
}

// Store is accepted and ignored; the register is read-only.
func (d *Device) Store(offset uint64, buf []byte) bool {
	slog.Debug("counter store ignored", "offset", offset, "len", len(buf))
	return true
}
