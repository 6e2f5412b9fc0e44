// Package bridge is the type-erasure layer between the C descriptor and the
// safe Device interface. Each live instance is held behind a runtime/cgo
// Handle; the handle value is the opaque address-sized token the host keeps.
//
// Handle misuse by the host (a stale, foreign or twice-freed handle) is not
// detected here. cgo.Handle panics on an invalid handle, which aborts the
// host process.
package bridge

import (
	"fmt"
	"io"
	"log/slog"
	"runtime/cgo"
	"sync"
	"sync/atomic"

	"github.com/oklog/ulid/v2"

	"github.com/reglet-dev/spike-mmio-sdk/domain/ports"
	"github.com/reglet-dev/spike-mmio-sdk/metrics"
)

// MaxSlots is the number of plugins one library can declare.
const MaxSlots = 32

// Factory constructs a device from its decoded argument text.
type Factory func(args string) ports.Device

type binding struct {
	name    string
	factory Factory
}

var slots = struct {
	sync.RWMutex
	bound [MaxSlots]*binding
}{}

// instance is what a handle refers to.
type instance struct {
	id     ulid.ULID
	plugin string
	dev    ports.Device
}

var live atomic.Int64

// Bind associates slot with a plugin name and its constructor.
func Bind(slot int, name string, factory Factory) error {
	if slot < 0 || slot >= MaxSlots {
		return fmt.Errorf("bridge: slot %d out of range [0,%d)", slot, MaxSlots)
	}
	if factory == nil {
		return fmt.Errorf("bridge: nil factory for %q", name)
	}

	slots.Lock()
	defer slots.Unlock()
	if b := slots.bound[slot]; b != nil {
		return fmt.Errorf("bridge: slot %d already bound to %q", slot, b.name)
	}
	slots.bound[slot] = &binding{name: name, factory: factory}
	return nil
}

func lookup(slot int) *binding {
	if slot < 0 || slot >= MaxSlots {
		return nil
	}
	slots.RLock()
	defer slots.RUnlock()
	return slots.bound[slot]
}

// Alloc constructs a new instance for slot from the raw argument bytes and
// returns its handle. Ownership of the instance passes to the caller.
func Alloc(slot int, rawArgs []byte) uintptr {
	b := lookup(slot)
	if b == nil {
		panic(fmt.Sprintf("bridge: allocate on unbound slot %d", slot))
	}

	args := DecodeArgs(rawArgs)
	inst := &instance{
		id:     ulid.Make(),
		plugin: b.name,
		dev:    b.factory(args),
	}
	h := cgo.NewHandle(inst)

	live.Add(1)
	metrics.RecordCreated(b.name)
	slog.Debug("mmio instance created",
		"plugin", b.name,
		"instance", inst.id.String(),
		"args", args,
	)
	return uintptr(h)
}

// Load forwards a host load to the instance behind h.
func Load(h uintptr, offset uint64, buf []byte) bool {
	inst := resolve(h)
	return pipeline()(inst.dev, Access{Plugin: inst.plugin, Instance: inst.id, Op: OpLoad, Offset: offset}, buf)
}

// Store forwards a host store to the instance behind h.
func Store(h uintptr, offset uint64, buf []byte) bool {
	inst := resolve(h)
	return pipeline()(inst.dev, Access{Plugin: inst.plugin, Instance: inst.id, Op: OpStore, Offset: offset}, buf)
}

// Dealloc ends the life of the instance behind h. A device implementing
// io.Closer is closed; close errors are logged.
func Dealloc(h uintptr) {
	handle := cgo.Handle(h)
	inst := handle.Value().(*instance)
	handle.Delete()

	live.Add(-1)
	metrics.RecordDestroyed(inst.plugin)

	if c, ok := inst.dev.(io.Closer); ok {
		if err := c.Close(); err != nil {
			slog.Error("mmio instance close failed",
				"plugin", inst.plugin,
				"instance", inst.id.String(),
				"error", err,
			)
		}
	}
	slog.Debug("mmio instance destroyed", "plugin", inst.plugin, "instance", inst.id.String())
}

// Live returns the number of instances allocated and not yet deallocated.
func Live() int64 {
	return live.Load()
}

func resolve(h uintptr) *instance {
	return cgo.Handle(h).Value().(*instance)
}
