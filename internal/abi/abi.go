// Package abi mirrors the simulator's MMIO plugin ABI and owns the C side of
// the bridge: the mmio_plugin_t descriptor, the per-slot allocate
// trampolines and the call into the host's register_mmio_plugin.
//
// Descriptors and plugin names are allocated in C memory and never freed,
// since the host may keep both pointers for the rest of the process.
package abi

/*
#include <stdlib.h>
#include "mmio_plugin.h"
*/
import "C"

import (
	"fmt"
	"sort"
	"sync"
	"unsafe"

	"github.com/samber/oops"

	"github.com/reglet-dev/spike-mmio-sdk/internal/bridge"
)

// MaxPlugins is the number of allocate trampolines compiled into the library.
const MaxPlugins = int(C.MMIO_MAX_PLUGINS)

func init() {
	if MaxPlugins != bridge.MaxSlots {
		panic(fmt.Sprintf("abi: trampoline table has %d slots, bridge expects %d", MaxPlugins, bridge.MaxSlots))
	}
}

// Descriptor is a published plugin: its name and the C function table
// handed to the host.
type Descriptor struct {
	name   string
	slot   int
	hosted bool
	cname  *C.char
	table  *C.mmio_plugin_t
}

// published records every descriptor handed out, keyed by name. It is the
// in-process view of what the host was given.
var published = struct {
	sync.RWMutex
	byName map[string]*Descriptor
}{
	byName: make(map[string]*Descriptor),
}

// HostLinked reports whether the simulator's register_mmio_plugin symbol
// was resolved when the library was loaded.
func HostLinked() bool {
	return C.mmio_host_linked() != 0
}

// Publish builds the descriptor for slot and registers it under name with
// the host. Without a linked host the descriptor is only recorded locally
// and can be driven through Lookup.
func Publish(slot int, name string) (*Descriptor, error) {
	errb := oops.In("abi").With("plugin", name).With("slot", slot)

	table := C.mmio_new_descriptor(C.int(slot))
	if table == nil {
		return nil, errb.Code("MMIO_DESCRIPTOR").Errorf("cannot build descriptor for slot %d", slot)
	}

	cname := C.CString(name)
	d := &Descriptor{
		name:  name,
		slot:  slot,
		cname: cname,
		table: table,
	}
	d.hosted = C.mmio_host_register(cname, table) != 0

	published.Lock()
	published.byName[name] = d
	published.Unlock()

	return d, nil
}

// Lookup returns the descriptor published under name.
func Lookup(name string) (*Descriptor, bool) {
	published.RLock()
	defer published.RUnlock()
	d, ok := published.byName[name]
	return d, ok
}

// Published returns the names of all published plugins, sorted.
func Published() []string {
	published.RLock()
	defer published.RUnlock()
	names := make([]string, 0, len(published.byName))
	for name := range published.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Name returns the registered plugin name.
func (d *Descriptor) Name() string { return d.name }

// Slot returns the allocate trampoline slot backing the descriptor.
func (d *Descriptor) Slot() int { return d.slot }

// Hosted reports whether the descriptor was handed to a linked host.
func (d *Descriptor) Hosted() bool { return d.hosted }

// The methods below call through the descriptor's C function pointers, the
// same way the simulator does. args is copied into a NUL-terminated C
// buffer that only lives for the duration of the call.

// Alloc calls the descriptor's allocate function.
func (d *Descriptor) Alloc(args []byte) uintptr {
	cargs := C.CString(string(args))
	defer C.free(unsafe.Pointer(cargs))
	return uintptr(C.mmio_call_alloc(d.table, cargs))
}

// Load calls the descriptor's load function.
func (d *Descriptor) Load(self uintptr, addr uint64, buf []byte) bool {
	return C.mmio_call_load(d.table, C.uintptr_t(self), C.uint64_t(addr), C.size_t(len(buf)), bufPtr(buf)) != 0
}

// Store calls the descriptor's store function.
func (d *Descriptor) Store(self uintptr, addr uint64, buf []byte) bool {
	return C.mmio_call_store(d.table, C.uintptr_t(self), C.uint64_t(addr), C.size_t(len(buf)), bufPtr(buf)) != 0
}

// Dealloc calls the descriptor's deallocate function.
func (d *Descriptor) Dealloc(self uintptr) {
	C.mmio_call_dealloc(d.table, C.uintptr_t(self))
}

func bufPtr(buf []byte) *C.uint8_t {
	if len(buf) == 0 {
		return nil
	}
	return (*C.uint8_t)(unsafe.Pointer(&buf[0]))
}
