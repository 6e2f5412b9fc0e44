package abi

/*
#include <stddef.h>
#include <stdint.h>
#include <string.h>
*/
import "C"

import (
	"unsafe"

	"github.com/reglet-dev/spike-mmio-sdk/internal/bridge"
)

// Entry points for the C trampolines in trampolines.c. They only convert
// between C and Go representations; all behavior lives in the bridge.

//export mmioAlloc
func mmioAlloc(slot C.int, args *C.char) C.uintptr_t {
	var raw []byte
	if args != nil {
		raw = unsafe.Slice((*byte)(unsafe.Pointer(args)), int(C.strlen(args)))
	}
	return C.uintptr_t(bridge.Alloc(int(slot), raw))
}

//export mmioLoad
func mmioLoad(self C.uintptr_t, addr C.uint64_t, length C.size_t, buf unsafe.Pointer) C.int {
	return cbool(bridge.Load(uintptr(self), uint64(addr), byteView(buf, length)))
}

//export mmioStore
func mmioStore(self C.uintptr_t, addr C.uint64_t, length C.size_t, buf unsafe.Pointer) C.int {
	return cbool(bridge.Store(uintptr(self), uint64(addr), byteView(buf, length)))
}

//export mmioDealloc
func mmioDealloc(self C.uintptr_t) {
	bridge.Dealloc(uintptr(self))
}

// byteView returns a slice over host memory. It is only valid for the
// duration of the current call.
func byteView(p unsafe.Pointer, n C.size_t) []byte {
	if p == nil || n == 0 {
		return []byte{}
	}
	return unsafe.Slice((*byte)(p), int(n))
}

func cbool(ok bool) C.int {
	if ok {
		return 1
	}
	return 0
}
