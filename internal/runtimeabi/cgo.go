package runtimeabi

/*
#include <stdint.h>
*/
import "C"

import (
	"sync"
	"unsafe"
)

var initOnce sync.Once

// ensureInit follows the sync.Once convention for process-lifetime
// singletons: the first call does the work, every later call is a no-op.
// The registry here
// needs no lazy setup today, but buildmode=c-shared gives every exported
// symbol its own entry point, so each one calls through this rather than
// assuming some other export ran first.
func ensureInit() {
	initOnce.Do(func() {})
}

//export dict_new
func dict_new() unsafe.Pointer {
	ensureInit()
	return handleToPtr(DictNew())
}

//export dict_get
func dict_get(dict unsafe.Pointer, key unsafe.Pointer) unsafe.Pointer {
	ensureInit()
	return handleToPtr(DictGet(ptrToHandle(dict), ptrToHandle(key)))
}

//export dict_set
func dict_set(dict unsafe.Pointer, value unsafe.Pointer, key unsafe.Pointer) unsafe.Pointer {
	ensureInit()
	return handleToPtr(DictSet(ptrToHandle(dict), ptrToHandle(key), ptrToHandle(value)))
}

//export symbol_from_cstr
func symbol_from_cstr(cstr *C.char) unsafe.Pointer {
	ensureInit()
	return handleToPtr(SymbolFromCString(C.GoString(cstr)))
}

//export box_int
func box_int(v C.int64_t) unsafe.Pointer {
	ensureInit()
	return handleToPtr(BoxInt(int64(v)))
}

//export box_float
func box_float(v C.double) unsafe.Pointer {
	ensureInit()
	return handleToPtr(BoxFloat(float64(v)))
}

//export unbox_int
func unbox_int(handle unsafe.Pointer) C.int64_t {
	ensureInit()
	return C.int64_t(UnboxInt(ptrToHandle(handle)))
}

//export unbox_float
func unbox_float(handle unsafe.Pointer) C.double {
	ensureInit()
	return C.double(UnboxFloat(ptrToHandle(handle)))
}

// handleToPtr/ptrToHandle cross the registry's uint64 handle space and the
// opaque i8* boxed pointer spec §4.3 hands to native code. The pointer
// value itself is never dereferenced on the Go side; it is a tagged integer
// wearing a pointer's clothes so C call sites can pass it through registers
// uniformly with real pointers.
func handleToPtr(h uint64) unsafe.Pointer {
	return unsafe.Pointer(uintptr(h))
}

func ptrToHandle(p unsafe.Pointer) uint64 {
	return uint64(uintptr(p))
}
