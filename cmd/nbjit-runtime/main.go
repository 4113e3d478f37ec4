// Command nbjit-runtime builds libnbjitrt, the shared object spec §4.5
// describes: native code generated by internal/backend links against it to
// reach the eight dict/box runtime functions. The package itself does
// nothing at runtime — main only exists because -buildmode=c-shared
// requires a main package; every exported symbol lives in
// internal/runtimeabi's cgo.go.
//
// Build with:
//
//	go build -buildmode=c-shared -o libnbjitrt.so ./cmd/nbjit-runtime
package main

import (
	_ "github.com/nbjit/engine/internal/runtimeabi"
)

func main() {}
