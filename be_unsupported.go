//go:build !(amd64 || arm64 || 386 || arm || riscv64 || loong64 || mipsle || mips64le || ppc64le || wasm)

package main

// The RAM/BIOS word accessors assume little-endian byte order; this build
// tag fails compilation outright rather than silently misbehaving on a
// big-endian host.
var _ = "this module requires a little-endian host architecture" + 1
