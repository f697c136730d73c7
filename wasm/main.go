//go:build wasm

package main

import (
	"syscall/js"
)

func main() {
	js.Global().Set("SigscanNewScanner", js.FuncOf(newScanner))
	js.Global().Set("SigscanScan", js.FuncOf(scan))
	js.Global().Set("SigscanScanBatch", js.FuncOf(scanBatch))
	js.Global().Set("SigscanCompile", js.FuncOf(compile))
	js.Global().Set("SigscanCloseScanner", js.FuncOf(closeScanner))
	js.Global().Set("SigscanGetBuiltinSignatures", js.FuncOf(getBuiltinSignatures))

	// Keep WASM running
	<-make(chan struct{})
}
