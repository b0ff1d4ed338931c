// main.go - CLI entry point: wires up a System, loads a BIOS/EXE/CUE and runs it

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine
License: GPLv3 or later
*/

package main

import (
	"flag"
	"fmt"
	"os"

	"golang.org/x/term"
)

func main() {
	biosPath := flag.String("bios", "", "path to a 512KiB BIOS ROM image (required)")
	exePath := flag.String("exe", "", "path to a PS-X EXE to load and run instead of BIOS boot")
	cuePath := flag.String("cue", "", "path to a CUE sheet naming the disc image's BIN files")
	cycles := flag.Uint64("cycles", 0, "stop after this many CPU cycles (0 runs until aborted)")
	traceLevel := flag.String("trace", "warn", "log verbosity: silent, warn, info, trace")
	flag.Parse()

	if *biosPath == "" {
		fmt.Fprintln(os.Stderr, "psx: -bios is required")
		os.Exit(1)
	}

	level := parseLogLevel(*traceLevel)
	log := NewLogger("psx", level)

	sys := NewSystem(log)

	if err := sys.Bus.bios.LoadFile(*biosPath); err != nil {
		fmt.Fprintf(os.Stderr, "psx: %v\n", err)
		os.Exit(1)
	}

	if *cuePath != "" {
		disc, err := OpenCueBin(*cuePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "psx: failed to open disc image: %v\n", err)
			os.Exit(1)
		}
		sys.Cd.InsertDisc(disc)
		log.Infof("disc: mounted %s", *cuePath)
	}

	if *exePath != "" {
		exe, err := LoadExecutable(*exePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "psx: failed to load EXE: %v\n", err)
			os.Exit(1)
		}
		exe.LoadInto(sys.CPU, sys.Bus)
		log.Infof("exe: loaded %s at PC=0x%08X", *exePath, exe.Header.PC)
	}

	if term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Printf("psx core: BIOS=%s cycles=%d\n", *biosPath, *cycles)
	}

	sys.Run(*cycles)
}

func parseLogLevel(s string) LogLevel {
	switch s {
	case "silent":
		return LogSilent
	case "info":
		return LogInfo
	case "trace":
		return LogTrace
	default:
		return LogWarn
	}
}
