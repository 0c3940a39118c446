// Command trace drives an app module headlessly under a scripted input
// timeline and emits a byte-exact JSON trace of every host-ABI call, for
// golden-file regression testing of guest behavior without a display.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/fdb/fri3d-wasm-badge/internal/trace"
)

func usage(fs *flag.FlagSet) func() {
	return func() {
		fmt.Fprintf(os.Stderr, "Usage: trace --app PATH --out JSON [options]\n\nOptions:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  trace --app scenes.wasm --out scenes.trace.json --frames 30\n")
		fmt.Fprintf(os.Stderr, "  trace --app game.wasm --out game.trace.json --mode event --duration-ms 5000 --input script.json\n")
	}
}

func main() {
	fs := flag.NewFlagSet("trace", flag.ContinueOnError)
	var (
		appPath    = fs.String("app", "", "guest module to trace (required)")
		outPath    = fs.String("out", "", "JSON trace output path (required)")
		frames     = fs.Int("frames", 1, "render frame budget (fixed: extended if the script runs longer; event: hard cap)")
		seed       = fs.Uint("seed", 42, "PRNG seed")
		frameMs    = fs.Uint("frame-ms", 16, "fixed-mode frame period in ms")
		scene      = fs.Int("scene", -1, "set_scene(N) before the first render")
		inputPath  = fs.String("input", "", "JSON input script ([]ScriptEvent); omit for no input")
		appID      = fs.String("app-id", "", "app identifier recorded in the trace (default: --app)")
		mode       = fs.String("mode", "fixed", "driver mode: fixed or event")
		durationMs = fs.Uint("duration-ms", 0, "event-mode virtual-time budget in ms (0 = unbounded)")
	)
	fs.Usage = usage(fs)
	if err := fs.Parse(os.Args[1:]); err != nil {
		// fs.Parse already printed the error and usage; exit 1 per
		// spec.md §6/§7's documented unknown-option/missing-argument code.
		os.Exit(1)
	}

	if *appPath == "" || *outPath == "" {
		fmt.Fprintln(os.Stderr, "trace: --app and --out are required")
		fs.Usage()
		os.Exit(1)
	}
	if *mode != "fixed" && *mode != "event" {
		fmt.Fprintf(os.Stderr, "trace: --mode must be fixed or event, got %q\n", *mode)
		os.Exit(1)
	}

	var script []trace.ScriptEvent
	if *inputPath != "" {
		data, err := os.ReadFile(*inputPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "trace: reading input script: %v\n", err)
			os.Exit(1)
		}
		script, err = trace.ParseScript(data)
		if err != nil {
			fmt.Fprintf(os.Stderr, "trace: %v\n", err)
			os.Exit(1)
		}
	}

	cfg := trace.Config{
		AppPath:    *appPath,
		AppID:      *appID,
		Seed:       uint32(*seed),
		Scene:      *scene,
		Mode:       *mode,
		FrameMs:    uint32(*frameMs),
		Frames:     *frames,
		DurationMs: uint32(*durationMs),
		Script:     script,
		Load:       os.ReadFile,
	}

	progress(fmt.Sprintf("tracing %s (mode=%s)...\n", *appPath, *mode))

	out, err := trace.Run(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "trace: %v\n", err)
		os.Exit(1)
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "trace: encoding output: %v\n", err)
		os.Exit(1)
	}
	data = append(data, '\n')
	if err := os.WriteFile(*outPath, data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "trace: writing %s: %v\n", *outPath, err)
		os.Exit(1)
	}

	progress(fmt.Sprintf("%d frames, %d events -> %s\n", out.Frames, len(out.Events), *outPath))
}

// progress writes a one-line status to stderr only when stderr is an
// interactive terminal, so piping trace's stderr into a CI log doesn't fill
// it with lines nobody reads.
func progress(msg string) {
	if term.IsTerminal(int(os.Stderr.Fd())) {
		fmt.Fprint(os.Stderr, msg)
	}
}
