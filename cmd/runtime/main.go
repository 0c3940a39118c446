// Command runtime is the desktop host: it wires the framebuffer, font
// engine, PRNG, input processor, host ABI and application manager
// together behind a window (or the offscreen backend), the same way the
// reference desktop port drives the same components in the original
// implementation.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fdb/fri3d-wasm-badge/internal/appmgr"
	"github.com/fdb/fri3d-wasm-badge/internal/fb"
	"github.com/fdb/fri3d-wasm-badge/internal/font"
	"github.com/fdb/fri3d-wasm-badge/internal/hostabi"
	"github.com/fdb/fri3d-wasm-badge/internal/input"
	"github.com/fdb/fri3d-wasm-badge/internal/prng"
	"github.com/fdb/fri3d-wasm-badge/internal/runtimelog"
	"github.com/fdb/fri3d-wasm-badge/internal/video"
)

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: runtime [--test] [--scene N] [--screenshot PATH] [--headless] [--manifest PATH] [--verbose] [MODULE.wasm]")
}

func main() {
	fs := flag.NewFlagSet("runtime", flag.ContinueOnError)
	var (
		testMode   = fs.Bool("test", false, "render one frame, optionally screenshot, then exit")
		scene      = fs.Int("scene", -1, "set_scene(N) before the first render")
		screenshot = fs.String("screenshot", "", "write a grayscale PNG of the rendered frame to PATH (--test only)")
		headless   = fs.Bool("headless", false, "use the offscreen backend instead of opening a window")
		manifest   = fs.String("manifest", "", "app registry manifest (id<TAB>path per line)")
		verbose    = fs.Bool("verbose", false, "enable debug-level logging")
	)
	fs.Usage = usage
	if err := fs.Parse(os.Args[1:]); err != nil {
		// fs.Parse already printed the error and usage (ContinueOnError
		// still does both); just exit with the spec's unknown-option code.
		os.Exit(1)
	}

	log := runtimelog.Default("runtime")
	runtimelog.SetVerbose(log, *verbose)

	appPath := fs.Arg(0)
	if appPath == "" && *manifest == "" {
		fmt.Fprintln(os.Stderr, "runtime: no MODULE.wasm and no --manifest given")
		usage()
		os.Exit(1)
	}

	canvas := fb.New()
	random := prng.NewSeeded(uint32(time.Now().UnixNano()))
	start := time.Now()

	state := &hostabi.State{
		Canvas: canvas,
		Fonts: map[fb.Font]*font.Font{
			fb.Primary:    appmgr.AssetFont(fb.Primary),
			fb.Secondary:  appmgr.AssetFont(fb.Secondary),
			fb.Keyboard:   appmgr.AssetFont(fb.Keyboard),
			fb.BigNumbers: appmgr.AssetFont(fb.BigNumbers),
		},
		Random: random,
		Clock: func() uint32 {
			return uint32(time.Since(start).Milliseconds())
		},
	}

	mgr := appmgr.New(canvas, state, loadFile)
	mgr.SetLogger(log)

	if *manifest != "" {
		data, err := os.ReadFile(*manifest)
		if err != nil {
			fmt.Fprintf(os.Stderr, "runtime: reading manifest: %v\n", err)
			os.Exit(1)
		}
		reg, err := appmgr.ParseManifest(string(data))
		if err != nil {
			fmt.Fprintf(os.Stderr, "runtime: %v\n", err)
			os.Exit(1)
		}
		mgr.LoadManifest(reg)
		mgr.SetBaseDir(filepath.Dir(*manifest))
		if appPath == "" {
			entries := reg.Entries()
			if len(entries) == 0 {
				fmt.Fprintln(os.Stderr, "runtime: manifest has no entries")
				os.Exit(1)
			}
			mgr.SetLauncherPath(entries[0].Path)
			mgr.ShowLauncher()
		}
	}
	if appPath != "" {
		if !mgr.LaunchAppByPath(appPath) {
			fmt.Fprintf(os.Stderr, "runtime: failed to load %s: %v\n", appPath, mgr.LastError())
			os.Exit(1)
		}
	}
	if *scene >= 0 {
		mgr.SetScene(uint32(*scene))
	}

	drawErrPanel := func(c *fb.Buffer, err error) {
		if err == nil {
			return
		}
		c.SetColor(fb.Black)
		c.SetFont(fb.Primary)
		state.Fonts[fb.Primary].DrawString(c, 4, 28, "load error")
	}

	if *testMode {
		mgr.Render(drawErrPanel)
		if *screenshot != "" {
			if err := writeScreenshot(*screenshot, canvas); err != nil {
				fmt.Fprintf(os.Stderr, "runtime: screenshot: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("Screenshot saved to %s\n", *screenshot)
		}
		return
	}

	if *screenshot != "" {
		log.Warn("--screenshot only applies with --test; ignoring in interactive mode")
	}

	var (
		out video.Output
		err error
	)
	if *headless {
		out, err = video.NewOffscreenOutput()
	} else {
		out, err = video.NewOutput(video.BackendWindowed)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "runtime: video init: %v\n", err)
		os.Exit(1)
	}

	if err := runInteractive(mgr, canvas, out, drawErrPanel, log); err != nil {
		fmt.Fprintf(os.Stderr, "runtime: %v\n", err)
		os.Exit(1)
	}
}

func loadFile(locator string) ([]byte, error) {
	return os.ReadFile(locator)
}

func writeScreenshot(path string, c *fb.Buffer) error {
	img := image.NewGray(image.Rect(0, 0, fb.Width, fb.Height))
	view := c.BufferView()
	for i, p := range view {
		v := byte(0xFF)
		if p != 0 {
			v = 0x00
		}
		img.Pix[i] = v
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}

type rawEdge struct {
	key     input.Key
	pressed bool
}

// runInteractive drives the window/offscreen backend at its own pace: an
// errgroup bounds the render/input tick loop together with the OS signal
// listener that requests a clean shutdown, since stopping the output on
// Ctrl+C needs to happen from outside the tick loop itself.
func runInteractive(mgr *appmgr.Manager, canvas *fb.Buffer, out video.Output, errPanel func(*fb.Buffer, error), log *runtimelog.Logger) error {
	proc := input.New(func() {
		log.Info("reset combo detected")
		mgr.ShowLauncher()
	})

	var mu sync.Mutex
	var pending []rawEdge
	out.SetInputHandler(func(key input.Key, pressed bool) {
		mu.Lock()
		pending = append(pending, rawEdge{key, pressed})
		mu.Unlock()
	})

	if loader, ok := out.(interface{ SetLoadHandler(func(string)) }); ok {
		loader.SetLoadHandler(func(path string) {
			if !mgr.LaunchAppByPath(path) {
				log.Warn("debug-prompt load failed", "path", path, "err", mgr.LastError())
			}
		})
	}

	if err := out.SetDisplayConfig(video.DisplayConfig{Scale: 2}); err != nil {
		return err
	}
	if err := out.Start(); err != nil {
		return fmt.Errorf("starting video output: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	defer signal.Stop(sig)

	g.Go(func() error {
		select {
		case <-sig:
			log.Info("interrupted, shutting down")
		case <-ctx.Done():
		}
		return out.Stop()
	})

	g.Go(func() error {
		defer cancel()
		start := time.Now()
		for out.IsStarted() {
			now := uint32(time.Since(start).Milliseconds())

			mu.Lock()
			edges := pending
			pending = nil
			mu.Unlock()
			for _, e := range edges {
				if e.pressed {
					proc.RawPress(e.key, now)
				} else {
					proc.RawRelease(e.key, now)
				}
			}
			proc.Tick(now)
			for _, ev := range proc.Drain() {
				switch ev.Kind {
				case input.ShortPress, input.LongPress, input.Repeat:
					mgr.HandleInput(uint32(ev.Key), uint32(ev.Kind))
				}
			}

			mgr.Render(errPanel)
			if err := out.UpdateFrame(canvas.BufferView()); err != nil {
				return err
			}
			if err := out.WaitForVSync(); err != nil {
				return err
			}
		}
		return nil
	})

	return g.Wait()
}
