package trace

import (
	"fmt"

	"github.com/fdb/fri3d-wasm-badge/internal/appmgr"
	"github.com/fdb/fri3d-wasm-badge/internal/fb"
	"github.com/fdb/fri3d-wasm-badge/internal/font"
	"github.com/fdb/fri3d-wasm-badge/internal/hostabi"
	"github.com/fdb/fri3d-wasm-badge/internal/input"
	"github.com/fdb/fri3d-wasm-badge/internal/prng"
	"github.com/fdb/fri3d-wasm-badge/internal/runtimelog"
)

// unbounded marks a "no next event/timer" sentinel time, picked so it never
// wins a min() against a real virtual-time value.
const unbounded = ^uint32(0)

// Config is everything the trace CLI gathers from its flags.
type Config struct {
	AppPath    string
	AppID      string
	Seed       uint32
	Scene      int // -1 means "leave unset"
	Mode       string
	FrameMs    uint32
	Frames     int
	DurationMs uint32
	Script     []ScriptEvent
	Load       appmgr.Loader
	BaseDir    string
}

// Output is the trace harness's JSON-serializable result, matching
// spec.md §6's `{app, seed, frames, events:[...]}`.
type Output struct {
	App    string       `json:"app"`
	Seed   uint32       `json:"seed"`
	Frames int          `json:"frames"`
	Events []TraceEvent `json:"events"`
}

type clockState struct{ nowMs uint32 }

func (c *clockState) now() uint32 { return c.nowMs }

func (c Config) appName() string {
	if c.AppID != "" {
		return c.AppID
	}
	return c.AppPath
}

func setup(cfg Config) (*appmgr.Manager, *hostabi.State, *Recorder, *clockState, error) {
	canvas := fb.New()
	random := prng.NewSeeded(cfg.Seed)
	rec := &Recorder{}
	clk := &clockState{}

	state := &hostabi.State{
		Canvas: canvas,
		Fonts: map[fb.Font]*font.Font{
			fb.Primary:    appmgr.AssetFont(fb.Primary),
			fb.Secondary:  appmgr.AssetFont(fb.Secondary),
			fb.Keyboard:   appmgr.AssetFont(fb.Keyboard),
			fb.BigNumbers: appmgr.AssetFont(fb.BigNumbers),
		},
		Random:   random,
		Clock:    clk.now,
		Recorder: rec,
	}

	mgr := appmgr.New(canvas, state, cfg.Load)
	mgr.SetLogger(runtimelog.Discard())
	if cfg.BaseDir != "" {
		mgr.SetBaseDir(cfg.BaseDir)
	}
	if !mgr.LaunchAppByPath(cfg.AppPath) {
		return nil, nil, nil, nil, fmt.Errorf("trace: loading %s: %w", cfg.AppPath, mgr.LastError())
	}
	if cfg.Scene >= 0 {
		mgr.SetScene(uint32(cfg.Scene))
	}
	return mgr, state, rec, clk, nil
}

// Run expands cfg.Script and drives the application manager in either Fixed
// or Event mode (spec.md §4.8), returning the complete trace.
func Run(cfg Config) (*Output, error) {
	switch cfg.Mode {
	case "", "fixed":
		return runFixed(cfg)
	case "event":
		return runEvent(cfg)
	default:
		return nil, fmt.Errorf("trace: unknown driver mode %q", cfg.Mode)
	}
}

// forwardSynthesized delivers every ShortPress/LongPress/Repeat in events to
// the guest, recording each as an input_event trace entry; raw Press/Release
// are consumed by the input processor but never reach on_input (the same
// filter cmd/runtime applies before calling appmgr.Manager.HandleInput).
func forwardSynthesized(mgr *appmgr.Manager, rec *Recorder, events []input.Event) bool {
	fired := false
	for _, ev := range events {
		switch ev.Kind {
		case input.ShortPress, input.LongPress, input.Repeat:
			fired = true
			rec.InputEvent(int64(ev.Key), int64(ev.Kind))
			mgr.HandleInput(uint32(ev.Key), uint32(ev.Kind))
		}
	}
	return fired
}

// runFixed advances virtual time frame-by-frame of FrameMs, draining every
// raw edge due by each tick, then always renders. It runs for Frames frames
// or until the last scripted edge has been delivered, whichever is later.
func runFixed(cfg Config) (*Output, error) {
	mgr, _, rec, clk, err := setup(cfg)
	if err != nil {
		return nil, err
	}

	frameMs := cfg.FrameMs
	if frameMs == 0 {
		frameMs = 33
	}

	edges, err := Expand(cfg.Script)
	if err != nil {
		return nil, err
	}

	proc := input.New(func() { mgr.ShowLauncher() })

	totalFrames := cfg.Frames
	if totalFrames <= 0 {
		totalFrames = 1
	}
	if n := len(edges); n > 0 {
		needed := int(edges[n-1].AtMs/frameMs) + 1
		if needed > totalFrames {
			totalFrames = needed
		}
	}

	next := 0
	for frame := 0; frame < totalFrames; frame++ {
		tick := uint32(frame) * frameMs
		clk.nowMs = tick

		for next < len(edges) && edges[next].AtMs <= tick {
			e := edges[next]
			if e.Pressed {
				proc.RawPress(e.Key, tick)
			} else {
				proc.RawRelease(e.Key, tick)
			}
			next++
		}
		proc.Tick(tick)

		rec.Frame = frame
		forwardSynthesized(mgr, rec, proc.Drain())
		mgr.Render(nil)
	}

	return &Output{App: cfg.appName(), Seed: cfg.Seed, Frames: totalFrames, Events: rec.Events}, nil
}

// runEvent renders once at t=0, then repeatedly jumps virtual time to the
// earlier of the next scripted edge or the next cooperative timer fire,
// rendering only when that jump actually delivered input or fired the
// timer (spec.md §4.8's Event driver).
func runEvent(cfg Config) (*Output, error) {
	mgr, state, rec, clk, err := setup(cfg)
	if err != nil {
		return nil, err
	}

	edges, err := Expand(cfg.Script)
	if err != nil {
		return nil, err
	}

	proc := input.New(func() { mgr.ShowLauncher() })

	frame := 0
	if cfg.Frames > 0 {
		rec.Frame = frame
		mgr.Render(nil)
		frame++
	}

	idx := 0
	for {
		if cfg.Frames > 0 && frame >= cfg.Frames {
			break
		}

		nextEventMs := unbounded
		if idx < len(edges) {
			nextEventMs = edges[idx].AtMs
		}
		nextTimerMs := unbounded
		if state.Timer.Running {
			nextTimerMs = state.Timer.NextFireMs
		}
		if nextEventMs == unbounded && nextTimerMs == unbounded {
			break
		}

		t := nextEventMs
		if nextTimerMs < t {
			t = nextTimerMs
		}
		if cfg.DurationMs > 0 && t > cfg.DurationMs {
			break
		}
		clk.nowMs = t

		for idx < len(edges) && edges[idx].AtMs == t {
			e := edges[idx]
			if e.Pressed {
				proc.RawPress(e.Key, t)
			} else {
				proc.RawRelease(e.Key, t)
			}
			idx++
		}
		proc.Tick(t)
		timerDue := state.Timer.Due(t)

		rec.Frame = frame
		inputFired := forwardSynthesized(mgr, rec, proc.Drain())

		if inputFired || timerDue {
			mgr.Render(nil)
			frame++
		}
	}

	return &Output{App: cfg.appName(), Seed: cfg.Seed, Frames: frame, Events: rec.Events}, nil
}
