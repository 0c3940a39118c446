// Package hostabi wires the fixed env-module import table every guest
// module links against: thin dispatchers into the framebuffer, font
// engine, PRNG and input/timer state, plus the three control primitives
// (request_render, exit_to_launcher, start_app). Every call is optionally
// mirrored to a Recorder for the trace harness.
package hostabi

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/fdb/fri3d-wasm-badge/internal/fb"
	"github.com/fdb/fri3d-wasm-badge/internal/font"
	"github.com/fdb/fri3d-wasm-badge/internal/prng"
)

// Recorder mirrors every host-ABI call for the trace harness. Implementations
// must be cheap; Call and one of Result/ResultVoid are invoked on every
// single dispatch. ResultVoid is used for functions with no return value,
// so the trace's "ret" field is only ever present when a real value exists
// (spec.md: `{frame, fn, args, ret?}`, ret optional).
type Recorder interface {
	Call(fn string, args ...int64)
	Result(ret int64)
	ResultVoid()
}

type nopRecorder struct{}

func (nopRecorder) Call(string, ...int64) {}
func (nopRecorder) Result(int64)          {}
func (nopRecorder) ResultVoid()           {}

// Timer is the per-guest cooperative timer state. The application manager
// clears it whenever it unloads or switches modules.
type Timer struct {
	IntervalMs uint32
	NextFireMs uint32
	Running    bool
}

// Due reports and advances the timer if nowMs has reached NextFireMs.
func (t *Timer) Due(nowMs uint32) bool {
	if !t.Running {
		return false
	}
	if nowMs < t.NextFireMs {
		return false
	}
	t.NextFireMs += t.IntervalMs
	if t.NextFireMs <= nowMs {
		t.NextFireMs = nowMs + t.IntervalMs
	}
	return true
}

// State is everything the env-module import table dispatches into. The
// host constructs one State and reuses it for every guest it loads; the
// application manager resets Timer and RenderRequested on each switch.
type State struct {
	Canvas *fb.Buffer
	Fonts  map[fb.Font]*font.Font
	Random *prng.State
	Clock  func() uint32

	Timer Timer

	RenderRequested bool

	// ExitToLauncher and StartApp are non-owning write capabilities into
	// the application manager's deferred-request mailbox: the mailbox
	// itself is owned by C7, these closures merely reach it.
	ExitToLauncher func()
	StartApp       func(id uint32)

	Recorder Recorder
}

func (s *State) recorder() Recorder {
	if s.Recorder == nil {
		return nopRecorder{}
	}
	return s.Recorder
}

// RecordClear runs the canvas_clear dispatch that call_render issues before
// every guest render, recording it to the trace harness exactly as if the
// guest had called it itself (spec.md §4.6: "call_render first issues
// C1.clear, then invokes the guest render").
func (s *State) RecordClear() {
	s.recorder().Call("canvas_clear")
	s.Canvas.Clear()
	s.recorder().ResultVoid()
}

func (s *State) font() *font.Font {
	f := s.Fonts[s.Canvas.Font()]
	if f == nil {
		f = s.Fonts[fb.BigNumbers]
	}
	return f
}

func readCString(mem api.Memory, ptr uint32) string {
	const maxLen = 4096
	buf := make([]byte, 0, 64)
	for i := uint32(0); i < maxLen; i++ {
		b, ok := mem.ReadByte(ptr + i)
		if !ok || b == 0 {
			break
		}
		buf = append(buf, b)
	}
	return string(buf)
}

// Register builds the "env" host module against state and instantiates it
// into rt, making every import in §4.5 available to a guest linked against
// this runtime.
func Register(ctx context.Context, rt wazero.Runtime, state *State) (api.Module, error) {
	b := rt.NewHostModuleBuilder("env")

	exportFunc := func(name string, fn any) {
		b.NewFunctionBuilder().WithFunc(fn).Export(name)
	}

	exportFunc("canvas_clear", func(ctx context.Context) {
		state.recorder().Call("canvas_clear")
		state.Canvas.Clear()
		state.recorder().ResultVoid()
	})
	exportFunc("canvas_width", func(ctx context.Context) uint32 {
		state.recorder().Call("canvas_width")
		state.recorder().Result(int64(state.Canvas.Width()))
		return uint32(state.Canvas.Width())
	})
	exportFunc("canvas_height", func(ctx context.Context) uint32 {
		state.recorder().Call("canvas_height")
		state.recorder().Result(int64(state.Canvas.Height()))
		return uint32(state.Canvas.Height())
	})
	exportFunc("canvas_set_color", func(ctx context.Context, c uint32) {
		state.recorder().Call("canvas_set_color", int64(c))
		state.Canvas.SetColor(fb.Color(c))
		state.recorder().ResultVoid()
	})
	exportFunc("canvas_set_font", func(ctx context.Context, f uint32) {
		state.recorder().Call("canvas_set_font", int64(f))
		state.Canvas.SetFont(fb.Font(f))
		state.recorder().ResultVoid()
	})
	exportFunc("canvas_draw_dot", func(ctx context.Context, x, y int32) {
		state.recorder().Call("canvas_draw_dot", int64(x), int64(y))
		state.Canvas.DrawDot(int(x), int(y))
		state.recorder().ResultVoid()
	})
	exportFunc("canvas_draw_line", func(ctx context.Context, x1, y1, x2, y2 int32) {
		state.recorder().Call("canvas_draw_line", int64(x1), int64(y1), int64(x2), int64(y2))
		state.Canvas.DrawLine(int(x1), int(y1), int(x2), int(y2))
		state.recorder().ResultVoid()
	})
	exportFunc("canvas_draw_frame", func(ctx context.Context, x, y, w, h int32) {
		state.recorder().Call("canvas_draw_frame", int64(x), int64(y), int64(w), int64(h))
		state.Canvas.DrawFrame(int(x), int(y), int(w), int(h))
		state.recorder().ResultVoid()
	})
	exportFunc("canvas_draw_box", func(ctx context.Context, x, y, w, h int32) {
		state.recorder().Call("canvas_draw_box", int64(x), int64(y), int64(w), int64(h))
		state.Canvas.DrawBox(int(x), int(y), int(w), int(h))
		state.recorder().ResultVoid()
	})
	exportFunc("canvas_draw_rframe", func(ctx context.Context, x, y, w, h, r int32) {
		state.recorder().Call("canvas_draw_rframe", int64(x), int64(y), int64(w), int64(h), int64(r))
		state.Canvas.DrawRFrame(int(x), int(y), int(w), int(h), int(r))
		state.recorder().ResultVoid()
	})
	exportFunc("canvas_draw_rbox", func(ctx context.Context, x, y, w, h, r int32) {
		state.recorder().Call("canvas_draw_rbox", int64(x), int64(y), int64(w), int64(h), int64(r))
		state.Canvas.DrawRBox(int(x), int(y), int(w), int(h), int(r))
		state.recorder().ResultVoid()
	})
	exportFunc("canvas_draw_circle", func(ctx context.Context, cx, cy, r int32) {
		state.recorder().Call("canvas_draw_circle", int64(cx), int64(cy), int64(r))
		state.Canvas.DrawCircle(int(cx), int(cy), int(r))
		state.recorder().ResultVoid()
	})
	exportFunc("canvas_draw_disc", func(ctx context.Context, cx, cy, r int32) {
		state.recorder().Call("canvas_draw_disc", int64(cx), int64(cy), int64(r))
		state.Canvas.DrawDisc(int(cx), int(cy), int(r))
		state.recorder().ResultVoid()
	})
	exportFunc("canvas_draw_str", func(ctx context.Context, mod api.Module, x, y int32, ptr uint32) {
		s := readCString(mod.Memory(), ptr)
		state.recorder().Call("canvas_draw_str", int64(x), int64(y), int64(ptr))
		if f := state.font(); f != nil {
			f.DrawString(state.Canvas, int(x), int(y), s)
		}
		state.recorder().ResultVoid()
	})
	exportFunc("canvas_string_width", func(ctx context.Context, mod api.Module, ptr uint32) int32 {
		s := readCString(mod.Memory(), ptr)
		state.recorder().Call("canvas_string_width", int64(ptr))
		w := 0
		if f := state.font(); f != nil {
			w = f.StringWidth(s)
		}
		state.recorder().Result(int64(w))
		return int32(w)
	})
	exportFunc("random_seed", func(ctx context.Context, s uint32) {
		state.recorder().Call("random_seed", int64(s))
		state.Random.Seed(s)
		state.recorder().ResultVoid()
	})
	exportFunc("random_get", func(ctx context.Context) uint32 {
		state.recorder().Call("random_get")
		v := state.Random.Next()
		state.recorder().Result(int64(v))
		return v
	})
	exportFunc("random_range", func(ctx context.Context, max uint32) uint32 {
		state.recorder().Call("random_range", int64(max))
		v := state.Random.Range(max)
		state.recorder().Result(int64(v))
		return v
	})
	exportFunc("get_time_ms", func(ctx context.Context) uint32 {
		state.recorder().Call("get_time_ms")
		now := uint32(0)
		if state.Clock != nil {
			now = state.Clock()
		}
		state.recorder().Result(int64(now))
		return now
	})
	exportFunc("start_timer_ms", func(ctx context.Context, iv uint32) {
		state.recorder().Call("start_timer_ms", int64(iv))
		if iv == 0 {
			state.Timer = Timer{}
		} else {
			now := uint32(0)
			if state.Clock != nil {
				now = state.Clock()
			}
			state.Timer = Timer{IntervalMs: iv, NextFireMs: now + iv, Running: true}
		}
		state.recorder().ResultVoid()
	})
	exportFunc("stop_timer", func(ctx context.Context) {
		state.recorder().Call("stop_timer")
		state.Timer = Timer{}
		state.recorder().ResultVoid()
	})
	exportFunc("request_render", func(ctx context.Context) {
		state.recorder().Call("request_render")
		state.RenderRequested = true
		state.recorder().ResultVoid()
	})
	exportFunc("exit_to_launcher", func(ctx context.Context) {
		state.recorder().Call("exit_to_launcher")
		if state.ExitToLauncher != nil {
			state.ExitToLauncher()
		}
		state.recorder().ResultVoid()
	})
	exportFunc("start_app", func(ctx context.Context, id uint32) {
		state.recorder().Call("start_app", int64(id))
		if state.StartApp != nil {
			state.StartApp(id)
		}
		state.recorder().ResultVoid()
	})

	return b.Instantiate(ctx)
}
