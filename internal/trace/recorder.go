package trace

import "github.com/fdb/fri3d-wasm-badge/internal/hostabi"

// TraceEvent is one line of the trace harness's output: a single host-ABI
// call (fn, args, ret) or a single synthesized input_event (fn ==
// "input_event", args == [key, kind], no ret), tagged with the frame it
// occurred during.
type TraceEvent struct {
	Frame int     `json:"frame"`
	Fn    string  `json:"fn"`
	Args  []int64 `json:"args,omitempty"`
	Ret   *int64  `json:"ret,omitempty"`
}

// Recorder implements hostabi.Recorder, appending one TraceEvent per
// Call/Result pair. The driver advances Frame between render passes so
// every recorded call lands under the frame it was made in.
type Recorder struct {
	Frame  int
	Events []TraceEvent

	pendingFn   string
	pendingArgs []int64
	inCall      bool
}

var _ hostabi.Recorder = (*Recorder)(nil)

// Call records the start of a host-ABI dispatch. Every Call is followed by
// exactly one Result before the next Call, since the runtime is
// single-threaded cooperative (spec.md §5) and no ABI call can re-enter.
func (r *Recorder) Call(fn string, args ...int64) {
	r.pendingFn = fn
	r.pendingArgs = append([]int64(nil), args...)
	r.inCall = true
}

// Result closes out the most recent Call with its return value.
func (r *Recorder) Result(ret int64) {
	if !r.inCall {
		return
	}
	r.inCall = false
	r.Events = append(r.Events, TraceEvent{
		Frame: r.Frame,
		Fn:    r.pendingFn,
		Args:  r.pendingArgs,
		Ret:   &ret,
	})
}

// ResultVoid closes out the most recent Call for a function with no return
// value: the emitted TraceEvent's Ret stays nil, so it is omitted from the
// JSON entirely rather than recorded as a spurious ret:0.
func (r *Recorder) ResultVoid() {
	if !r.inCall {
		return
	}
	r.inCall = false
	r.Events = append(r.Events, TraceEvent{
		Frame: r.Frame,
		Fn:    r.pendingFn,
		Args:  r.pendingArgs,
	})
}

// InputEvent records a synthesized input event delivered to the guest,
// distinct from a host-ABI call: it has no return value, and its args are
// the (key, kind) pair in on_input's own wire order.
func (r *Recorder) InputEvent(key, kind int64) {
	r.Events = append(r.Events, TraceEvent{
		Frame: r.Frame,
		Fn:    "input_event",
		Args:  []int64{key, kind},
	})
}
