// Package guest loads one WebAssembly bytecode module at a time, links it
// against the env host ABI, resolves its exports, and dispatches render /
// on_input / scene calls while trapping and recording runtime faults.
// Exactly one guest is ever installed; load/unload swap the runtime,
// module and resolved function handles atomically as a set.
package guest

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/fdb/fri3d-wasm-badge/internal/hostabi"
	"github.com/fdb/fri3d-wasm-badge/internal/runtimelog"
)

// Status is whether a module is currently resident.
type Status int

const (
	NoModule Status = iota
	Loaded
)

// Instance owns at most one loaded guest module plus its sandbox runtime.
type Instance struct {
	ctx context.Context

	rt       wazero.Runtime
	compiled wazero.CompiledModule
	mod      api.Module

	renderFn        api.Function
	onInputFn       api.Function
	setSceneFn      api.Function
	getSceneFn      api.Function
	getSceneCountFn api.Function

	status    Status
	lastError error
	session   uint32
	locator   string
	log       *runtimelog.Logger
	state     *hostabi.State
}

// New creates an empty instance with no module loaded.
func New(ctx context.Context) *Instance {
	return &Instance{ctx: ctx, log: runtimelog.Discard()}
}

// SetLogger installs the logger used for load-failure and runtime-fault
// warnings.
func (g *Instance) SetLogger(l *runtimelog.Logger) {
	if l != nil {
		g.log = l
	}
}

func (g *Instance) Status() Status     { return g.status }
func (g *Instance) LastError() error   { return g.lastError }
func (g *Instance) Locator() string    { return g.locator }
func (g *Instance) IsLoaded() bool     { return g.status == Loaded }

// Load compiles, links and instantiates a module, then resolves its
// exports. render is mandatory; the rest are optional. Any failure leaves
// the instance in the NoModule state with lastError set, never a fatal
// host error.
func (g *Instance) Load(locator string, wasmBytes []byte, state *hostabi.State) error {
	g.session++
	g.unloadLocked()
	g.locator = locator

	rt := wazero.NewRuntime(g.ctx)

	if _, err := hostabi.Register(g.ctx, rt, state); err != nil {
		rt.Close(g.ctx)
		return g.fail(&Error{Kind: InstantiationError, Locator: locator, Details: "env host module", Err: err})
	}

	compiled, err := rt.CompileModule(g.ctx, wasmBytes)
	if err != nil {
		rt.Close(g.ctx)
		return g.fail(&Error{Kind: ModuleLoadError, Locator: locator, Details: "compile", Err: err})
	}

	mod, err := rt.InstantiateModule(g.ctx, compiled, wazero.NewModuleConfig())
	if err != nil {
		compiled.Close(g.ctx)
		rt.Close(g.ctx)
		return g.fail(&Error{Kind: InstantiationError, Locator: locator, Details: "instantiate", Err: err})
	}

	renderFn := mod.ExportedFunction("render")
	if renderFn == nil {
		mod.Close(g.ctx)
		compiled.Close(g.ctx)
		rt.Close(g.ctx)
		return g.fail(&Error{Kind: MissingExport, Locator: locator, Details: "render"})
	}

	g.rt = rt
	g.compiled = compiled
	g.mod = mod
	g.state = state
	g.renderFn = renderFn
	g.onInputFn = mod.ExportedFunction("on_input")
	g.setSceneFn = mod.ExportedFunction("set_scene")
	g.getSceneFn = mod.ExportedFunction("get_scene")
	g.getSceneCountFn = mod.ExportedFunction("get_scene_count")
	g.status = Loaded
	g.lastError = nil
	return nil
}

func (g *Instance) fail(err *Error) error {
	g.status = NoModule
	g.clearHandles()
	g.lastError = err
	g.log.Warn("guest load failed", "kind", err.Kind, "locator", err.Locator, "details", err.Details)
	return err
}

func (g *Instance) clearHandles() {
	g.rt = nil
	g.compiled = nil
	g.mod = nil
	g.state = nil
	g.renderFn = nil
	g.onInputFn = nil
	g.setSceneFn = nil
	g.getSceneFn = nil
	g.getSceneCountFn = nil
}

// Unload drops the instance and releases the sandbox runtime. It does not
// clear lastError/locator, so callers can still report what was running.
func (g *Instance) Unload() {
	g.unloadLocked()
	g.status = NoModule
}

func (g *Instance) unloadLocked() {
	if g.rt == nil {
		return
	}
	if g.mod != nil {
		g.mod.Close(g.ctx)
	}
	if g.compiled != nil {
		g.compiled.Close(g.ctx)
	}
	g.rt.Close(g.ctx)
	g.clearHandles()
}

func trapToFault(locator, fn string, err error) *Error {
	return &Error{Kind: RuntimeFault, Locator: locator, Details: fmt.Sprintf("trap in %s", fn), Err: err}
}

// CallRender issues the recorded canvas_clear call_render always performs
// before the guest gets to draw (spec.md §4.6), then invokes the guest's
// render export, converting any trap into a recorded RuntimeFault rather
// than propagating it.
func (g *Instance) CallRender() error {
	if g.status != Loaded {
		return nil
	}
	g.state.RecordClear()
	if _, err := g.renderFn.Call(g.ctx); err != nil {
		fault := trapToFault(g.locator, "render", err)
		g.lastError = fault
		g.log.Warn("guest trapped", "fn", "render", "locator", g.locator, "err", err)
		return fault
	}
	return nil
}

// CallOnInput forwards a synthesized key event to on_input if the guest
// exports one; it is a no-op otherwise.
func (g *Instance) CallOnInput(key, kind uint32) error {
	if g.status != Loaded || g.onInputFn == nil {
		return nil
	}
	if _, err := g.onInputFn.Call(g.ctx, uint64(key), uint64(kind)); err != nil {
		fault := trapToFault(g.locator, "on_input", err)
		g.lastError = fault
		g.log.Warn("guest trapped", "fn", "on_input", "locator", g.locator, "err", err)
		return fault
	}
	return nil
}

func (g *Instance) HasOnInput() bool { return g.status == Loaded && g.onInputFn != nil }

// SceneCount returns get_scene_count(), or 0 if unexported.
func (g *Instance) SceneCount() uint32 {
	if g.status != Loaded || g.getSceneCountFn == nil {
		return 0
	}
	res, err := g.getSceneCountFn.Call(g.ctx)
	if err != nil || len(res) == 0 {
		return 0
	}
	return uint32(res[0])
}

// SetScene calls set_scene(n) if exported.
func (g *Instance) SetScene(n uint32) {
	if g.status != Loaded || g.setSceneFn == nil {
		return
	}
	g.setSceneFn.Call(g.ctx, uint64(n))
}

// Scene returns get_scene(), or 0 if unexported.
func (g *Instance) Scene() uint32 {
	if g.status != Loaded || g.getSceneFn == nil {
		return 0
	}
	res, err := g.getSceneFn.Call(g.ctx)
	if err != nil || len(res) == 0 {
		return 0
	}
	return uint32(res[0])
}
