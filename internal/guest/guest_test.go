package guest

import (
	"context"
	"testing"

	"github.com/fdb/fri3d-wasm-badge/internal/fb"
	"github.com/fdb/fri3d-wasm-badge/internal/font"
	"github.com/fdb/fri3d-wasm-badge/internal/hostabi"
	"github.com/fdb/fri3d-wasm-badge/internal/prng"
)

// renderOnlyWasm is the binary encoding of:
//
//	(module (func (export "render")))
var renderOnlyWasm = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00, // magic, version
	0x01, 0x04, 0x01, 0x60, 0x00, 0x00, // type section: () -> ()
	0x03, 0x02, 0x01, 0x00, // function section: func0 : type0
	0x07, 0x0a, 0x01, 0x06, 'r', 'e', 'n', 'd', 'e', 'r', 0x00, 0x00, // export "render" func0
	0x0a, 0x04, 0x01, 0x02, 0x00, 0x0b, // code section: func0 body = end
}

// renderAndInputWasm is the binary encoding of:
//
//	(module
//	  (func (export "render"))
//	  (func (export "on_input") (param i32 i32)))
var renderAndInputWasm = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x01, 0x09, 0x02, 0x60, 0x00, 0x00, 0x60, 0x02, 0x7f, 0x7f, 0x00, // two types
	0x03, 0x03, 0x02, 0x00, 0x01, // func0:type0, func1:type1
	0x07, 0x15, 0x02,
	0x06, 'r', 'e', 'n', 'd', 'e', 'r', 0x00, 0x00,
	0x08, 'o', 'n', '_', 'i', 'n', 'p', 'u', 't', 0x00, 0x01,
	0x0a, 0x07, 0x02, 0x02, 0x00, 0x0b, 0x02, 0x00, 0x0b,
}

// noExportsWasm is (module) — compiles fine, exports nothing.
var noExportsWasm = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
}

func newTestState() *hostabi.State {
	return &hostabi.State{
		Canvas: fb.New(),
		Fonts:  map[fb.Font]*font.Font{},
		Random: prng.NewSeeded(0),
		Clock:  func() uint32 { return 0 },
	}
}

func TestLoadRenderOnlySucceeds(t *testing.T) {
	g := New(context.Background())
	if err := g.Load("render-only.wasm", renderOnlyWasm, newTestState()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	defer g.Unload()
	if g.Status() != Loaded {
		t.Fatalf("status = %v, want Loaded", g.Status())
	}
	if g.HasOnInput() {
		t.Fatalf("render-only module must not report on_input")
	}
	if err := g.CallRender(); err != nil {
		t.Fatalf("CallRender: %v", err)
	}
}

func TestLoadMissingRenderFails(t *testing.T) {
	g := New(context.Background())
	err := g.Load("no-exports.wasm", noExportsWasm, newTestState())
	if err == nil {
		t.Fatalf("expected MissingExport error")
	}
	gerr, ok := err.(*Error)
	if !ok || gerr.Kind != MissingExport {
		t.Fatalf("expected *Error{Kind: MissingExport}, got %v", err)
	}
	if g.Status() != NoModule {
		t.Fatalf("status must remain NoModule on load failure")
	}
	if g.LastError() == nil {
		t.Fatalf("LastError must be set after a failed load")
	}
}

func TestLoadMalformedBytesIsModuleLoadError(t *testing.T) {
	g := New(context.Background())
	err := g.Load("garbage.wasm", []byte{0x01, 0x02, 0x03}, newTestState())
	if err == nil {
		t.Fatalf("expected a compile error")
	}
	gerr, ok := err.(*Error)
	if !ok || gerr.Kind != ModuleLoadError {
		t.Fatalf("expected *Error{Kind: ModuleLoadError}, got %v", err)
	}
}

func TestCallOnInputForwardsWhenExported(t *testing.T) {
	g := New(context.Background())
	if err := g.Load("with-input.wasm", renderAndInputWasm, newTestState()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	defer g.Unload()
	if !g.HasOnInput() {
		t.Fatalf("expected on_input to be resolved")
	}
	if err := g.CallOnInput(4, 2); err != nil {
		t.Fatalf("CallOnInput: %v", err)
	}
}

func TestUnloadClearsStatus(t *testing.T) {
	g := New(context.Background())
	if err := g.Load("render-only.wasm", renderOnlyWasm, newTestState()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	g.Unload()
	if g.Status() != NoModule {
		t.Fatalf("status after unload = %v, want NoModule", g.Status())
	}
	if err := g.CallRender(); err != nil {
		t.Fatalf("CallRender on an unloaded instance must be a no-op, got %v", err)
	}
}
