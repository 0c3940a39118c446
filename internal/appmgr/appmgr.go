// Package appmgr implements the application manager: the registry of
// installed apps, the launcher/app mode flag, the deferred-request mailbox
// written from inside a guest render pass, and the bounded two-pass
// reconciliation loop that makes exit_to_launcher/start_app safe to call
// mid-render.
package appmgr

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/fdb/fri3d-wasm-badge/internal/fb"
	"github.com/fdb/fri3d-wasm-badge/internal/font"
	"github.com/fdb/fri3d-wasm-badge/internal/guest"
	"github.com/fdb/fri3d-wasm-badge/internal/hostabi"
	"github.com/fdb/fri3d-wasm-badge/internal/runtimelog"
)

// Mode is which kind of module is (or should be) resident.
type Mode int

const (
	InLauncher Mode = iota
	InApp
)

func (m Mode) String() string {
	if m == InApp {
		return "InApp"
	}
	return "InLauncher"
}

// requestKind is the deferred-request mailbox's payload shape. The
// mailbox cell itself is owned by Manager; on_input/on_render guest calls
// reach it only through the non-owning write capabilities installed into
// hostabi.State (ExitToLauncher/StartApp), never by touching Manager
// directly — the cyclic-ownership rewrite of the original design.
type requestKind int

const (
	reqNone requestKind = iota
	reqExitToLauncher
	reqStartApp
)

type pendingRequest struct {
	kind requestKind
	id   uint32
}

// Loader reads a module's bytes from its locator. Resolving "what a
// locator means" is a host-port concern; the manager itself only knows
// how to sanitize relative-path locators against a base directory when
// one is configured.
type Loader func(locator string) ([]byte, error)

// Manager is the C7 application manager.
type Manager struct {
	registry      Registry
	launcherPath  string
	mode          Mode
	baseDir       string
	load          Loader
	canvas        *fb.Buffer
	state         *hostabi.State
	inst          *guest.Instance
	lastError     error
	pending       pendingRequest
	log           *runtimelog.Logger
}

// New creates a manager with an empty registry, positioned at the
// launcher with no module loaded yet. canvas and state are shared with
// the host ABI dispatch table; state's ExitToLauncher/StartApp closures
// are wired here.
func New(canvas *fb.Buffer, state *hostabi.State, load Loader) *Manager {
	m := &Manager{
		canvas: canvas,
		state:  state,
		load:   load,
		mode:   InLauncher,
		log:    runtimelog.Discard(),
	}
	m.inst = guest.New(context.Background())
	state.ExitToLauncher = func() { m.pending = pendingRequest{kind: reqExitToLauncher} }
	state.StartApp = func(id uint32) { m.pending = pendingRequest{kind: reqStartApp, id: id} }
	return m
}

// SetLogger installs the logger used for load-failure warnings and
// reconciliation tracing. Host ports call this once at startup; tests
// leave the discard logger installed by New.
func (m *Manager) SetLogger(l *runtimelog.Logger) {
	if l != nil {
		m.log = l
		m.inst.SetLogger(l)
	}
}

// SetBaseDir configures the directory app/launcher locators are resolved
// against; relative locators are joined and verified not to escape it.
func (m *Manager) SetBaseDir(dir string) { m.baseDir = dir }

// SetLauncherPath records the launcher module's locator.
func (m *Manager) SetLauncherPath(path string) { m.launcherPath = path }

// AddApp registers an app and returns its assigned id.
func (m *Manager) AddApp(path string) uint32 { return m.registry.Add(path) }

// LoadManifest appends a parsed manifest's entries to the registry in
// order; apps already registered keep their ids.
func (m *Manager) LoadManifest(reg *Registry) {
	for _, e := range reg.Entries() {
		m.registry.Add(e.Path)
	}
}

func (m *Manager) Mode() Mode         { return m.mode }
func (m *Manager) LastError() error   { return m.lastError }
func (m *Manager) Registry() []AppEntry { return m.registry.Entries() }

// SetScene forwards set_scene(n) to the resident guest, if it exports one.
// Host ports call this once after the initial load in response to a
// --scene CLI flag.
func (m *Manager) SetScene(n uint32) { m.inst.SetScene(n) }

func (m *Manager) setError(err error) {
	m.lastError = err
	m.log.Warn("module load failed", "err", err)
}

// sanitizePath joins a relative locator against baseDir and rejects
// absolute paths or any escape via "..", mirroring the original runtime's
// sandboxed-path pattern for any locator that looks like a filesystem
// path. Locators the loader treats as opaque keys (non-path, e.g. URLs or
// embedded asset names) pass through untouched when baseDir is empty.
func (m *Manager) sanitizePath(locator string) (string, bool) {
	if m.baseDir == "" {
		return locator, true
	}
	if filepath.IsAbs(locator) {
		return "", false
	}
	joined := filepath.Join(m.baseDir, locator)
	rel, err := filepath.Rel(m.baseDir, joined)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return joined, true
}

func (m *Manager) loadLocator(locator string) ([]byte, error) {
	resolved, ok := m.sanitizePath(locator)
	if !ok {
		return nil, &guest.Error{Kind: guest.ModuleLoadError, Locator: locator, Details: "path escapes base directory"}
	}
	return m.load(resolved)
}

// ShowLauncher unloads the current module, enters InLauncher, and loads
// the launcher module. A missing or failing launcher leaves no module
// loaded; Render then draws the error panel instead of calling render().
func (m *Manager) ShowLauncher() {
	m.inst.Unload()
	m.resetPerGuestState()
	m.mode = InLauncher
	if m.launcherPath == "" {
		m.setError(&guest.Error{Kind: guest.ModuleLoadError, Locator: "", Details: "no launcher configured"})
		return
	}
	bytes, err := m.loadLocator(m.launcherPath)
	if err != nil {
		m.setError(err)
		return
	}
	if err := m.inst.Load(m.launcherPath, bytes, m.state); err != nil {
		m.setError(err)
		return
	}
	m.lastError = nil
}

// LaunchAppByPath loads the module at p directly, entering InApp on
// success.
func (m *Manager) LaunchAppByPath(p string) bool {
	m.inst.Unload()
	m.resetPerGuestState()
	bytes, err := m.loadLocator(p)
	if err != nil {
		m.setError(err)
		return false
	}
	if err := m.inst.Load(p, bytes, m.state); err != nil {
		m.setError(err)
		return false
	}
	m.mode = InApp
	m.lastError = nil
	return true
}

// launchAppByID resolves id 0 to the launcher, otherwise looks up the
// registry.
func (m *Manager) launchAppByID(id uint32) bool {
	if id == 0 {
		m.ShowLauncher()
		return true
	}
	entry, ok := m.registry.Lookup(id)
	if !ok {
		m.setError(&guest.Error{Kind: guest.ModuleLoadError, Details: "unknown app id"})
		return false
	}
	return m.LaunchAppByPath(entry.Path)
}

func (m *Manager) resetPerGuestState() {
	m.state.Timer = hostabi.Timer{}
	m.state.RenderRequested = false
}

// processDeferred reads and clears the mailbox, dispatching the request.
// It reports whether a mode/module switch occurred.
func (m *Manager) processDeferred() bool {
	req := m.pending
	m.pending = pendingRequest{}
	switch req.kind {
	case reqExitToLauncher:
		m.ShowLauncher()
		return true
	case reqStartApp:
		return m.launchAppByID(req.id)
	default:
		return false
	}
}

func (m *Manager) takeRenderRequest() bool {
	req := m.state.RenderRequested
	m.state.RenderRequested = false
	return req
}

// HandleInput forwards a key event to the guest, then drains the mailbox
// without forcing a re-render — a render call follows naturally on the
// next tick.
func (m *Manager) HandleInput(key, kind uint32) {
	if m.inst.HasOnInput() {
		m.inst.CallOnInput(key, kind)
	}
	m.processDeferred()
}

// Render runs the bounded two-pass reconciliation loop: render (or the
// launcher error panel), drain deferred requests, and allow exactly one
// extra pass if a switch occurred or the guest asked for a re-render.
func (m *Manager) Render(errPanel func(*fb.Buffer, error)) {
	passes := 0
	for {
		if m.inst.IsLoaded() {
			m.inst.CallRender()
		} else if m.mode == InLauncher {
			m.canvas.Clear()
			if errPanel != nil {
				errPanel(m.canvas, m.lastError)
			}
		} else {
			m.canvas.Clear()
		}

		switched := m.processDeferred()
		passes++
		if switched {
			m.log.Debug("reconciliation switched mode", "pass", passes, "mode", m.mode)
		}
		if passes >= 2 {
			break
		}
		rerender := switched || m.takeRenderRequest()
		if !rerender {
			break
		}
		if !m.inst.IsLoaded() && m.mode != InLauncher {
			break
		}
	}
}

// AssetFont resolves which font.Font backs an fb.Font identifier; host
// ports call this once at startup to populate hostabi.State.Fonts.
func AssetFont(id fb.Font) *font.Font {
	switch id {
	case fb.Primary:
		return font.MustLoadEmbedded("primary")
	case fb.Secondary:
		return font.MustLoadEmbedded("secondary")
	case fb.Keyboard:
		return font.MustLoadEmbedded("keyboard")
	default:
		return font.MustLoadEmbedded("bignumbers")
	}
}
