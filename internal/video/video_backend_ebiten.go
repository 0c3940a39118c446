//go:build !headless

package video

import (
	"fmt"
	"sync"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"golang.design/x/clipboard"

	"github.com/fdb/fri3d-wasm-badge/internal/fb"
	"github.com/fdb/fri3d-wasm-badge/internal/input"
)

// Panel ink colors, matched to the reference desktop port's warm e-ink
// palette: a drawn (1) pixel renders as dark ink, an undrawn (0) pixel as
// warm cream paper.
const (
	inkR, inkG, inkB       = 0x1A, 0x1A, 0x2E
	paperR, paperG, paperB = 0xE7, 0xD3, 0x96
)

// EbitenOutput is the interactive windowed backend.
type EbitenOutput struct {
	mu          sync.RWMutex
	running     bool
	window      *ebiten.Image
	scale       int
	fullscreen  bool
	frameBuffer []byte // RGBA, fb.Width x fb.Height
	frameCount  uint64
	vsyncChan   chan struct{}

	inputHandler InputHandler

	prompt        bool
	promptText    []byte
	loadHandler   func(path string)

	clipboardOnce sync.Once
	clipboardOK   bool
}

// NewWindowedOutput constructs the ebiten-backed display. Selected by
// cmd/runtime whenever the headless build tag is absent.
func NewWindowedOutput() (Output, error) {
	return &EbitenOutput{
		scale:       2,
		frameBuffer: make([]byte, fb.Width*fb.Height*4),
		vsyncChan:   make(chan struct{}, 1),
	}, nil
}

// SetLoadHandler installs the callback invoked when the user submits the
// Ctrl+L "load module" prompt (Enter), which can be filled either by typing
// a path or pasting one from the clipboard (Ctrl+V).
func (eo *EbitenOutput) SetLoadHandler(fn func(path string)) {
	eo.mu.Lock()
	eo.loadHandler = fn
	eo.mu.Unlock()
}

func (eo *EbitenOutput) Start() error {
	eo.mu.Lock()
	if eo.running {
		eo.mu.Unlock()
		return nil
	}
	eo.running = true
	scale := eo.scale
	fullscreen := eo.fullscreen
	eo.mu.Unlock()

	ebiten.SetWindowSize(fb.Width*scale, fb.Height*scale)
	ebiten.SetWindowTitle("fri3d badge")
	ebiten.SetWindowResizable(true)
	ebiten.SetRunnableOnUnfocused(true)
	ebiten.SetVsyncEnabled(true)
	if fullscreen {
		ebiten.SetFullscreen(true)
	}

	go func() {
		if err := ebiten.RunGame(eo); err != nil {
			fmt.Printf("video: ebiten exited: %v\n", err)
		}
	}()

	<-eo.vsyncChan
	return nil
}

func (eo *EbitenOutput) Stop() error {
	eo.mu.Lock()
	eo.running = false
	eo.mu.Unlock()
	return nil
}

func (eo *EbitenOutput) Close() error { return eo.Stop() }

func (eo *EbitenOutput) IsStarted() bool {
	eo.mu.RLock()
	defer eo.mu.RUnlock()
	return eo.running
}

func (eo *EbitenOutput) SetDisplayConfig(config DisplayConfig) error {
	eo.mu.Lock()
	defer eo.mu.Unlock()
	eo.scale = ClampScale(config.Scale)
	eo.fullscreen = config.Fullscreen
	ebiten.SetFullscreen(eo.fullscreen)
	if !eo.fullscreen {
		ebiten.SetWindowSize(fb.Width*eo.scale, fb.Height*eo.scale)
	}
	return nil
}

func (eo *EbitenOutput) GetDisplayConfig() DisplayConfig {
	eo.mu.RLock()
	defer eo.mu.RUnlock()
	return DisplayConfig{Scale: eo.scale, Fullscreen: eo.fullscreen}
}

// UpdateFrame converts the one-byte-per-pixel panel buffer to RGBA using
// the warm ink/paper palette.
func (eo *EbitenOutput) UpdateFrame(pixels []byte) error {
	if len(pixels) != fb.Width*fb.Height {
		return &Error{Operation: "update frame", Details: fmt.Sprintf("want %d pixels, got %d", fb.Width*fb.Height, len(pixels))}
	}
	eo.mu.Lock()
	defer eo.mu.Unlock()
	for i, p := range pixels {
		r, g, b := paperR, paperG, paperB
		if p != 0 {
			r, g, b = inkR, inkG, inkB
		}
		o := i * 4
		eo.frameBuffer[o] = byte(r)
		eo.frameBuffer[o+1] = byte(g)
		eo.frameBuffer[o+2] = byte(b)
		eo.frameBuffer[o+3] = 0xFF
	}
	return nil
}

func (eo *EbitenOutput) SetInputHandler(fn InputHandler) {
	eo.mu.Lock()
	eo.inputHandler = fn
	eo.mu.Unlock()
}

func (eo *EbitenOutput) WaitForVSync() error {
	<-eo.vsyncChan
	return nil
}

func (eo *EbitenOutput) GetFrameCount() uint64 {
	eo.mu.RLock()
	defer eo.mu.RUnlock()
	return eo.frameCount
}

func (eo *EbitenOutput) Snapshot() (FrameSnapshot, error) {
	eo.mu.RLock()
	defer eo.mu.RUnlock()
	pixels := make([]byte, fb.Width*fb.Height)
	for i := range pixels {
		o := i * 4
		if eo.frameBuffer[o] == inkR && eo.frameBuffer[o+1] == inkG && eo.frameBuffer[o+2] == inkB {
			pixels[i] = 1
		}
	}
	return FrameSnapshot{Pixels: pixels, Width: fb.Width, Height: fb.Height, Timestamp: time.Now()}, nil
}

// Update is ebiten.Game's per-tick hook: translate keyboard state into
// button edges, and service the debug load prompt.
func (eo *EbitenOutput) Update() error {
	if ebiten.IsWindowBeingClosed() {
		eo.mu.Lock()
		eo.running = false
		eo.mu.Unlock()
		select {
		case eo.vsyncChan <- struct{}{}:
		default:
		}
		return ebiten.Termination
	}
	eo.mu.RLock()
	running := eo.running
	eo.mu.RUnlock()
	if !running {
		return ebiten.Termination
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyF11) {
		eo.mu.Lock()
		eo.fullscreen = !eo.fullscreen
		ebiten.SetFullscreen(eo.fullscreen)
		if !eo.fullscreen {
			ebiten.SetWindowSize(fb.Width*eo.scale, fb.Height*eo.scale)
		}
		eo.mu.Unlock()
	}

	ctrl := ebiten.IsKeyPressed(ebiten.KeyControlLeft) || ebiten.IsKeyPressed(ebiten.KeyControlRight)
	if ctrl && inpututil.IsKeyJustPressed(ebiten.KeyL) {
		eo.togglePrompt()
	}

	eo.mu.RLock()
	inPrompt := eo.prompt
	eo.mu.RUnlock()
	if inPrompt {
		eo.updatePrompt(ctrl)
		return nil
	}

	eo.handleButtons()
	return nil
}

func (eo *EbitenOutput) togglePrompt() {
	eo.mu.Lock()
	eo.prompt = !eo.prompt
	eo.promptText = eo.promptText[:0]
	eo.mu.Unlock()
}

// updatePrompt handles the Ctrl+L debug prompt: typed characters, Ctrl+V
// paste from the system clipboard, Enter to submit, Escape to cancel. This
// is the one legitimate clipboard consumer on this panel: badges have no
// text entry of their own, so pasting a module path is the only practical
// way to load an arbitrary .wasm file without retyping it.
func (eo *EbitenOutput) updatePrompt(ctrl bool) {
	if ctrl && inpututil.IsKeyJustPressed(ebiten.KeyV) {
		eo.pasteClipboard()
	}
	for _, r := range ebiten.AppendInputChars(nil) {
		if r >= 0x20 && r < 0x7F {
			eo.mu.Lock()
			eo.promptText = append(eo.promptText, byte(r))
			eo.mu.Unlock()
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyBackspace) {
		eo.mu.Lock()
		if n := len(eo.promptText); n > 0 {
			eo.promptText = eo.promptText[:n-1]
		}
		eo.mu.Unlock()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		eo.mu.Lock()
		eo.prompt = false
		eo.promptText = eo.promptText[:0]
		eo.mu.Unlock()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEnter) || inpututil.IsKeyJustPressed(ebiten.KeyNumpadEnter) {
		eo.mu.Lock()
		path := string(eo.promptText)
		eo.prompt = false
		eo.promptText = eo.promptText[:0]
		handler := eo.loadHandler
		eo.mu.Unlock()
		if handler != nil && path != "" {
			handler(path)
		}
	}
}

func (eo *EbitenOutput) pasteClipboard() {
	eo.clipboardOnce.Do(func() {
		eo.clipboardOK = clipboard.Init() == nil
	})
	if !eo.clipboardOK {
		return
	}
	data := clipboard.Read(clipboard.FmtText)
	if len(data) == 0 {
		return
	}
	const maxLen = 4096
	if len(data) > maxLen {
		data = data[:maxLen]
	}
	clean := make([]byte, 0, len(data))
	for _, b := range data {
		if b == '\n' || b == '\r' || b == '\t' {
			break // a pasted path never legitimately contains these
		}
		clean = append(clean, b)
	}
	eo.mu.Lock()
	eo.promptText = append(eo.promptText, clean...)
	eo.mu.Unlock()
}

var keyMap = [...]struct {
	ebiten ebiten.Key
	badge  input.Key
}{
	{ebiten.KeyArrowUp, input.Up},
	{ebiten.KeyArrowDown, input.Down},
	{ebiten.KeyArrowLeft, input.Left},
	{ebiten.KeyArrowRight, input.Right},
	{ebiten.KeyEnter, input.Ok},
	{ebiten.KeyNumpadEnter, input.Ok},
	{ebiten.KeyBackspace, input.Back},
	{ebiten.KeyEscape, input.Back},
}

// handleButtons maps the badge's six physical buttons onto arrow keys plus
// Enter (Ok) and Backspace|Escape (Back), the same mapping the reference
// desktop port's key_to_input uses.
func (eo *EbitenOutput) handleButtons() {
	eo.mu.RLock()
	handler := eo.inputHandler
	eo.mu.RUnlock()
	if handler == nil {
		return
	}
	for _, km := range keyMap {
		if inpututil.IsKeyJustPressed(km.ebiten) {
			handler(km.badge, true)
		}
		if inpututil.IsKeyJustReleased(km.ebiten) {
			handler(km.badge, false)
		}
	}
}

func (eo *EbitenOutput) Draw(screen *ebiten.Image) {
	eo.mu.Lock()
	if eo.window == nil {
		eo.window = ebiten.NewImage(fb.Width, fb.Height)
	}
	eo.window.WritePixels(eo.frameBuffer)
	eo.frameCount++
	eo.mu.Unlock()

	screen.DrawImage(eo.window, nil)

	select {
	case eo.vsyncChan <- struct{}{}:
	default:
	}
}

func (eo *EbitenOutput) Layout(_, _ int) (int, int) {
	return fb.Width, fb.Height
}
