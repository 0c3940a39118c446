package video

import (
	"sync"
	"time"

	"github.com/fdb/fri3d-wasm-badge/internal/fb"
)

// OffscreenOutput discards everything it's given except the last frame,
// which it keeps for Snapshot. It backs the CLI's --headless flag in a
// normal build and a headless build's NewWindowedOutput stand-in; the
// trace harness uses no Output at all. Unlike the windowed
// backend it is always compiled, since --headless must work without
// recompiling under the headless build tag.
type OffscreenOutput struct {
	mu           sync.RWMutex
	started      bool
	config       DisplayConfig
	frameCount   uint64
	last         []byte
	inputHandler InputHandler
}

// NewOffscreenOutput constructs the backend used for --headless and CI.
func NewOffscreenOutput() (Output, error) {
	return &OffscreenOutput{last: make([]byte, fb.Width*fb.Height)}, nil
}

func (h *OffscreenOutput) Start() error {
	h.mu.Lock()
	h.started = true
	h.mu.Unlock()
	return nil
}

func (h *OffscreenOutput) Stop() error {
	h.mu.Lock()
	h.started = false
	h.mu.Unlock()
	return nil
}

func (h *OffscreenOutput) Close() error { return h.Stop() }

func (h *OffscreenOutput) IsStarted() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.started
}

func (h *OffscreenOutput) SetDisplayConfig(config DisplayConfig) error {
	h.mu.Lock()
	h.config = config
	h.mu.Unlock()
	return nil
}

func (h *OffscreenOutput) GetDisplayConfig() DisplayConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.config
}

func (h *OffscreenOutput) UpdateFrame(pixels []byte) error {
	if len(pixels) != fb.Width*fb.Height {
		return &Error{Operation: "update frame", Details: "wrong pixel count"}
	}
	h.mu.Lock()
	copy(h.last, pixels)
	h.frameCount++
	h.mu.Unlock()
	return nil
}

// SetInputHandler is a no-op: the offscreen backend generates no native
// input of its own. The trace harness drives input.Processor directly
// instead of going through an Output.
func (h *OffscreenOutput) SetInputHandler(InputHandler) {}

func (h *OffscreenOutput) WaitForVSync() error { return nil }

func (h *OffscreenOutput) GetFrameCount() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.frameCount
}

func (h *OffscreenOutput) Snapshot() (FrameSnapshot, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	pixels := make([]byte, len(h.last))
	copy(pixels, h.last)
	return FrameSnapshot{Pixels: pixels, Width: fb.Width, Height: fb.Height, Timestamp: time.Now()}, nil
}
