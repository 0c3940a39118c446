//go:build headless

package video

// NewWindowedOutput is the headless build's stand-in for the interactive
// backend, selected by the same name so cmd/runtime never branches on the
// build tag itself, the same duality the teacher uses to swap its ebiten
// backend for a CI stub.
func NewWindowedOutput() (Output, error) {
	return NewOffscreenOutput()
}
