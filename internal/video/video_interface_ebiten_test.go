//go:build !headless

package video

import "testing"

func TestEbitenOutputImplementsOutput(t *testing.T) {
	var _ Output = (*EbitenOutput)(nil)
}

func TestNewOutputUnknownBackend(t *testing.T) {
	if _, err := NewOutput(Backend(99)); err == nil {
		t.Fatal("expected an error for an unknown backend")
	}
}
