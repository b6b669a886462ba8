//go:build !linux

package raspberry

import (
	"time"

	"irdl/pkg/port"
)

// Chip is not available on non-Linux platforms.
type Chip struct{}

// Line is not available on non-Linux platforms.
type Line struct {
	C chan port.Edge
}

// Pin is not available on non-Linux platforms.
type Pin struct {
	C chan port.Edge
}

// Open returns an error on non-Linux platforms.
func Open(string) (*Chip, error) {
	return nil, ErrNotSupported
}

// NewLine returns an error on non-Linux platforms.
func (c *Chip) NewLine(int, Bias, time.Duration) (*Line, error) {
	return nil, ErrNotSupported
}

// Close is not implemented on non-Linux platforms.
func (c *Chip) Close() error {
	return nil
}

// Close is not implemented on non-Linux platforms.
func (l *Line) Close() error {
	return nil
}

// OpenPin returns an error on non-Linux platforms.
func OpenPin(int, Bias) (*Pin, error) {
	return nil, ErrNotSupported
}

// Close is not implemented on non-Linux platforms.
func (p *Pin) Close() error {
	return nil
}
