// Package raspberry is the watcher for the gpio line of an IR receiver.
//
// Two drivers are supported:
//   - gpiod, the GPIO character device (/dev/gpiochipN), with kernel event timestamps
//   - gpiomem, the memory mapped registers (/dev/gpiomem), timestamped on arrival
//
// Both deliver the raw line level after every edge in microsecond ticks.
package raspberry

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidParam = errors.New("invalid parameters")
	ErrNotSupported = errors.New("gpio: not supported on this platform (requires Linux)")
)

// edgeBuffer is the capacity of the edge channels. An R05D transmission has
// about 200 edges.
const edgeBuffer = 1024

// Bias is the terminator of the input line.
type Bias int

const (
	BiasNone Bias = iota
	BiasPullUp
	BiasPullDown
)

// ParseBias converts the configuration value to a Bias.
func ParseBias(s string) (Bias, error) {
	switch s {
	case "none", "":
		return BiasNone, nil
	case "pullup":
		return BiasPullUp, nil
	case "pulldown":
		return BiasPullDown, nil
	}
	return BiasNone, fmt.Errorf("%w: terminator %q", ErrInvalidParam, s)
}

func (b Bias) String() string {
	switch b {
	case BiasPullUp:
		return "pullup"
	case BiasPullDown:
		return "pulldown"
	}
	return "none"
}
