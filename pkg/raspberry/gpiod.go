//go:build linux

package raspberry

import (
	"fmt"
	"sync"
	"time"

	"github.com/warthog618/gpiod"
	"github.com/womat/debug"

	"irdl/pkg/port"
)

// Chip represents a single GPIO chip that controls a set of lines.
type Chip struct {
	gpiodChip *gpiod.Chip
}

// Line represents a single requested line.
type Line struct {
	gpiodLine *gpiod.Line
	// C receives the edges of the line, it is closed by Close.
	C chan port.Edge

	mu      sync.Mutex
	closed  bool
	dropped int
}

// Open opens a GPIO character device, e.g. gpiochip0.
func Open(name string) (*Chip, error) {
	c, err := gpiod.NewChip(name)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", name, err)
	}
	return &Chip{gpiodChip: c}, nil
}

// NewLine requests control of a single line on a chip and watches the line
// for both edges. Edges are sent to channel C with the kernel timestamp.
// A positive debounce period filters glitches in the kernel.
func (c *Chip) NewLine(offset int, bias Bias, debounce time.Duration) (*Line, error) {
	line := &Line{C: make(chan port.Edge, edgeBuffer)}

	opts := []gpiod.LineReqOption{gpiod.WithEventHandler(line.handler), gpiod.WithBothEdges, gpiod.AsInput}
	switch bias {
	case BiasPullUp:
		opts = append(opts, gpiod.WithPullUp)
	case BiasPullDown:
		opts = append(opts, gpiod.WithPullDown)
	case BiasNone:
		opts = append(opts, gpiod.WithBiasDisabled)
	default:
		return nil, ErrInvalidParam
	}
	if debounce > 0 {
		opts = append(opts, gpiod.WithDebounce(debounce))
	}

	var err error
	if line.gpiodLine, err = c.gpiodChip.RequestLine(offset, opts...); err != nil {
		return nil, fmt.Errorf("request line %d: %w", offset, err)
	}
	debug.InfoLog.Printf("watching gpio line %d (%v)", offset, bias)
	return line, nil
}

// handler runs in the event goroutine of gpiod and must not block.
func (l *Line) handler(evt gpiod.LineEvent) {
	e := port.Edge{Tick: port.Tick(evt.Timestamp), Level: evt.Type == gpiod.LineEventRisingEdge}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}

	select {
	case l.C <- e:
	default:
		l.dropped++
		debug.ErrorLog.Printf("edge buffer full, %d edges dropped", l.dropped)
	}
}

// Close releases the Chip.
//
// It does not release any lines which may be requested - they must be closed
// independently.
func (c *Chip) Close() error {
	return c.gpiodChip.Close()
}

// Close releases all resources held by the requested line and closes C.
//
// Note that this includes waiting for any running event handler to return.
// As a consequence the Close must not be called from the context of the event
// handler - the Close should be called from a different goroutine.
func (l *Line) Close() error {
	err := l.gpiodLine.Close()

	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.closed {
		l.closed = true
		close(l.C)
	}
	return err
}
