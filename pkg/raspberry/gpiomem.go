//go:build linux

package raspberry

import (
	"fmt"
	"sync"
	"time"

	"github.com/warthog618/gpio"
	"github.com/womat/debug"

	"irdl/pkg/port"
)

// Pin is a gpio pin watched through the memory mapped registers.
// The driver delivers no event time, so edges are timestamped on arrival and
// the resolution depends on the interrupt latency.
type Pin struct {
	gpioPin *gpio.Pin
	// C receives the edges of the pin, it is closed by Close.
	C chan port.Edge

	origin time.Time
	mu     sync.Mutex
	closed bool
}

// OpenPin maps the GPIO memory range from /dev/gpiomem and watches pin p
// (BCM numbering) for both edges.
func OpenPin(p int, bias Bias) (*Pin, error) {
	if err := gpio.Open(); err != nil {
		return nil, fmt.Errorf("open gpiomem: %w", err)
	}

	pin := &Pin{gpioPin: gpio.NewPin(p), C: make(chan port.Edge, edgeBuffer), origin: time.Now()}
	pin.gpioPin.Input()
	switch bias {
	case BiasPullUp:
		pin.gpioPin.PullUp()
	case BiasPullDown:
		pin.gpioPin.PullDown()
	default:
		pin.gpioPin.PullNone()
	}

	if err := pin.gpioPin.Watch(gpio.EdgeBoth, pin.handler); err != nil {
		_ = gpio.Close()
		return nil, fmt.Errorf("watch pin %d: %w", p, err)
	}
	debug.InfoLog.Printf("watching gpiomem pin %d (%v)", p, bias)
	return pin, nil
}

func (p *Pin) handler(g *gpio.Pin) {
	e := port.Edge{Tick: port.Tick(time.Since(p.origin)), Level: bool(g.Read())}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}

	select {
	case p.C <- e:
	default:
		debug.ErrorLog.Printf("edge buffer full, edge @%d dropped", e.Tick)
	}
}

// Close removes the interrupt handler and unmaps GPIO memory.
func (p *Pin) Close() error {
	p.gpioPin.Unwatch()

	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.C)
	}
	p.mu.Unlock()

	return gpio.Close()
}
