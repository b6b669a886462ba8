package r05d

import (
	"sync"
	"time"

	"irdl/pkg/port"
)

// idleExpirer is implemented by handlers that support a forced idle timeout.
type idleExpirer interface {
	ExpireIdle()
}

// Receiver drives a Handler from a channel of edges in its own goroutine.
// If no edge arrives for IdleTimeout (wall clock), the handler's idle timeout
// is forced, so the last packet of a transmission is reported without
// waiting for the next one.
type Receiver struct {
	h           Handler
	rx          <-chan port.Edge
	idleTimeout time.Duration

	// quit is the channel to stop the receiver
	quit     chan struct{}
	quitOnce sync.Once
	// done signals that run() is terminated
	done chan struct{}
}

// NewReceiver starts receiving edges from rx. The receiver owns h until
// Close returns.
func NewReceiver(rx <-chan port.Edge, h Handler, idleTimeout time.Duration) *Receiver {
	r := &Receiver{
		h:           h,
		rx:          rx,
		idleTimeout: idleTimeout,
		quit:        make(chan struct{}),
		done:        make(chan struct{}),
	}

	go r.run()
	return r
}

// Done is closed after the edge channel was closed and the session ended.
func (r *Receiver) Done() <-chan struct{} {
	return r.done
}

// Close stops receiving and ends the session. It is safe for concurrent use.
func (r *Receiver) Close() error {
	r.quitOnce.Do(func() { close(r.quit) })

	// wait until run() is terminated
	<-r.done
	return nil
}

// run passes edges to the handler until the channel is closed or the
// receiver is stopped.
func (r *Receiver) run() {
	defer close(r.done)
	defer r.h.OnSessionEnd()

	timer := time.NewTimer(r.idleTimeout)
	defer timer.Stop()

	for {
		select {
		case <-r.quit:
			return
		case <-timer.C:
			if x, ok := r.h.(idleExpirer); ok {
				x.ExpireIdle()
			}
		case e, open := <-r.rx:
			if !open {
				return
			}
			r.h.OnEdge(e)

			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(r.idleTimeout)
		}
	}
}
