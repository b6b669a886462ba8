package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/womat/debug"
	"go.bug.st/serial"

	"irdl/pkg/capture"
	"irdl/pkg/port"
)

// newStream starts a goroutine that parses the capture text of r.
// The capture reader is created in the goroutine, as reading the header
// blocks on live streams.
func newStream(ctx context.Context, name string, r io.Reader, closer func() error) *Source {
	ctx, cancel := context.WithCancel(ctx)
	c := make(chan port.Edge)
	s := &Source{C: c, name: name, closer: closer, cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(s.done)
		defer close(c)

		s.err = capture.Stream(ctx, capture.NewReader(r), c)
		if s.err != nil && !errors.Is(s.err, context.Canceled) {
			debug.ErrorLog.Printf("edge source %s: %v", name, s.err)
		}
	}()
	return s
}

// openFile streams a capture file. The sample rate of the header is known
// when openFile returns.
func openFile(ctx context.Context, name string) (*Source, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open capture: %w", err)
	}

	r := capture.NewReader(f)
	ctx, cancel := context.WithCancel(ctx)
	c := make(chan port.Edge)
	s := &Source{C: c, name: "file " + name, sampleRate: r.SampleRate(), closer: f.Close, cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(s.done)
		defer close(c)
		s.err = capture.Stream(ctx, r, c)
	}()
	return s, nil
}

// openSerial reads the capture text of a sniffer on a serial port.
func openSerial(ctx context.Context, name string, baud int) (*Source, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: no serial port", ErrInvalidSource)
	}
	if baud == 0 {
		baud = 115200
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	p, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", name, err)
	}
	return newStream(ctx, fmt.Sprintf("serial %s@%d", name, baud), p, p.Close), nil
}
