// Package source opens the configured edge source of the decoder and
// delivers its edges on a channel.
package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/womat/debug"

	"irdl/pkg/port"
)

// ErrInvalidSource is wrapped by the errors of an unusable source configuration.
var ErrInvalidSource = errors.New("invalid edge source")

// Source types.
const (
	TypeFile      = "file"
	TypeGPIO      = "gpio"
	TypeGPIOMem   = "gpiomem"
	TypeSerial    = "serial"
	TypeWebsocket = "websocket"
)

// Config is the configuration of an edge source.
type Config struct {
	Type string

	// File is the capture file of type file.
	File string

	// Chip, Line, Bias and Debounce define the gpio line (type gpio),
	// Line is the BCM pin number for type gpiomem.
	Chip     string
	Line     int
	Bias     string
	Debounce time.Duration

	// Port and Baud define the serial sniffer (type serial).
	Port string
	Baud int

	// URL, Username and Password define the websocket sniffer (type websocket).
	URL        string
	Username   string
	Password   string
	SkipVerify bool
}

// Source is an open edge source.
type Source struct {
	// C receives the edges; it is closed at the end of the source.
	C <-chan port.Edge

	name       string
	sampleRate int64
	closer     func() error
	cancel     context.CancelFunc
	done       chan struct{}
	err        error
}

// Open opens the edge source of cfg.
func Open(ctx context.Context, cfg Config) (*Source, error) {
	var s *Source
	var err error

	switch cfg.Type {
	case TypeFile:
		s, err = openFile(ctx, cfg.File)
	case TypeGPIO:
		s, err = openGPIO(cfg)
	case TypeGPIOMem:
		s, err = openGPIOMem(cfg)
	case TypeSerial:
		s, err = openSerial(ctx, cfg.Port, cfg.Baud)
	case TypeWebsocket:
		s, err = openWebsocket(ctx, cfg)
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidSource, cfg.Type)
	}
	if err != nil {
		return nil, err
	}

	debug.InfoLog.Printf("edge source %s opened", s.name)
	return s, nil
}

// Name describes the source.
func (s *Source) Name() string {
	return s.name
}

// SampleRate returns the tick rate of the source or 0 if the source doesn't
// define one.
func (s *Source) SampleRate() int64 {
	return s.sampleRate
}

// Err waits for the end of a streaming source and returns the error that
// ended it. Call it after C was closed.
func (s *Source) Err() error {
	if s.done == nil {
		return nil
	}
	<-s.done
	return s.err
}

// Close stops the source and releases its resources.
func (s *Source) Close() error {
	if s.cancel != nil {
		s.cancel()
	}

	var err error
	if s.closer != nil {
		err = s.closer()
	}
	if s.done != nil {
		<-s.done
	}

	debug.InfoLog.Printf("edge source %s closed", s.name)
	return err
}
