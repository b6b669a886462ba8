// Package capture reads and writes recorded IR line edges in a line based
// text format:
//
//	# samplerate: 1000000
//	0 0
//	4500 1
//	8850 0
//
// Every data line holds the tick of an edge and the raw line level after the
// edge (0 = low, 1 = high). Lines starting with '#' are comments; the optional
// samplerate comment defines the tick rate (default 1 MHz).
package capture

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"irdl/pkg/port"
)

// ErrSyntax is wrapped by every parse error of a capture.
var ErrSyntax = errors.New("capture syntax error")

const sampleRateKey = "samplerate"

// Reader parses edges from a capture stream.
type Reader struct {
	sc         *bufio.Scanner
	line       int
	sampleRate int64
	// first data line, read ahead to collect the header comments
	next    *port.Edge
	nextErr error
}

// NewReader reads the header comments of r.
func NewReader(r io.Reader) *Reader {
	c := &Reader{sc: bufio.NewScanner(r)}
	e, err := c.scan()
	if err == nil {
		c.next = &e
	}
	c.nextErr = err
	return c
}

// SampleRate returns the tick rate of the header or 0 if the capture has none.
func (c *Reader) SampleRate() int64 {
	return c.sampleRate
}

// Read returns the next edge or io.EOF at the end of the capture.
func (c *Reader) Read() (port.Edge, error) {
	if c.next != nil {
		e := *c.next
		c.next = nil
		c.nextErr = nil
		return e, nil
	}
	if c.nextErr != nil {
		err := c.nextErr
		c.nextErr = nil
		return port.Edge{}, err
	}
	return c.scan()
}

func (c *Reader) scan() (port.Edge, error) {
	for c.sc.Scan() {
		c.line++
		s := strings.TrimSpace(c.sc.Text())
		switch {
		case s == "":
			continue
		case strings.HasPrefix(s, "#"):
			if err := c.comment(s[1:]); err != nil {
				return port.Edge{}, err
			}
			continue
		}
		return c.edge(s)
	}
	if err := c.sc.Err(); err != nil {
		return port.Edge{}, err
	}
	return port.Edge{}, io.EOF
}

func (c *Reader) comment(s string) error {
	k, v, ok := strings.Cut(s, ":")
	if !ok || !strings.EqualFold(strings.TrimSpace(k), sampleRateKey) {
		return nil
	}
	rate, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil || rate <= 0 {
		return fmt.Errorf("%w: line %d: invalid sample rate %q", ErrSyntax, c.line, strings.TrimSpace(v))
	}
	c.sampleRate = rate
	return nil
}

func (c *Reader) edge(s string) (port.Edge, error) {
	f := strings.Fields(s)
	if len(f) != 2 {
		return port.Edge{}, fmt.Errorf("%w: line %d: want \"<tick> <level>\", got %q", ErrSyntax, c.line, s)
	}
	tick, err := strconv.ParseInt(f[0], 10, 64)
	if err != nil {
		return port.Edge{}, fmt.Errorf("%w: line %d: invalid tick %q", ErrSyntax, c.line, f[0])
	}

	var level bool
	switch f[1] {
	case "0":
	case "1":
		level = true
	default:
		return port.Edge{}, fmt.Errorf("%w: line %d: invalid level %q", ErrSyntax, c.line, f[1])
	}
	return port.Edge{Tick: tick, Level: level}, nil
}

// ReadAll parses a whole capture.
func ReadAll(r io.Reader) (sampleRate int64, edges []port.Edge, err error) {
	c := NewReader(r)
	for {
		e, err := c.Read()
		if errors.Is(err, io.EOF) {
			return c.SampleRate(), edges, nil
		}
		if err != nil {
			return c.SampleRate(), edges, err
		}
		edges = append(edges, e)
	}
}

// Stream sends the edges of r to out until the end of the capture or until
// ctx is done. The end of the capture returns nil.
func Stream(ctx context.Context, r *Reader, out chan<- port.Edge) error {
	for {
		e, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		select {
		case out <- e:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Writer writes edges in the capture format.
type Writer struct {
	w *bufio.Writer
}

// NewWriter writes the header with the given sample rate to w.
func NewWriter(w io.Writer, sampleRate int64) (*Writer, error) {
	c := &Writer{w: bufio.NewWriter(w)}
	if _, err := fmt.Fprintf(c.w, "# %s: %d\n", sampleRateKey, sampleRate); err != nil {
		return nil, err
	}
	return c, nil
}

// Write appends an edge.
func (c *Writer) Write(e port.Edge) error {
	level := "0"
	if e.Level {
		level = "1"
	}
	_, err := fmt.Fprintf(c.w, "%d %s\n", e.Tick, level)
	return err
}

// Comment appends a comment line.
func (c *Writer) Comment(s string) error {
	_, err := fmt.Fprintf(c.w, "# %s\n", s)
	return err
}

// Flush writes buffered edges to the underlying writer.
func (c *Writer) Flush() error {
	return c.w.Flush()
}
