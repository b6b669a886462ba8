package capture

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"

	"irdl/pkg/port"
)

const sample = `# recorded with irdl
# samplerate: 2000000

0 0
9000 1
  17700 0
# trailing comment
`

func TestReadAll(t *testing.T) {
	c := qt.New(t)

	rate, edges, err := ReadAll(strings.NewReader(sample))
	c.Assert(err, qt.IsNil)
	c.Assert(rate, qt.Equals, int64(2000000))
	c.Assert(edges, qt.DeepEquals, []port.Edge{
		{Tick: 0, Level: false},
		{Tick: 9000, Level: true},
		{Tick: 17700, Level: false},
	})
}

func TestReadWithoutHeader(t *testing.T) {
	c := qt.New(t)

	r := NewReader(strings.NewReader("5 1\n"))
	c.Assert(r.SampleRate(), qt.Equals, int64(0))

	e, err := r.Read()
	c.Assert(err, qt.IsNil)
	c.Assert(e, qt.Equals, port.Edge{Tick: 5, Level: true})

	_, err = r.Read()
	c.Assert(err, qt.Equals, io.EOF)
	_, err = r.Read()
	c.Assert(err, qt.Equals, io.EOF)
}

func TestSyntaxErrors(t *testing.T) {
	c := qt.New(t)

	for _, tc := range []struct {
		name  string
		input string
		msg   string
	}{
		{"fields", "0 0\n100\n", `capture syntax error: line 2: want "<tick> <level>", got "100"`},
		{"tick", "x 0\n", `capture syntax error: line 1: invalid tick "x"`},
		{"level", "0 high\n", `capture syntax error: line 1: invalid level "high"`},
		{"rate", "# SampleRate: fast\n", `capture syntax error: line 1: invalid sample rate "fast"`},
	} {
		c.Run(tc.name, func(c *qt.C) {
			_, _, err := ReadAll(strings.NewReader(tc.input))
			c.Assert(errors.Is(err, ErrSyntax), qt.IsTrue)
			c.Assert(err, qt.ErrorMatches, tc.msg)
		})
	}
}

func TestWriterRoundTrip(t *testing.T) {
	c := qt.New(t)

	var buf bytes.Buffer
	w, err := NewWriter(&buf, 1000000)
	c.Assert(err, qt.IsNil)
	c.Assert(w.Comment("gpio 17"), qt.IsNil)
	c.Assert(w.Write(port.Edge{Tick: 0}), qt.IsNil)
	c.Assert(w.Write(port.Edge{Tick: 4500, Level: true}), qt.IsNil)
	c.Assert(w.Flush(), qt.IsNil)

	c.Assert(buf.String(), qt.Equals, "# samplerate: 1000000\n# gpio 17\n0 0\n4500 1\n")

	rate, edges, err := ReadAll(&buf)
	c.Assert(err, qt.IsNil)
	c.Assert(rate, qt.Equals, int64(1000000))
	c.Assert(edges, qt.HasLen, 2)
}

func TestStream(t *testing.T) {
	c := qt.New(t)

	out := make(chan port.Edge, 3)
	err := Stream(context.Background(), NewReader(strings.NewReader(sample)), out)
	c.Assert(err, qt.IsNil)
	c.Assert(out, qt.HasLen, 3)

	// nobody reads, the context ends the stream
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = Stream(ctx, NewReader(strings.NewReader(sample)), make(chan port.Edge))
	c.Assert(err, qt.Equals, context.Canceled)
}
