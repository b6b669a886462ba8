package r05d

import (
	"errors"

	"irdl/pkg/port"
)

// nominal timings in microseconds
const (
	usLeaderLow  = 4500
	usLeaderHigh = 4350
	usBitLow     = 600
	usBit0       = 500
	usBit1       = 1600
	usSeparator  = 5110
)

// cool26 is a valid R05D block: address 0xB2, fan auto, cool, 26°C.
var cool26 = []byte{0xB2, 0x4D, 0xBF, 0x40, 0xD0, 0x2F}

// synth builds the edges of an active low IR line, starting with the falling
// edge of a leader at tick 0.
type synth struct {
	t     int64
	level bool
	edges []port.Edge
}

func newSynth() *synth {
	return &synth{edges: []port.Edge{{Tick: 0, Level: false}}}
}

// mark holds the line low for d ticks.
func (s *synth) mark(d int64) *synth {
	if s.level {
		panic("mark on a high line")
	}
	s.t += d
	s.level = true
	s.edges = append(s.edges, port.Edge{Tick: s.t, Level: true})
	return s
}

// space holds the line high for d ticks.
func (s *synth) space(d int64) *synth {
	if !s.level {
		panic("space on a low line")
	}
	s.t += d
	s.level = false
	s.edges = append(s.edges, port.Edge{Tick: s.t, Level: false})
	return s
}

func (s *synth) leader() *synth {
	return s.mark(usLeaderLow).space(usLeaderHigh)
}

func (s *synth) bytes(data ...byte) *synth {
	for _, b := range data {
		for i := 7; i >= 0; i-- {
			s.mark(usBitLow)
			if b&(1<<i) != 0 {
				s.space(usBit1)
			} else {
				s.space(usBit0)
			}
		}
	}
	return s
}

// r05d appends a full transmission: the block, a separator and the block
// again, each after a leader, ending with the stop mark.
func (s *synth) r05d(block []byte) *synth {
	s.leader().bytes(block...).mark(usBitLow).space(usSeparator)
	return s.leader().bytes(block...).mark(usBitLow)
}

// inverted returns the edges with every level flipped.
func (s *synth) inverted() []port.Edge {
	out := make([]port.Edge, len(s.edges))
	for i, e := range s.edges {
		out[i] = port.Edge{Tick: e.Tick, Level: !e.Level}
	}
	return out
}

type recorder struct {
	anns    []Annotation
	packets []Packet
}

func (r *recorder) Annotate(a Annotation) { r.anns = append(r.anns, a) }

func (r *recorder) Packet(p Packet) { r.packets = append(r.packets, p) }

func (r *recorder) kind(k Kind) []Annotation {
	var out []Annotation
	for _, a := range r.anns {
		if a.Kind == k {
			out = append(out, a)
		}
	}
	return out
}

func (r *recorder) texts(k Kind) []string {
	var out []string
	for _, a := range r.kind(k) {
		out = append(out, a.Text)
	}
	return out
}

func (r *recorder) warnings(cause error) []Annotation {
	var out []Annotation
	for _, a := range r.kind(KindWarning) {
		if errors.Is(a.Err, cause) {
			out = append(out, a)
		}
	}
	return out
}

// decode runs the edges through a new session with layout l.
func decode(l Layout, pol port.Polarity, edges []port.Edge) (*Session, *recorder) {
	cfg := DefaultConfig()
	cfg.Layout = l
	cfg.Polarity = pol

	rec := &recorder{}
	s, err := NewSession(cfg, rec)
	if err != nil {
		panic(err)
	}
	for _, e := range edges {
		s.OnEdge(e)
	}
	return s, rec
}
