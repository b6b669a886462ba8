// Package r05d is a decoder of the R05D infrared protocol, a pulse distance
// modulated NEC variant used by air conditioner remotes.
//
// A frame starts with a leader (4.5ms low, 4.35ms high), followed by bits of
// a 0.6ms low and a 0.5ms (0) or 1.6ms (1) high, MSB first. The 6 byte block
// A A' B B' C C' is sent twice, separated by a 5.11ms high and a new leader.
//
// The decoder is fed one edge at a time and reports its findings as
// annotations. It does no I/O and holds no global state; every Session is
// owned by a single goroutine.
package r05d

import (
	"fmt"
	"io"
	"log"

	"irdl/pkg/port"
	"irdl/pkg/timing"
)

// State is the phase of the pulse state machine.
type State int

const (
	StateIdle State = iota
	StateAwaitingLeaderHigh
	StateAwaitingBitLow
	StateAwaitingBitHigh
	StateAwaitingSeparatorOrNextByte
	StateAwaitingBlockLeader
	StateError
)

var stateNames = [...]string{"Idle", "AwaitingLeaderHigh", "AwaitingBitLow", "AwaitingBitHigh",
	"AwaitingSeparatorOrNextByte", "AwaitingBlockLeader", "Error"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// Handler is the contract between a host adapter and the decoder.
type Handler interface {
	// OnEdge processes the next edge. Edges must arrive in non-decreasing
	// tick order.
	OnEdge(e port.Edge)
	// OnSessionEnd flushes an in-progress packet.
	OnSessionEnd()
}

// Logger receives the trace output of a session.
type Logger interface {
	Printf(format string, v ...interface{})
}

// Config is the configuration of a decoding session.
type Config struct {
	Polarity port.Polarity
	// SampleRate is the tick rate of the edges in ticks per second.
	SampleRate int64
	Timings    timing.Table
	Layout     Layout
	// Logger is optional.
	Logger Logger
}

// DefaultConfig returns the R05D configuration for microsecond ticks.
func DefaultConfig() Config {
	return Config{
		Polarity:   port.ActiveLow,
		SampleRate: port.Microseconds,
		Timings:    timing.DefaultTable(timing.DefaultTolerance),
		Layout:     R05D,
	}
}

// segment is the time between two edges with the logical level in between.
type segment struct {
	high       bool
	start, end int64
}

func (s segment) duration() int64 { return s.end - s.start }

func (s segment) level() string {
	if s.high {
		return "high"
	}
	return "low"
}

// Session is the decoder state of one channel.
type Session struct {
	polarity port.Polarity
	layout   Layout
	cl       *timing.Classifier
	parser   *Parser
	emit     emitter
	log      Logger

	state State
	// hasEdge is false until the first edge defined the line level
	hasEdge  bool
	lastTick int64
	level    bool

	asm         Assembler
	bytes       []Byte
	blockBytes  int
	leaderStart int64
	bitStart    int64
}

var _ Handler = (*Session)(nil)

// NewSession validates the configuration and returns a session in state Idle.
// Annotations are sent to sink.
func NewSession(cfg Config, sink Sink) (*Session, error) {
	if sink == nil {
		return nil, fmt.Errorf("%w: no annotation sink", ErrInvalidConfig)
	}
	if err := cfg.Layout.Validate(); err != nil {
		return nil, err
	}
	cl, err := cfg.Timings.Resolve(cfg.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	s := &Session{
		polarity: cfg.Polarity,
		layout:   cfg.Layout,
		cl:       cl,
		parser:   NewParser(cfg.Layout),
		emit:     emitter{sink: sink},
		log:      cfg.Logger,
	}
	if s.log == nil {
		s.log = log.New(io.Discard, "", 0)
	}

	s.log.Printf("r05d session: layout %s, %v, %d Hz", s.layout.Name, s.polarity, cl.SampleRate())
	for _, c := range timing.Categories() {
		s.log.Printf("  %v", cl.Band(c))
	}
	return s, nil
}

// State returns the current phase.
func (s *Session) State() State {
	return s.state
}

// Classifier returns the resolved timing bands of the session.
func (s *Session) Classifier() *timing.Classifier {
	return s.cl
}

// OnEdge measures the segment that ended with edge e and advances the state
// machine.
func (s *Session) OnEdge(e port.Edge) {
	level := s.polarity.Logical(e.Level)
	if !s.hasEdge {
		s.hasEdge, s.lastTick, s.level = true, e.Tick, level
		return
	}

	if level == s.level {
		s.log.Printf("edge @%d: level unchanged (%s), ignored", e.Tick, port.Level(e.Level))
		return
	}

	seg := segment{high: s.level, start: s.lastTick, end: e.Tick}
	s.lastTick, s.level = e.Tick, level
	s.log.Printf("edge @%d: %s segment %d ticks, state %v", e.Tick, seg.level(), seg.duration(), s.state)

	if seg.end < seg.start {
		if s.state != StateIdle {
			s.fail(seg, "edge out of order")
		}
		return
	}

	if s.state != StateIdle && s.cl.Match(timing.IdleTimeout, seg.duration()) {
		s.timeout(seg.start)
		return
	}

	s.step(seg)
}

// CheckIdle is the host driven idle check: if the time since the last edge
// up to now is an idle timeout, the in-progress packet is terminated.
func (s *Session) CheckIdle(now int64) {
	if s.state == StateIdle || !s.hasEdge || now < s.lastTick {
		return
	}
	if s.cl.Match(timing.IdleTimeout, now-s.lastTick) {
		s.timeout(s.lastTick)
	}
}

// ExpireIdle checks for an idle timeout as if the timeout has elapsed since
// the last edge. It is used by hosts that can't map wall clock to ticks.
func (s *Session) ExpireIdle() {
	s.CheckIdle(s.lastTick + s.cl.Band(timing.IdleTimeout).Nominal)
}

// OnSessionEnd flushes the in-progress packet and resets the session.
func (s *Session) OnSessionEnd() {
	if s.state != StateIdle {
		s.log.Printf("session end in state %v", s.state)
		s.terminate(s.lastTick, s.lastTick)
	}
	s.reset()
	s.hasEdge = false
}

func (s *Session) step(seg segment) {
	d := seg.duration()

	switch s.state {
	case StateIdle:
		s.idle(seg)

	case StateAwaitingLeaderHigh:
		if !seg.high || !s.cl.Match(timing.LeaderHigh, d) {
			s.fail(seg, "invalid leader", timing.LeaderHigh)
			return
		}
		s.emit.leader(s.leaderStart, seg.end)
		s.blockBytes = 0
		s.setState(StateAwaitingBitLow)

	case StateAwaitingBlockLeader:
		if seg.high || !s.cl.Match(timing.LeaderLow, d) {
			s.fail(seg, "missing leader after separator", timing.LeaderLow)
			return
		}
		s.leaderStart = seg.start
		s.setState(StateAwaitingLeaderHigh)

	case StateAwaitingBitLow:
		if seg.high || !s.cl.Match(timing.BitLow, d) {
			s.fail(seg, "invalid bit", timing.BitLow)
			return
		}
		s.bitStart = seg.start
		if s.asm.Pending() == 0 && s.blockBytes >= s.layout.BlockBytes {
			s.setState(StateAwaitingSeparatorOrNextByte)
		} else {
			s.setState(StateAwaitingBitHigh)
		}

	case StateAwaitingBitHigh:
		c, ok := s.cl.Classify(d, timing.Bit0High, timing.Bit1High)
		if !seg.high || !ok {
			s.fail(seg, "invalid bit", timing.Bit0High, timing.Bit1High)
			return
		}
		s.bit(c, seg.end)

	case StateAwaitingSeparatorOrNextByte:
		c, ok := s.cl.Classify(d, timing.Bit0High, timing.Bit1High, timing.SeparatorHigh)
		if !seg.high || !ok {
			s.fail(seg, "invalid separator", timing.SeparatorHigh, timing.Bit0High, timing.Bit1High)
			return
		}
		if c != timing.SeparatorHigh {
			s.log.Printf("block of %d bytes continues without separator", s.blockBytes)
			s.blockBytes = 0
			s.bit(c, seg.end)
			return
		}
		s.emit.separator(s.bitStart, seg.end)
		s.blockBytes = 0
		if s.layout.LeaderPerBlock {
			s.setState(StateAwaitingBlockLeader)
		} else {
			s.setState(StateAwaitingBitLow)
		}

	default:
		s.log.Printf("unexpected state %v, reset", s.state)
		s.reset()
	}
}

// idle waits for the low half of a leader.
func (s *Session) idle(seg segment) {
	if seg.high || !s.cl.Match(timing.LeaderLow, seg.duration()) {
		return
	}
	s.leaderStart = seg.start
	s.setState(StateAwaitingLeaderHigh)
}

// bit completes a bit whose high half ended at end.
func (s *Session) bit(c timing.Category, end int64) {
	b := Bit{Start: s.bitStart, End: end}
	if c == timing.Bit1High {
		b.Value = 1
	}
	s.emit.bit(b)

	by, ok := s.asm.Push(b)
	if !ok {
		s.setState(StateAwaitingBitLow)
		return
	}

	s.emit.byte(by)
	s.bytes = append(s.bytes, by)
	s.blockBytes++
	s.log.Printf("byte %d: 0x%02X", len(s.bytes)-1, by.Value)

	if len(s.bytes) >= s.layout.FrameBytes() {
		s.finish()
		s.reset()
		return
	}
	s.setState(StateAwaitingBitLow)
}

// fail reports a timing mismatch, discards the packet and returns to Idle.
// A failing low segment that is a leader starts the next frame right away.
func (s *Session) fail(seg segment, reason string, expected ...timing.Category) {
	s.setState(StateError)

	want := "increasing ticks"
	if len(expected) > 0 {
		want = s.cl.Describe(expected...)
	}
	s.emit.warning(seg.start, seg.end, ErrTimingMismatch, "%s: %s %d ticks, expected %s",
		reason, seg.level(), seg.duration(), want)

	if len(s.bytes) > 0 || s.asm.Pending() > 0 {
		s.log.Printf("discarding %d bytes and %d bits", len(s.bytes), s.asm.Pending())
	}
	s.reset()

	if seg.end >= seg.start {
		s.idle(seg)
	}
}

// timeout terminates the packet of a line idle since tick at.
func (s *Session) timeout(at int64) {
	idle := s.cl.Band(timing.IdleTimeout)
	s.log.Printf("idle timeout @%d in state %v", at, s.state)
	s.terminate(at, at+idle.Nominal)
	s.reset()
}

// terminate parses the bytes received so far. A packet shorter than the
// layout accepts is reported as incomplete.
func (s *Session) terminate(start, end int64) {
	n := len(s.bytes)
	if !s.layout.Accepts(n) {
		s.emit.warning(start, end, ErrIncompletePacket, "%d of %d bytes (%d bits pending)",
			n, s.layout.FrameBytes(), s.asm.Pending())
	}
	if n > 0 {
		s.finish()
	}
}

// finish parses the collected bytes and emits the packet annotations.
func (s *Session) finish() {
	p := s.parser.Parse(s.bytes)
	for _, f := range p.Fields {
		s.emit.field(f)
	}
	s.emit.packet(p)
	s.log.Printf("packet %v", p)
}

// reset drops the in-progress packet and returns to Idle.
func (s *Session) reset() {
	s.setState(StateIdle)
	s.asm.Reset()
	s.bytes = nil
	s.blockBytes = 0
}

func (s *Session) setState(n State) {
	if n != s.state {
		s.log.Printf("state: %v -> %v", s.state, n)
	}
	s.state = n
}
