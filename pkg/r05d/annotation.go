package r05d

import (
	"errors"
	"fmt"
)

var (
	// ErrTimingMismatch is the cause of a warning for a duration that matches
	// no expected timing of the current phase.
	ErrTimingMismatch = errors.New("timing mismatch")
	// ErrIncompletePacket is the cause of a warning for a packet cut short by
	// an idle timeout or the end of the session.
	ErrIncompletePacket = errors.New("incomplete packet")
	// ErrChecksumMismatch is the cause of a warning for a block whose check
	// bytes disagree with its data bytes.
	ErrChecksumMismatch = errors.New("checksum mismatch")
	// ErrRepeatMismatch is the cause of a warning for a repeated block that
	// differs from the first one.
	ErrRepeatMismatch = errors.New("repeat mismatch")
)

// Kind is the category of an annotation.
type Kind int

const (
	KindBit Kind = iota
	KindLeader
	KindSeparator
	KindByte
	KindAddress
	KindCommand
	KindTemperature
	KindPacket
	KindWarning
)

var kindNames = [...]string{"bit", "leader", "separator", "byte", "address", "command", "temperature", "packet", "warning"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind returns the kind with the given name.
func ParseKind(s string) (Kind, bool) {
	for i, n := range kindNames {
		if n == s {
			return Kind(i), true
		}
	}
	return 0, false
}

// MarshalText implements encoding.TextMarshaler, so json/cbor output carries
// the name of the kind.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Annotation is one record of the decoder output.
type Annotation struct {
	Kind  Kind   `json:"kind"`
	Start int64  `json:"start"`
	End   int64  `json:"end"`
	Text  string `json:"text"`
	// Err is set for warnings and wraps one of the ErrXxx causes.
	Err error `json:"-"`
}

func (a Annotation) String() string {
	return fmt.Sprintf("%d-%d %v: %s", a.Start, a.End, a.Kind, a.Text)
}

// Sink receives the annotations of a session in emission order.
type Sink interface {
	Annotate(a Annotation)
}

// PacketSink is a Sink that also wants every parsed packet.
type PacketSink interface {
	Sink
	Packet(p Packet)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(Annotation)

// Annotate calls f(a).
func (f SinkFunc) Annotate(a Annotation) { f(a) }

type multiSink []Sink

// MultiSink returns a sink that duplicates annotations and packets to all
// sinks. Packets are passed to the sinks that implement PacketSink.
func MultiSink(sinks ...Sink) PacketSink {
	return multiSink(sinks)
}

func (m multiSink) Annotate(a Annotation) {
	for _, s := range m {
		s.Annotate(a)
	}
}

func (m multiSink) Packet(p Packet) {
	for _, s := range m {
		if ps, ok := s.(PacketSink); ok {
			ps.Packet(p)
		}
	}
}

// emitter translates decoder events to annotations.
type emitter struct {
	sink Sink
}

func (e emitter) put(k Kind, start, end int64, text string) {
	e.sink.Annotate(Annotation{Kind: k, Start: start, End: end, Text: text})
}

func (e emitter) bit(b Bit) {
	e.put(KindBit, b.Start, b.End, fmt.Sprint(b.Value))
}

func (e emitter) byte(b Byte) {
	e.put(KindByte, b.Start, b.End, fmt.Sprintf("0x%02X", b.Value))
}

func (e emitter) leader(start, end int64) {
	e.put(KindLeader, start, end, "Leader")
}

func (e emitter) separator(start, end int64) {
	e.put(KindSeparator, start, end, "Separator")
}

func (e emitter) field(f Field) {
	e.put(f.Kind, f.Start, f.End, f.Text)
}

func (e emitter) warning(start, end int64, cause error, format string, v ...interface{}) {
	err := fmt.Errorf("%w: "+format, append([]interface{}{cause}, v...)...)
	e.sink.Annotate(Annotation{Kind: KindWarning, Start: start, End: end, Text: err.Error(), Err: err})
}

func (e emitter) packet(p Packet) {
	e.put(KindPacket, p.Start, p.End, p.String())
	for _, is := range p.Issues {
		e.sink.Annotate(Annotation{Kind: KindWarning, Start: is.Start, End: is.End, Text: is.Err.Error(), Err: is.Err})
	}
	if ps, ok := e.sink.(PacketSink); ok {
		ps.Packet(p)
	}
}
