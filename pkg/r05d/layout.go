package r05d

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidConfig is wrapped by every configuration error of a session.
var ErrInvalidConfig = errors.New("invalid decoder configuration")

// Layout is the frame structure of a protocol variant: how many bytes make a
// block, how often the block is sent, how blocks are separated and how the
// bytes are checked and interpreted.
type Layout struct {
	Name       string
	BlockBytes int
	Blocks     int
	// MinBytes is the smallest byte count accepted as a packet when the
	// transmission ends early. Zero means BlockBytes*Blocks.
	MinBytes int
	// LeaderPerBlock is set if every block after a separator starts with a
	// new leader.
	LeaderPerBlock bool
	Checksum       Checksum
	Interpret      Interpreter
}

// R05D is the layout of the R05D air conditioner remote: A A' B B' C C',
// sent twice with a separator and a new leader in between. A single block
// is accepted as a packet.
var R05D = Layout{
	Name:           "r05d",
	BlockBytes:     6,
	Blocks:         2,
	MinBytes:       6,
	LeaderPerBlock: true,
	Checksum:       Complement{},
	Interpret:      InterpretR05D,
}

// R05DSingle is the R05D layout for remotes that send the block only once.
var R05DSingle = Layout{
	Name:       "r05d-single",
	BlockBytes: 6,
	Blocks:     1,
	Checksum:   Complement{},
	Interpret:  InterpretR05D,
}

// Generic returns a single block layout of n bytes without checksum.
func Generic(n int) Layout {
	return Layout{
		Name:       "generic",
		BlockBytes: n,
		Blocks:     1,
		Checksum:   NoChecksum{},
		Interpret:  InterpretGeneric,
	}
}

// LayoutByName returns a predefined layout.
func LayoutByName(name string) (Layout, error) {
	switch strings.ToLower(name) {
	case "", "r05d":
		return R05D, nil
	case "r05d-single":
		return R05DSingle, nil
	case "generic":
		return Generic(4), nil
	}
	return Layout{}, fmt.Errorf("%w: unknown layout %q", ErrInvalidConfig, name)
}

// FrameBytes is the byte count of a complete packet.
func (l Layout) FrameBytes() int {
	return l.BlockBytes * l.Blocks
}

// Accepts reports whether n bytes form a packet: at least MinBytes and only
// whole blocks.
func (l Layout) Accepts(n int) bool {
	min := l.MinBytes
	if min == 0 {
		min = l.FrameBytes()
	}
	return n >= min && n%l.BlockBytes == 0
}

// Validate checks the layout.
func (l Layout) Validate() error {
	switch {
	case l.BlockBytes < 1:
		return fmt.Errorf("%w: layout %q: block bytes %d", ErrInvalidConfig, l.Name, l.BlockBytes)
	case l.Blocks < 1:
		return fmt.Errorf("%w: layout %q: blocks %d", ErrInvalidConfig, l.Name, l.Blocks)
	case l.MinBytes < 0 || l.MinBytes > l.FrameBytes():
		return fmt.Errorf("%w: layout %q: min bytes %d out of range", ErrInvalidConfig, l.Name, l.MinBytes)
	case l.Checksum == nil:
		return fmt.Errorf("%w: layout %q: no checksum rule", ErrInvalidConfig, l.Name)
	case l.Interpret == nil:
		return fmt.Errorf("%w: layout %q: no interpreter", ErrInvalidConfig, l.Name)
	}
	return nil
}

// Issue is a problem found while parsing a packet.
type Issue struct {
	Err   error
	Start int64
	End   int64
}

// MarshalText implements encoding.TextMarshaler.
func (i Issue) MarshalText() ([]byte, error) {
	return []byte(i.Err.Error()), nil
}

// Packet is the result of parsing the bytes of one transmission.
type Packet struct {
	Start    int64   `json:"start"`
	End      int64   `json:"end"`
	Layout   string  `json:"layout"`
	Bytes    []Byte  `json:"-"`
	Data     []byte  `json:"-"`
	Raw      string  `json:"raw"`
	Fields   []Field `json:"fields"`
	Checksum []byte  `json:"checksum"`
	Summary  string  `json:"summary"`
	Complete bool    `json:"complete"`
	Valid    bool    `json:"valid"`
	Issues   []Issue `json:"issues,omitempty"`
}

// Field returns the field with the given name.
func (p Packet) Field(name string) (Field, bool) {
	for _, f := range p.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

func (p Packet) String() string {
	state := "valid"
	switch {
	case !p.Complete:
		state = "incomplete"
	case !p.Valid:
		state = "invalid"
	}
	s := strings.ToUpper(p.Raw)
	if p.Summary != "" {
		s += " " + p.Summary
	}
	return s + " (" + state + ")"
}

// Parser interprets byte sequences according to a layout.
type Parser struct {
	layout Layout
}

// NewParser returns a parser for layout l.
func NewParser(l Layout) *Parser {
	return &Parser{layout: l}
}

// Parse maps the bytes to fields and verifies the checksum of every complete
// block. A checksum mismatch doesn't suppress the fields, it invalidates the
// packet. A short byte sequence yields the fields of the bytes received.
func (p *Parser) Parse(bytes []Byte) Packet {
	l := p.layout
	pkt := Packet{
		Layout:   l.Name,
		Bytes:    bytes,
		Data:     make([]byte, len(bytes)),
		Complete: l.Accepts(len(bytes)),
	}
	if len(bytes) == 0 {
		return pkt
	}
	pkt.Start, pkt.End = bytes[0].Start, bytes[len(bytes)-1].End

	for i, b := range bytes {
		pkt.Data[i] = b.Value
	}
	pkt.Raw = hex.EncodeToString(pkt.Data)

	valid := pkt.Complete
	fieldBlock := 0
	goodBlock := -1
	for blk := 0; blk*l.BlockBytes < len(bytes); blk++ {
		lo := blk * l.BlockBytes
		hi := lo + l.BlockBytes
		if hi > len(bytes) {
			// a block cut short is never checked
			valid = false
			break
		}

		block := pkt.Data[lo:hi]
		for i := range block {
			if l.Checksum.IsCheck(i, len(block)) {
				pkt.Checksum = append(pkt.Checksum, block[i])
			}
		}

		mm := l.Checksum.Verify(block)
		for _, m := range mm {
			b := bytes[lo+m.Index]
			pkt.Issues = append(pkt.Issues, Issue{
				Err:   fmt.Errorf("%w: block %d byte %d is 0x%02X, expected 0x%02X", ErrChecksumMismatch, blk, m.Index, m.Got, m.Want),
				Start: b.Start,
				End:   b.End,
			})
		}
		if len(mm) > 0 {
			valid = false
		} else if goodBlock < 0 {
			goodBlock = blk
		}

		if blk == 0 {
			continue
		}
		for i := range block {
			if l.Checksum.IsCheck(i, len(block)) || block[i] == pkt.Data[i] {
				continue
			}
			b := bytes[lo+i]
			pkt.Issues = append(pkt.Issues, Issue{
				Err:   fmt.Errorf("%w: block %d byte %d is 0x%02X, block 0 has 0x%02X", ErrRepeatMismatch, blk, i, block[i], pkt.Data[i]),
				Start: b.Start,
				End:   b.End,
			})
			valid = false
		}
	}
	if goodBlock > 0 {
		fieldBlock = goodBlock
	}

	lo := fieldBlock * l.BlockBytes
	hi := lo + l.BlockBytes
	if hi > len(bytes) {
		hi = len(bytes)
	}
	pkt.Fields, pkt.Summary = l.Interpret(bytes[lo:hi])
	pkt.Valid = valid
	return pkt
}
