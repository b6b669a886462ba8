// Package port holds the definition of a physical line and its edges.
package port

import "time"

// Edge is a level change on the IR line.
// Tick is a monotonic tick count; the tick rate is defined by the producer
// (sample rate of a capture, microseconds for live gpio sources).
type Edge struct {
	// Tick indicates the time the edge was detected.
	Tick int64
	// Level is the raw line level after the edge (true = high).
	Level bool
}

// Level returns the printable representation of a raw line level.
func Level(l bool) string {
	if l {
		return "high"
	}
	return "low"
}

// Polarity defines how raw line levels map to logical levels.
//
// Note that for active low receivers (the usual IR demodulator) a carrier
// burst pulls the line low.
type Polarity int

const (
	// ActiveLow keeps the raw level as logical level.
	ActiveLow Polarity = iota
	// ActiveHigh inverts the raw level.
	ActiveHigh
)

// ParsePolarity converts the configuration value to a Polarity.
func ParsePolarity(s string) (Polarity, bool) {
	switch s {
	case "", "active-low":
		return ActiveLow, true
	case "active-high":
		return ActiveHigh, true
	}
	return ActiveLow, false
}

func (p Polarity) String() string {
	if p == ActiveHigh {
		return "active-high"
	}
	return "active-low"
}

// Logical maps a raw level to the logical level.
func (p Polarity) Logical(raw bool) bool {
	if p == ActiveHigh {
		return !raw
	}
	return raw
}

// Microseconds is the tick rate used by live sources.
const Microseconds = int64(time.Second / time.Microsecond)

// Tick converts a duration since an arbitrary origin to microsecond ticks.
func Tick(d time.Duration) int64 {
	return d.Microseconds()
}
