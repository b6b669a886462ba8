package app

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"irdl/pkg/r05d"
)

// Stats is a snapshot of the decoder statistics.
type Stats struct {
	Start      time.Time `json:"start"`
	LastPacket time.Time `json:"lastPacket"`

	Packets           uint64 `json:"packets"`
	ValidPackets      uint64 `json:"validPackets"`
	IncompletePackets uint64 `json:"incompletePackets"`
	Bytes             uint64 `json:"bytes"`

	TimingErrors   uint64 `json:"timingErrors"`
	ChecksumErrors uint64 `json:"checksumErrors"`
	RepeatErrors   uint64 `json:"repeatErrors"`

	// PacketRate and ErrorRate are per minute.
	PacketRate float64 `json:"packetRate"`
	ErrorRate  float64 `json:"errorRate"`
}

// Errors is the number of decoder warnings.
func (s Stats) Errors() uint64 {
	return s.TimingErrors + s.ChecksumErrors + s.RepeatErrors + s.IncompletePackets
}

// String returns a formatted statistics summary.
func (s Stats) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "packets: %d, valid: %d", s.Packets, s.ValidPackets)
	if s.Packets > 0 {
		fmt.Fprintf(&b, " (%.1f%%)", float64(s.ValidPackets)*100/float64(s.Packets))
	}
	fmt.Fprintf(&b, ", bytes: %d", s.Bytes)

	for _, c := range []struct {
		name string
		n    uint64
	}{
		{"incomplete", s.IncompletePackets},
		{"timing errors", s.TimingErrors},
		{"checksum errors", s.ChecksumErrors},
		{"repeat errors", s.RepeatErrors},
	} {
		if c.n > 0 {
			fmt.Fprintf(&b, ", %s: %d", c.name, c.n)
		}
	}
	return b.String()
}

// Statistics counts packets and decoder warnings.
type Statistics struct {
	mu  sync.Mutex
	s   Stats
	now func() time.Time
}

// NewStatistics creates a new statistics tracker.
func NewStatistics() *Statistics {
	st := &Statistics{now: time.Now}
	st.s.Start = st.now()
	return st
}

// Annotate counts bytes and warnings by cause.
func (st *Statistics) Annotate(a r05d.Annotation) {
	st.mu.Lock()
	defer st.mu.Unlock()

	switch a.Kind {
	case r05d.KindByte:
		st.s.Bytes++
	case r05d.KindWarning:
		switch {
		case errors.Is(a.Err, r05d.ErrTimingMismatch):
			st.s.TimingErrors++
		case errors.Is(a.Err, r05d.ErrChecksumMismatch):
			st.s.ChecksumErrors++
		case errors.Is(a.Err, r05d.ErrRepeatMismatch):
			st.s.RepeatErrors++
		case errors.Is(a.Err, r05d.ErrIncompletePacket):
			st.s.IncompletePackets++
		}
	}
}

// Packet counts a parsed packet.
func (st *Statistics) Packet(p r05d.Packet) {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.s.Packets++
	if p.Valid {
		st.s.ValidPackets++
	}
	st.s.LastPacket = st.now()
}

// Snapshot returns the current statistics with the rates calculated.
func (st *Statistics) Snapshot() Stats {
	st.mu.Lock()
	defer st.mu.Unlock()

	s := st.s
	if elapsed := st.now().Sub(s.Start).Minutes(); elapsed > 0 {
		s.PacketRate = float64(s.Packets) / elapsed
		s.ErrorRate = float64(s.Errors()) / elapsed
	}
	return s
}
