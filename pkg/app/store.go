package app

import (
	"sync"
	"time"

	"irdl/pkg/r05d"
)

// Record is a decoded packet with its receive time.
type Record struct {
	Time time.Time `json:"time"`
	r05d.Packet
}

// Store keeps the last decoded packets.
type Store struct {
	sync.RWMutex
	size    int
	records []Record
	now     func() time.Time
}

// NewStore returns a store of size packets.
func NewStore(size int) *Store {
	if size < 1 {
		size = 1
	}
	return &Store{size: size, now: time.Now}
}

// Add saves a packet and drops the oldest one if the store is full.
func (s *Store) Add(p r05d.Packet) Record {
	s.Lock()
	defer s.Unlock()

	r := Record{Time: s.now(), Packet: p}
	if len(s.records) == s.size {
		copy(s.records, s.records[1:])
		s.records = s.records[:len(s.records)-1]
	}
	s.records = append(s.records, r)
	return r
}

// Last returns up to n packets, the newest last. n <= 0 returns all.
func (s *Store) Last(n int) []Record {
	s.RLock()
	defer s.RUnlock()

	if n <= 0 || n > len(s.records) {
		n = len(s.records)
	}
	out := make([]Record, n)
	copy(out, s.records[len(s.records)-n:])
	return out
}

// Latest returns the newest packet.
func (s *Store) Latest() (Record, bool) {
	s.RLock()
	defer s.RUnlock()

	if len(s.records) == 0 {
		return Record{}, false
	}
	return s.records[len(s.records)-1], true
}
