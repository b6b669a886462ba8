// Package timing is the reference table of the R05D pulse timings and the
// tolerance based classifier of measured durations.
//
// Protocol timing references:
//  https://www.sbprojects.net/knowledge/ir/nec.php
package timing

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// ErrInvalidTiming is wrapped by every error of a malformed timing table.
var ErrInvalidTiming = errors.New("invalid timing table")

// Category is a named timing of the protocol.
// The order of the constants is the priority order used to break ties.
type Category int

const (
	LeaderLow Category = iota
	LeaderHigh
	BitLow
	Bit0High
	Bit1High
	SeparatorHigh
	IdleTimeout

	numCategories
)

var categoryNames = [numCategories]string{
	"LeaderLow", "LeaderHigh", "BitLow", "Bit0High", "Bit1High", "SeparatorHigh", "IdleTimeout",
}

func (c Category) String() string {
	if c < 0 || c >= numCategories {
		return fmt.Sprintf("Category(%d)", int(c))
	}
	return categoryNames[c]
}

// Categories returns all categories in priority order.
func Categories() []Category {
	c := make([]Category, numCategories)
	for i := range c {
		c[i] = Category(i)
	}
	return c
}

// ParseCategory returns the category with the given (case insensitive) name.
func ParseCategory(s string) (Category, bool) {
	for i, n := range categoryNames {
		if strings.EqualFold(n, s) {
			return Category(i), true
		}
	}
	return 0, false
}

// Nominal R05D timings.
const (
	DefaultTolerance = 15.0 // percent

	NominalLeaderLow     = 4500 * time.Microsecond
	NominalLeaderHigh    = 4350 * time.Microsecond
	NominalBitLow        = 600 * time.Microsecond
	NominalBit0High      = 500 * time.Microsecond
	NominalBit1High      = 1600 * time.Microsecond
	NominalSeparatorHigh = 5110 * time.Microsecond
	NominalIdleTimeout   = 30 * time.Millisecond
)

// Spec is the nominal duration of a category and its tolerance.
// The tolerance is max(Margin, Nominal*Percent/100).
type Spec struct {
	Nominal time.Duration
	Percent float64
	Margin  time.Duration
	// AtLeast makes the band open upwards: every duration from
	// Nominal-tolerance on matches.
	AtLeast bool
}

// Table holds one Spec per category.
type Table [numCategories]Spec

// DefaultTable returns the R05D timings with the given tolerance in percent.
// IdleTimeout is a threshold and carries no tolerance.
func DefaultTable(percent float64) Table {
	return Table{
		LeaderLow:     {Nominal: NominalLeaderLow, Percent: percent},
		LeaderHigh:    {Nominal: NominalLeaderHigh, Percent: percent},
		BitLow:        {Nominal: NominalBitLow, Percent: percent},
		Bit0High:      {Nominal: NominalBit0High, Percent: percent},
		Bit1High:      {Nominal: NominalBit1High, Percent: percent},
		SeparatorHigh: {Nominal: NominalSeparatorHigh, Percent: percent},
		IdleTimeout:   {Nominal: NominalIdleTimeout, AtLeast: true},
	}
}

// Validate checks the table for values that can't be used for decoding.
func (t Table) Validate() error {
	for i, s := range t {
		c := Category(i)
		switch {
		case s.Nominal <= 0:
			return fmt.Errorf("%w: %v nominal %v must be positive", ErrInvalidTiming, c, s.Nominal)
		case s.Percent < 0 || s.Percent >= 100:
			return fmt.Errorf("%w: %v tolerance %v%% out of range [0,100)", ErrInvalidTiming, c, s.Percent)
		case s.Margin < 0:
			return fmt.Errorf("%w: %v margin %v is negative", ErrInvalidTiming, c, s.Margin)
		case s.Margin >= s.Nominal && !s.AtLeast:
			return fmt.Errorf("%w: %v margin %v swallows nominal %v", ErrInvalidTiming, c, s.Margin, s.Nominal)
		}
	}

	// the bit loop must be able to tell a data bit from an idle line
	if t[IdleTimeout].Nominal <= t[SeparatorHigh].Nominal || t[IdleTimeout].Nominal <= t[LeaderLow].Nominal {
		return fmt.Errorf("%w: idle timeout %v must exceed leader and separator", ErrInvalidTiming, t[IdleTimeout].Nominal)
	}
	return nil
}

// Resolve validates the table and converts it to tick based bands for the
// given sample rate (ticks per second).
func (t Table) Resolve(sampleRate int64) (*Classifier, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %d must be positive", ErrInvalidTiming, sampleRate)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}

	ticks := func(d time.Duration) int64 {
		return int64(math.Round(float64(d) * float64(sampleRate) / float64(time.Second)))
	}

	var c Classifier
	for i, s := range t {
		n := ticks(s.Nominal)
		if n < 1 {
			return nil, fmt.Errorf("%w: %v nominal %v is below one tick at %d Hz", ErrInvalidTiming, Category(i), s.Nominal, sampleRate)
		}
		tol := int64(math.Floor(float64(n) * s.Percent / 100))
		if m := ticks(s.Margin); m > tol {
			tol = m
		}
		c.bands[i] = Band{Category: Category(i), Nominal: n, Tolerance: tol, AtLeast: s.AtLeast}
	}
	c.rate = sampleRate
	return &c, nil
}

// Band is a resolved category in ticks.
type Band struct {
	Category  Category
	Nominal   int64
	Tolerance int64
	AtLeast   bool
}

// Match reports whether d (ticks) lies within the band.
func (b Band) Match(d int64) bool {
	if b.AtLeast {
		return d >= b.Nominal-b.Tolerance
	}
	return abs(d-b.Nominal) <= b.Tolerance
}

func (b Band) String() string {
	if b.AtLeast {
		return fmt.Sprintf("%v >=%d", b.Category, b.Nominal-b.Tolerance)
	}
	return fmt.Sprintf("%v %d..%d", b.Category, b.Nominal-b.Tolerance, b.Nominal+b.Tolerance)
}

// Classifier matches measured durations against the resolved bands.
type Classifier struct {
	bands [numCategories]Band
	rate  int64
}

// Band returns the resolved band of category c.
func (c *Classifier) Band(cat Category) Band {
	return c.bands[cat]
}

// SampleRate returns the tick rate the classifier was resolved for.
func (c *Classifier) SampleRate() int64 {
	return c.rate
}

// Match reports whether d (ticks) matches category cat.
func (c *Classifier) Match(cat Category, d int64) bool {
	return c.bands[cat].Match(d)
}

// Classify returns the candidate whose band contains d. If more than one
// candidate matches, the one with the smallest deviation from its nominal
// value wins; ties go to the category first in priority order.
// ok is false if no candidate matches.
func (c *Classifier) Classify(d int64, candidates ...Category) (cat Category, ok bool) {
	best := int64(-1)
	for _, cand := range candidates {
		b := c.bands[cand]
		if !b.Match(d) {
			continue
		}
		dev := abs(d - b.Nominal)
		if b.AtLeast && d > b.Nominal {
			dev = 0
		}
		if best < 0 || dev < best || (dev == best && cand < cat) {
			best, cat, ok = dev, cand, true
		}
	}
	return cat, ok
}

// Describe returns the bands of the candidates, e.g. for a warning text.
func (c *Classifier) Describe(candidates ...Category) string {
	s := make([]string, len(candidates))
	for i, cand := range candidates {
		s[i] = c.bands[cand].String()
	}
	return strings.Join(s, " or ")
}

// Duration converts ticks to a duration.
func (c *Classifier) Duration(ticks int64) time.Duration {
	return time.Duration(float64(ticks) * float64(time.Second) / float64(c.rate))
}

func abs(x int64) int64 {
	if x < 0 {
		return -x
	}
	return x
}
