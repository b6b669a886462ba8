package raspberry

import (
	"errors"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestParseBias(t *testing.T) {
	c := qt.New(t)

	for _, s := range []string{"none", "pullup", "pulldown"} {
		b, err := ParseBias(s)
		c.Assert(err, qt.IsNil)
		c.Assert(b.String(), qt.Equals, s)
	}

	b, err := ParseBias("")
	c.Assert(err, qt.IsNil)
	c.Assert(b, qt.Equals, BiasNone)

	_, err = ParseBias("floating")
	c.Assert(errors.Is(err, ErrInvalidParam), qt.IsTrue)
}
