package app

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"irdl/pkg/r05d"
)

var (
	spanStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	kindStyle = lipgloss.NewStyle().Width(12)

	kindColors = map[r05d.Kind]lipgloss.Color{
		r05d.KindBit:         "7",
		r05d.KindLeader:      "5",
		r05d.KindSeparator:   "5",
		r05d.KindByte:        "6",
		r05d.KindAddress:     "4",
		r05d.KindCommand:     "2",
		r05d.KindTemperature: "3",
		r05d.KindPacket:      "15",
		r05d.KindWarning:     "9",
	}
)

// Printer writes annotations as rows "start-end kind text".
type Printer struct {
	w     io.Writer
	kinds map[r05d.Kind]bool
	err   error
}

// NewPrinter writes to w. Without kinds every annotation is printed.
func NewPrinter(w io.Writer, kinds ...r05d.Kind) *Printer {
	p := &Printer{w: w}
	if len(kinds) > 0 {
		p.kinds = map[r05d.Kind]bool{}
		for _, k := range kinds {
			p.kinds[k] = true
		}
	}
	return p
}

// Annotate prints one annotation row.
func (p *Printer) Annotate(a r05d.Annotation) {
	if p.err != nil || (p.kinds != nil && !p.kinds[a.Kind]) {
		return
	}

	kind := kindStyle.Foreground(kindColors[a.Kind])
	if a.Kind == r05d.KindPacket || a.Kind == r05d.KindWarning {
		kind = kind.Bold(true)
	}
	_, p.err = fmt.Fprintf(p.w, "%s %s %s\n",
		spanStyle.Render(fmt.Sprintf("%10d-%-10d", a.Start, a.End)),
		kind.Render(a.Kind.String()),
		a.Text)
}

// Err returns the first write error.
func (p *Printer) Err() error {
	return p.err
}
