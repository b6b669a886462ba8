package app

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"

	"irdl/pkg/r05d"
)

// Payload is the mqtt message of a decoded packet.
type Payload struct {
	Time     time.Time         `json:"time"`
	Layout   string            `json:"layout"`
	Raw      string            `json:"raw"`
	Valid    bool              `json:"valid"`
	Complete bool              `json:"complete"`
	Summary  string            `json:"summary"`
	Values   map[string]int    `json:"values"`
	Texts    map[string]string `json:"texts"`
	Issues   []string          `json:"issues,omitempty"`
}

// NewPayload converts a packet received at t.
func NewPayload(t time.Time, p r05d.Packet) Payload {
	m := Payload{
		Time:     t,
		Layout:   p.Layout,
		Raw:      p.Raw,
		Valid:    p.Valid,
		Complete: p.Complete,
		Summary:  p.Summary,
		Values:   map[string]int{},
		Texts:    map[string]string{},
	}
	for _, f := range p.Fields {
		m.Values[f.Name] = f.Value
		m.Texts[f.Name] = f.Text
	}
	for _, is := range p.Issues {
		m.Issues = append(m.Issues, is.Err.Error())
	}
	return m
}

// cborMode keeps the sub second part of timestamps.
var cborMode, _ = cbor.EncOptions{Time: cbor.TimeRFC3339Nano, Sort: cbor.SortCanonical}.EncMode()

// Encode marshals the payload as json or cbor.
func Encode(format string, p Payload) ([]byte, error) {
	switch format {
	case "json", "":
		return json.MarshalIndent(p, "", "  ")
	case "cbor":
		return cborMode.Marshal(p)
	}
	return nil, fmt.Errorf("unknown payload format %q", format)
}
