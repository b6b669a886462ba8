package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/fxamacker/cbor/v2"

	"irdl/pkg/app/config"
	"irdl/pkg/r05d"
)

func cool26() r05d.Packet {
	return r05d.Packet{
		Start:  0,
		End:    110000,
		Layout: "r05d",
		Raw:    "b24dbf40d02fb24dbf40d02f",
		Fields: []r05d.Field{
			{Kind: r05d.KindAddress, Name: "address", Value: 0xB2, Text: "Address: 0xB2 (Generic R05D AC)"},
			{Kind: r05d.KindCommand, Name: "fan", Value: 5, Text: "Fan: Auto"},
			{Kind: r05d.KindTemperature, Name: "temperature", Value: 26, Text: "26°C"},
			{Kind: r05d.KindCommand, Name: "mode", Value: 0, Text: "Mode: Cool"},
		},
		Summary:  "Cool 26°C, fan Auto",
		Complete: true,
		Valid:    true,
	}
}

func corrupt() r05d.Packet {
	p := cool26()
	p.Valid = false
	p.Issues = []r05d.Issue{{Err: fmt.Errorf("%w: block 0 byte 5 is 0x2E, expected 0x2F", r05d.ErrChecksumMismatch)}}
	return p
}

func TestStore(t *testing.T) {
	c := qt.New(t)

	s := NewStore(2)
	_, ok := s.Latest()
	c.Assert(ok, qt.IsFalse)
	c.Assert(s.Last(0), qt.HasLen, 0)

	for i := 1; i <= 3; i++ {
		s.Add(r05d.Packet{Start: int64(i)})
	}

	all := s.Last(0)
	c.Assert(all, qt.HasLen, 2)
	c.Assert(all[0].Start, qt.Equals, int64(2))
	c.Assert(all[1].Start, qt.Equals, int64(3))

	last := s.Last(1)
	c.Assert(last, qt.HasLen, 1)
	c.Assert(last[0].Start, qt.Equals, int64(3))
	c.Assert(s.Last(10), qt.HasLen, 2)

	r, ok := s.Latest()
	c.Assert(ok, qt.IsTrue)
	c.Assert(r.Start, qt.Equals, int64(3))
}

func TestStatistics(t *testing.T) {
	c := qt.New(t)

	start := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	now := start
	st := &Statistics{now: func() time.Time { return now }}
	st.s.Start = start

	for i := 0; i < 12; i++ {
		st.Annotate(r05d.Annotation{Kind: r05d.KindByte})
	}
	st.Annotate(r05d.Annotation{Kind: r05d.KindBit})
	st.Annotate(r05d.Annotation{Kind: r05d.KindWarning, Err: fmt.Errorf("%w: invalid bit", r05d.ErrTimingMismatch)})
	st.Annotate(r05d.Annotation{Kind: r05d.KindWarning, Err: fmt.Errorf("%w: 3 of 12 bytes", r05d.ErrIncompletePacket)})
	st.Annotate(r05d.Annotation{Kind: r05d.KindWarning, Err: fmt.Errorf("%w: block 1", r05d.ErrRepeatMismatch)})
	st.Annotate(r05d.Annotation{Kind: r05d.KindWarning, Err: corrupt().Issues[0].Err})
	st.Packet(cool26())
	st.Packet(corrupt())

	now = start.Add(2 * time.Minute)
	s := st.Snapshot()
	c.Assert(s.Packets, qt.Equals, uint64(2))
	c.Assert(s.ValidPackets, qt.Equals, uint64(1))
	c.Assert(s.Bytes, qt.Equals, uint64(12))
	c.Assert(s.TimingErrors, qt.Equals, uint64(1))
	c.Assert(s.ChecksumErrors, qt.Equals, uint64(1))
	c.Assert(s.RepeatErrors, qt.Equals, uint64(1))
	c.Assert(s.IncompletePackets, qt.Equals, uint64(1))
	c.Assert(s.Errors(), qt.Equals, uint64(4))
	c.Assert(s.PacketRate, qt.Equals, 1.0)
	c.Assert(s.ErrorRate, qt.Equals, 2.0)
	c.Assert(s.LastPacket, qt.Equals, start)
	c.Assert(s.String(), qt.Equals,
		"packets: 2, valid: 1 (50.0%), bytes: 12, incomplete: 1, timing errors: 1, checksum errors: 1, repeat errors: 1")

	c.Assert(NewStatistics().Snapshot().String(), qt.Equals, "packets: 0, valid: 0, bytes: 0")
}

func TestPayloadJSON(t *testing.T) {
	c := qt.New(t)

	ts := time.Date(2026, 10, 1, 12, 30, 0, 123456789, time.UTC)
	b, err := Encode("json", NewPayload(ts, corrupt()))
	c.Assert(err, qt.IsNil)

	var got map[string]interface{}
	c.Assert(json.Unmarshal(b, &got), qt.IsNil)
	c.Assert(got["time"], qt.Equals, "2026-10-01T12:30:00.123456789Z")
	c.Assert(got["raw"], qt.Equals, "b24dbf40d02fb24dbf40d02f")
	c.Assert(got["valid"], qt.Equals, false)
	c.Assert(got["summary"], qt.Equals, "Cool 26°C, fan Auto")
	c.Assert(got["values"], qt.DeepEquals, map[string]interface{}{
		"address": 178.0, "fan": 5.0, "temperature": 26.0, "mode": 0.0,
	})
	c.Assert(got["texts"].(map[string]interface{})["mode"], qt.Equals, "Mode: Cool")
	c.Assert(got["issues"], qt.DeepEquals, []interface{}{"checksum mismatch: block 0 byte 5 is 0x2E, expected 0x2F"})

	b, err = Encode("json", NewPayload(ts, cool26()))
	c.Assert(err, qt.IsNil)
	c.Assert(strings.Contains(string(b), "issues"), qt.IsFalse)
}

func TestPayloadCBOR(t *testing.T) {
	c := qt.New(t)

	ts := time.Date(2026, 10, 1, 12, 30, 0, 5000, time.UTC)
	b, err := Encode("cbor", NewPayload(ts, cool26()))
	c.Assert(err, qt.IsNil)

	var got Payload
	c.Assert(cbor.Unmarshal(b, &got), qt.IsNil)
	c.Assert(got.Time.Equal(ts), qt.IsTrue)
	c.Assert(got.Layout, qt.Equals, "r05d")
	c.Assert(got.Valid, qt.IsTrue)
	c.Assert(got.Values["temperature"], qt.Equals, 26)
	c.Assert(got.Texts["address"], qt.Equals, "Address: 0xB2 (Generic R05D AC)")

	_, err = Encode("xml", Payload{})
	c.Assert(err, qt.ErrorMatches, `unknown payload format "xml"`)
}

func TestPrinter(t *testing.T) {
	c := qt.New(t)

	var buf bytes.Buffer
	p := NewPrinter(&buf, r05d.KindPacket, r05d.KindWarning)
	p.Annotate(r05d.Annotation{Kind: r05d.KindBit, Start: 4500, End: 5600, Text: "1"})
	p.Annotate(r05d.Annotation{Kind: r05d.KindPacket, Start: 0, End: 110000, Text: "B24DBF40D02FB24DBF40D02F Cool 26°C, fan Auto (valid)"})
	c.Assert(p.Err(), qt.IsNil)

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	c.Assert(lines, qt.HasLen, 1)
	c.Assert(lines[0], qt.Contains, "110000")
	c.Assert(lines[0], qt.Contains, "packet")
	c.Assert(lines[0], qt.Contains, "Cool 26°C, fan Auto (valid)")

	buf.Reset()
	p = NewPrinter(&buf)
	p.Annotate(r05d.Annotation{Kind: r05d.KindBit, Start: 4500, End: 5600, Text: "1"})
	c.Assert(buf.String(), qt.Contains, "bit")
}

func newTestApp(c *qt.C) *App {
	cfg := config.NewConfig()
	c.Assert(cfg.Resolve(), qt.IsNil)
	app, err := New(cfg)
	c.Assert(err, qt.IsNil)
	app.initDefaultRoutes()
	return app
}

func get(c *qt.C, app *App, target string, v interface{}) int {
	resp, err := app.web.Test(httptest.NewRequest(http.MethodGet, target, nil))
	c.Assert(err, qt.IsNil)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	c.Assert(err, qt.IsNil)
	if resp.StatusCode == http.StatusOK && v != nil {
		c.Assert(json.Unmarshal(body, v), qt.IsNil)
	}
	return resp.StatusCode
}

func TestHandlers(t *testing.T) {
	c := qt.New(t)
	app := newTestApp(c)

	c.Assert(get(c, app, "/packets/latest", nil), qt.Equals, http.StatusNotFound)

	app.Annotate(r05d.Annotation{Kind: r05d.KindByte, Text: "0xB2"})
	app.Packet(cool26())
	app.Packet(corrupt())

	var packets []map[string]interface{}
	c.Assert(get(c, app, "/packets", &packets), qt.Equals, http.StatusOK)
	c.Assert(packets, qt.HasLen, 2)
	c.Assert(packets[0]["valid"], qt.Equals, true)
	c.Assert(packets[0]["summary"], qt.Equals, "Cool 26°C, fan Auto")
	c.Assert(packets[1]["issues"], qt.DeepEquals, []interface{}{"checksum mismatch: block 0 byte 5 is 0x2E, expected 0x2F"})

	c.Assert(get(c, app, "/packets?n=1", &packets), qt.Equals, http.StatusOK)
	c.Assert(packets, qt.HasLen, 1)
	c.Assert(packets[0]["valid"], qt.Equals, false)
	c.Assert(get(c, app, "/packets?n=x", nil), qt.Equals, http.StatusBadRequest)

	var latest map[string]interface{}
	c.Assert(get(c, app, "/packets/latest", &latest), qt.Equals, http.StatusOK)
	c.Assert(latest["raw"], qt.Equals, "b24dbf40d02fb24dbf40d02f")
	c.Assert(latest["time"], qt.Not(qt.Equals), "")

	var stats Stats
	c.Assert(get(c, app, "/stats", &stats), qt.Equals, http.StatusOK)
	c.Assert(stats.Packets, qt.Equals, uint64(2))
	c.Assert(stats.ValidPackets, qt.Equals, uint64(1))
	c.Assert(stats.Bytes, qt.Equals, uint64(1))

	var version map[string]string
	c.Assert(get(c, app, "/version", &version), qt.Equals, http.StatusOK)
	c.Assert(version["description"], qt.Equals, "irdl")
	c.Assert(version["about"], qt.Equals, "irdl V1.6.10")

	var health map[string]interface{}
	c.Assert(get(c, app, "/health", &health), qt.Equals, http.StatusOK)
	c.Assert(health["Running"], qt.Equals, false)
}

func TestDisabledWebservice(t *testing.T) {
	c := qt.New(t)

	cfg := config.NewConfig()
	c.Assert(cfg.Resolve(), qt.IsNil)
	cfg.Webserver.Webservices["stats"] = false
	app, err := New(cfg)
	c.Assert(err, qt.IsNil)
	app.initDefaultRoutes()

	c.Assert(get(c, app, "/stats", nil), qt.Equals, http.StatusNotFound)
	c.Assert(get(c, app, "/packets", nil), qt.Equals, http.StatusOK)
}
