package r05d

import "fmt"

// R05D field tables. The data bytes of a block are A (address), B (fan speed
// in bits 7..5) and C (temperature in bits 7..4, mode in bits 3..2); each is
// followed by its complement.
const (
	posAddress = 0
	posFan     = 2
	posTemp    = 4

	tempNone = 0b1110
	tempBase = 17
)

// Addresses holds the known device addresses.
var Addresses = map[byte]string{
	0xB2: "Generic R05D AC",
}

// FanSpeeds maps bits 7..5 of B.
var FanSpeeds = map[byte]string{
	0b101: "Auto",
	0b001: "High",
	0b010: "Med",
	0b100: "Low",
	0b000: "Const",
	0b011: "Power off",
}

// Modes maps bits 3..2 of C.
var Modes = map[byte]string{
	0b10: "Auto",
	0b00: "Cool",
	0b01: "Dry",
	0b11: "Heat",
}

// temperature codes are the Gray code of (degC - 17)
var grayOffsets = map[byte]int{
	0b0000: 0, 0b0001: 1, 0b0011: 2, 0b0010: 3,
	0b0110: 4, 0b0111: 5, 0b0101: 6, 0b0100: 7,
	0b1100: 8, 0b1101: 9, 0b1001: 10, 0b1000: 11,
	0b1010: 12, 0b1011: 13,
}

// Temperature decodes the temperature code (bits 7..4 of C).
// ok is false for the "no temperature" code and unknown codes.
func Temperature(code byte) (celsius int, ok bool) {
	off, ok := grayOffsets[code&0x0f]
	return off + tempBase, ok
}

// Field is a semantic value decoded from bytes of a packet.
type Field struct {
	Kind  Kind   `json:"kind"`
	Name  string `json:"name"`
	Value int    `json:"value"`
	Text  string `json:"text"`
	Start int64  `json:"start"`
	End   int64  `json:"end"`
}

// Interpreter maps the bytes of one block to fields and a one line summary.
// The block may be shorter than the layout when a packet was cut short.
type Interpreter func(block []Byte) (fields []Field, summary string)

// InterpretR05D decodes an R05D block.
func InterpretR05D(block []Byte) ([]Field, string) {
	var fields []Field
	var mode, fan string
	temp := -1

	if len(block) > posAddress {
		a := block[posAddress]
		text := fmt.Sprintf("Address: 0x%02X", a.Value)
		if name, ok := Addresses[a.Value]; ok {
			text += " (" + name + ")"
		}
		fields = append(fields, Field{Kind: KindAddress, Name: "address", Value: int(a.Value), Text: text, Start: a.Start, End: a.End})
	}

	if len(block) > posFan {
		b := block[posFan]
		code := b.Value >> 5
		var ok bool
		if fan, ok = FanSpeeds[code]; !ok {
			fan = fmt.Sprintf("0b%03b", code)
		}
		start, end := b.Span(0, 2)
		fields = append(fields, Field{Kind: KindCommand, Name: "fan", Value: int(code), Text: "Fan: " + fan, Start: start, End: end})
	}

	if len(block) > posTemp {
		c := block[posTemp]
		tc := c.Value >> 4
		mc := (c.Value >> 2) & 0b11

		if t, ok := Temperature(tc); ok {
			temp = t
			start, end := c.Span(0, 3)
			fields = append(fields, Field{Kind: KindTemperature, Name: "temperature", Value: t, Text: fmt.Sprintf("%d°C", t), Start: start, End: end})
		}

		if tc == tempNone {
			// no temperature: fan only mode
			mode = "Fan"
		} else {
			mode = Modes[mc]
		}
		start, end := c.Span(4, 5)
		fields = append(fields, Field{Kind: KindCommand, Name: "mode", Value: int(mc), Text: "Mode: " + mode, Start: start, End: end})
	}

	var summary string
	switch {
	case fan == "Power off":
		summary = "Power off"
	case mode != "" && temp >= 0:
		summary = fmt.Sprintf("%s %d°C, fan %s", mode, temp, fan)
	case mode != "":
		summary = fmt.Sprintf("%s, fan %s", mode, fan)
	case fan != "":
		summary = "fan " + fan
	}
	return fields, summary
}

// InterpretGeneric takes byte 0 as address and byte 1 as command.
func InterpretGeneric(block []Byte) ([]Field, string) {
	var fields []Field
	var summary string
	if len(block) > 0 {
		a := block[0]
		fields = append(fields, Field{Kind: KindAddress, Name: "address", Value: int(a.Value), Text: fmt.Sprintf("Address: 0x%02X", a.Value), Start: a.Start, End: a.End})
		summary = fmt.Sprintf("address 0x%02X", a.Value)
	}
	if len(block) > 1 {
		c := block[1]
		fields = append(fields, Field{Kind: KindCommand, Name: "command", Value: int(c.Value), Text: fmt.Sprintf("Command: 0x%02X", c.Value), Start: c.Start, End: c.End})
		summary += fmt.Sprintf(" command 0x%02X", c.Value)
	}
	return fields, summary
}
