package app

import (
	"time"

	"github.com/womat/debug"

	"irdl/pkg/mqtt"
	"irdl/pkg/r05d"
)

var _ r05d.PacketSink = (*App)(nil)

// Annotate receives the annotations of the decoder session.
func (app *App) Annotate(a r05d.Annotation) {
	app.stats.Annotate(a)

	switch a.Kind {
	case r05d.KindWarning:
		debug.WarningLog.Printf("%v", a)
	case r05d.KindBit, r05d.KindByte:
		debug.TraceLog.Printf("%v", a)
	default:
		debug.DebugLog.Printf("%v", a)
	}
}

// Packet saves a decoded packet and sends it to the mqtt broker.
func (app *App) Packet(p r05d.Packet) {
	app.stats.Packet(p)
	rec := app.packets.Add(p)
	debug.InfoLog.Printf("packet %v", p)

	if !p.Valid && !app.config.MQTT.InvalidPackets {
		return
	}
	app.sendMQTT(app.config.MQTT.Topic, NewPayload(rec.Time, p))
}

// sendMQTT send message struct to the mqtt broker.
func (app *App) sendMQTT(topic string, message Payload) {
	if app.config.MQTT.Connection == "" {
		return
	}

	go func(t string, r Payload) {
		debug.TraceLog.Printf("prepare mqtt message %v %v", t, r)

		b, err := Encode(app.config.MQTT.Format, r)
		if err != nil {
			debug.ErrorLog.Printf("sendMQTT marshal: %v", err)
			return
		}

		select {
		case app.mqtt.C <- mqtt.Message{
			Qos:      0,
			Retained: app.config.MQTT.Retained,
			Topic:    t,
			Payload:  b,
		}:
		case <-time.After(5 * time.Second):
			debug.ErrorLog.Printf("mqtt queue blocked, message to %v dropped", t)
		}
	}(topic, message)
}
