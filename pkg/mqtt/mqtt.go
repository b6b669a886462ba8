// Package mqtt publishes messages to an mqtt broker. Messages are queued on
// a channel and published in the background.
package mqtt

import (
	"errors"
	"fmt"
	"sync"
	"time"

	mqttlib "github.com/eclipse/paho.mqtt.golang"
	"github.com/womat/debug"
)

// quiesce is the specified number of milliseconds to wait for existing work to be completed.
const (
	quiesce        = 250
	connectTimeout = 10 * time.Second
)

// ErrTimeout is returned if the broker doesn't answer in time.
var ErrTimeout = errors.New("mqtt timeout")

// client is the part of the paho client used by the Handler.
type client interface {
	Connect() mqttlib.Token
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) mqttlib.Token
	Disconnect(quiesce uint)
}

// Handler contains the handler of the mqtt broker.
type Handler struct {
	handler client
	// C is the channel to service the mqtt message
	// sending a message to channel C will send the message.
	C chan Message

	pending sync.WaitGroup
}

// Message contains the properties of the mqtt message.
type Message struct {
	Topic    string
	Payload  []byte
	Qos      byte
	Retained bool
}

// Options define the broker connection.
type Options struct {
	// Broker is the URL of the broker, e.g. tcp://127.0.0.1:1883.
	// If no broker is defined, no mqtt messages are sent.
	Broker   string
	ClientID string
	Username string
	Password string
	// StatusTopic receives a retained "online" after connecting and
	// "offline" as last will.
	StatusTopic string
}

// New generate a new mqtt broker client.
func New() *Handler {
	return &Handler{
		C: make(chan Message),
	}
}

// Connect connects to the mqtt broker.
func (m *Handler) Connect(o Options) error {
	if o.Broker == "" {
		return nil
	}

	opts := mqttlib.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(connectTimeout)
	if o.Username != "" {
		opts.SetUsername(o.Username).SetPassword(o.Password)
	}
	if o.StatusTopic != "" {
		opts.SetWill(o.StatusTopic, "offline", 1, true)
		opts.SetOnConnectHandler(func(c mqttlib.Client) {
			debug.InfoLog.Printf("connected to mqtt broker %s", o.Broker)
			c.Publish(o.StatusTopic, 1, true, "online")
		})
	}

	m.handler = mqttlib.NewClient(opts)
	return m.ReConnect()
}

// ReConnect reconnects to the defined mqtt broker.
func (m *Handler) ReConnect() error {
	t := m.handler.Connect()
	if !t.WaitTimeout(connectTimeout) {
		return fmt.Errorf("connect: %w", ErrTimeout)
	}
	return t.Error()
}

// Disconnect waits for pending messages and ends the connection to the broker.
func (m *Handler) Disconnect() error {
	m.pending.Wait()
	if m.handler == nil {
		return nil
	}

	m.handler.Disconnect(quiesce)
	return nil
}

// Service listen to a message on the channel C and send the message to mqtt.
// If no handler or topic is defined, the message will be ignored.
// Service returns when C is closed.
func (m *Handler) Service() {
	for d := range m.C {
		if m.handler == nil || d.Topic == "" {
			continue
		}

		m.pending.Add(1)
		go func(msg Message) {
			defer m.pending.Done()
			_ = m.publish(msg)
		}(d)
	}
}

func (m *Handler) publish(msg Message) error {
	if !m.handler.IsConnected() {
		debug.DebugLog.Printf("mqtt broker isn't connected, reconnect it")

		if err := m.ReConnect(); err != nil {
			debug.ErrorLog.Printf("can't reconnect to mqtt broker %v", err)
			return err
		}
	}

	debug.DebugLog.Printf("publishing %v bytes to topic %v", len(msg.Payload), msg.Topic)
	t := m.handler.Publish(msg.Topic, msg.Qos, msg.Retained, msg.Payload)

	// the asynchronous nature of this library makes it easy to forget to check for errors.
	<-t.Done()
	if err := t.Error(); err != nil {
		debug.ErrorLog.Printf("publishing topic %v: %v", msg.Topic, err)
		return err
	}
	return nil
}
