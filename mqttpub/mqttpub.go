// Package mqttpub publishes diagnostics and frames to an MQTT broker
// using Eclipse Paho. It implements diag.Publisher; publish failures are
// swallowed, the bridge is a best-effort sniffer and must never stall on
// its transport.
package mqttpub

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/Kustonium/esphome-wmbus-bridge-rawonly/wmbus"
)

// Options configure the broker connection.
type Options struct {
	Broker   string
	Username string
	Password string

	// ClientIDPrefix defaults to "wmbusbridge".
	ClientIDPrefix string
}

type Client struct {
	client mqtt.Client
	log    *logrus.Entry
}

func clientID(prefix string) string {
	if prefix == "" {
		prefix = "wmbusbridge"
	}
	b := make([]byte, 4)
	rand.Read(b)
	return prefix + "_" + hex.EncodeToString(b)
}

// Connect dials the broker. The connection auto-reconnects for the life
// of the process.
func Connect(opts Options, log *logrus.Logger) (*Client, error) {
	entry := log.WithField("component", "mqtt")

	mo := mqtt.NewClientOptions()
	mo.AddBroker(opts.Broker)
	mo.SetClientID(clientID(opts.ClientIDPrefix))
	if opts.Username != "" {
		mo.SetUsername(opts.Username)
	}
	if opts.Password != "" {
		mo.SetPassword(opts.Password)
	}

	mo.SetAutoReconnect(true)
	mo.SetConnectRetry(true)
	mo.SetConnectRetryInterval(10 * time.Second)
	mo.SetKeepAlive(60 * time.Second)
	mo.SetPingTimeout(10 * time.Second)

	mo.SetOnConnectHandler(func(mqtt.Client) {
		entry.WithField("broker", opts.Broker).Info("connected")
	})
	mo.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		entry.WithError(err).Warn("connection lost")
	})

	c := mqtt.NewClient(mo)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, errors.Wrap(token.Error(), "connect to MQTT broker")
	}

	return &Client{client: c, log: entry}, nil
}

// Publish ships a payload at QoS 0 without waiting for the token: a
// dispatcher invocation must stay non-blocking. Errors surface in the
// debug log only.
func (c *Client) Publish(topic string, payload []byte) {
	token := c.client.Publish(topic, 0, false, payload)
	go func() {
		if token.Wait() && token.Error() != nil {
			c.log.WithError(token.Error()).WithField("topic", topic).Debug("publish failed")
		}
	}()
}

func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}

func (c *Client) Close() {
	c.client.Disconnect(250)
}

// FrameHandler returns a bridge handler that publishes every accepted
// frame to topic as an rtl_wmbus line and claims it.
func FrameHandler(c *Client, topic string) func(*wmbus.Frame) {
	return func(f *wmbus.Frame) {
		c.Publish(topic, []byte(f.RTLWMBus(time.Now())))
		f.MarkHandled()
	}
}
