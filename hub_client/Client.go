package hub_client

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pkg/errors"

	"pubhub/common/connection"
	"pubhub/common/logger"
	"pubhub/hub_common/messages"
	"pubhub/tcp"
)

// Client is the thin client API around the hub protocol: connect, typed
// sends, receive/notify callbacks, disconnect. A GUI (or any other shell)
// plugs into the three callbacks; this package knows nothing about it.
type Client struct {
	serverAddr string
	serverPort int
	clientId   string
	tcpClient  *tcp.TCPClient
	conn       connection.IConnection
	codec      messages.IEnvelopeCodec
	onMessage  func(topic string, payload json.RawMessage)
	onStatus   func(entries []messages.StatusEntry)
	onLog      func(line string)
	logger     *logger.SimpleLogger
}

type IClient interface {
	Connect() error
	RegisterProducer(topicName string) error
	RegisterSubscriber(topicName string) error
	Produce(topicName string, payload interface{}) error
	WithdrawProducer(topicName string) error
	WithdrawSubscriber(topicName string) error
	RequestStatus() error
	Disconnect() error
	OnMessage(cb func(topic string, payload json.RawMessage))
	OnStatus(cb func(entries []messages.StatusEntry))
	OnLog(cb func(line string))
}

func NewClient(serverAddr string, serverPort int, clientId string) *Client {
	clientLogger := logger.New(os.Stdout, fmt.Sprintf("[Client-%s]", clientId), true)
	return &Client{
		serverAddr: serverAddr,
		serverPort: serverPort,
		clientId:   clientId,
		tcpClient:  tcp.NewTCPClient(serverAddr, serverPort, clientLogger),
		codec:      messages.NewJSONEnvelopeCodec(),
		logger:     clientLogger,
	}
}

func (c *Client) OnMessage(cb func(topic string, payload json.RawMessage)) {
	c.onMessage = cb
}

func (c *Client) OnStatus(cb func(entries []messages.StatusEntry)) {
	c.onStatus = cb
}

func (c *Client) OnLog(cb func(line string)) {
	c.onLog = cb
}

// Connect dials the hub and starts the inbound read loop on its own
// goroutine; frames arrive through the registered callbacks.
func (c *Client) Connect() error {
	c.tcpClient.OnMessage(c.handleFrame)
	c.tcpClient.OnDisconnect(func(err error) {
		c.log(fmt.Sprintf("Disconnected from server %s:%d", c.serverAddr, c.serverPort))
	})
	if err := c.tcpClient.Connect(); err != nil {
		return errors.Wrap(err, "unable to connect to hub")
	}
	c.conn = c.tcpClient.Connection()
	c.log(fmt.Sprintf("Connected to server %s:%d as %s", c.serverAddr, c.serverPort, c.clientId))
	go c.conn.ReadLoop()
	return nil
}

func (c *Client) RegisterProducer(topicName string) error {
	return c.send(messages.TypeRegister, topicName, messages.ModeProducer, emptyPayload())
}

func (c *Client) RegisterSubscriber(topicName string) error {
	return c.send(messages.TypeRegister, topicName, messages.ModeSubscriber, emptyPayload())
}

func (c *Client) Produce(topicName string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "unable to encode payload")
	}
	return c.send(messages.TypeMessage, topicName, messages.ModeProducer, raw)
}

func (c *Client) WithdrawProducer(topicName string) error {
	return c.send(messages.TypeWithdraw, topicName, messages.ModeProducer, emptyPayload())
}

func (c *Client) WithdrawSubscriber(topicName string) error {
	return c.send(messages.TypeWithdraw, topicName, messages.ModeSubscriber, emptyPayload())
}

// RequestStatus asks the hub for its topic table; the reply lands in the
// status callback. The "logs" topic name marks the request as bookkeeping.
func (c *Client) RequestStatus() error {
	return c.send(messages.TypeStatus, "logs", messages.ModeNone, emptyPayload())
}

func (c *Client) Disconnect() error {
	if c.conn == nil {
		return errors.New("no connection has been established yet")
	}
	return c.conn.Close()
}

func (c *Client) send(envelopeType string, topicName string, mode string, payload json.RawMessage) error {
	envelope := messages.NewEnvelope(envelopeType, c.clientId, topicName, mode, payload)
	frame, err := c.codec.Encode(envelope)
	if err != nil {
		return err
	}
	if err = c.tcpClient.Write(frame); err != nil {
		c.log(fmt.Sprintf("Failed to send a message: %s", err.Error()))
		return err
	}
	return nil
}

// handleFrame demultiplexes one inbound frame: structured frames are either
// a status reply or a topic fan-out, anything else is a log line.
func (c *Client) handleFrame(frame []byte) {
	if !messages.IsStructuredFrame(frame) {
		c.log(string(frame))
		return
	}
	var probe struct {
		Type    string          `json:"type"`
		Topic   string          `json:"topic"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(frame, &probe); err != nil {
		c.log(fmt.Sprintf("Failed to receive the message: %s", err.Error()))
		return
	}
	if probe.Type == messages.TypeStatus {
		var entries []messages.StatusEntry
		if err := json.Unmarshal(probe.Payload, &entries); err != nil {
			c.log(fmt.Sprintf("Failed to parse the status payload: %s", err.Error()))
			return
		}
		if c.onStatus != nil {
			c.onStatus(entries)
		}
		return
	}
	if probe.Topic != "" && probe.Topic != "logs" && len(probe.Payload) > 0 {
		if c.onMessage != nil {
			c.onMessage(probe.Topic, probe.Payload)
		}
		return
	}
	c.log(string(frame))
}

func (c *Client) log(line string) {
	if c.onLog != nil {
		c.onLog(line)
		return
	}
	c.logger.Println(line)
}

func emptyPayload() json.RawMessage {
	return json.RawMessage("{}")
}
