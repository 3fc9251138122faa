package hub_server

import (
	"encoding/json"
	"fmt"

	"pubhub/common/connection"
	"pubhub/common/logger"
	"pubhub/hub_common/messages"
	"pubhub/hub_server/dispatcher"
	"pubhub/hub_server/events"
	"pubhub/hub_server/topic"
)

// Broker routes validated envelopes to registry operations and turns the
// outcomes into outbound frames. Routing never blocks on I/O; every reply
// and fan-out frame goes through the dispatcher as a (connection, frame)
// pair. A decode or validation failure drops the frame and keeps the
// connection open; only a read error tears the connection down.
type Broker struct {
	registry   topic.ITopicRegistry
	dispatcher dispatcher.IDispatcher
	codec      messages.IEnvelopeCodec
	logger     *logger.SimpleLogger
}

// fanOutFrame is the structured frame every subscriber receives on publish.
type fanOutFrame struct {
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

type IBroker interface {
	HandleConnection(conn connection.IConnection)
	Route(envelope *messages.Envelope, conn connection.IConnection)
	Registry() topic.ITopicRegistry
}

func NewBroker(registry topic.ITopicRegistry, messageDispatcher dispatcher.IDispatcher, brokerLogger *logger.SimpleLogger) *Broker {
	return &Broker{
		registry:   registry,
		dispatcher: messageDispatcher,
		codec:      messages.NewJSONEnvelopeCodec(),
		logger:     brokerLogger,
	}
}

func (b *Broker) Registry() topic.ITopicRegistry {
	return b.registry
}

// HandleConnection wires the connection callbacks and runs its read loop.
// It returns when the connection is gone; the caller owns the goroutine.
func (b *Broker) HandleConnection(conn connection.IConnection) {
	connLogger := b.logger.WithPrefix(fmt.Sprintf("[conn-%s]", conn.Address()))
	conn.OnMessage(func(frame []byte) {
		envelope, err := b.codec.Decode(frame)
		if err != nil {
			connLogger.Printf("unable to parse message %s due to %s", frame, err.Error())
			return
		}
		if !messages.Validate(envelope) {
			connLogger.Printf("validation unsuccessful: %s", envelope)
			return
		}
		b.Route(envelope, conn)
	})
	conn.OnError(func(err error) {
		connLogger.Printf("connection error: %s", err.Error())
	})
	conn.OnClose(func(err error) {
		b.handleDisconnected(conn)
	})
	events.EmitEvent(events.EventClientConnected, conn.Address())
	conn.ReadLoop()
	connLogger.Printf("connection %s cycle done", conn.Address())
}

// Route dispatches one validated envelope by (type, mode).
func (b *Broker) Route(envelope *messages.Envelope, conn connection.IConnection) {
	switch {
	case envelope.Type == messages.TypeRegister && envelope.Mode == messages.ModeProducer:
		b.handleRegisterProducer(envelope, conn)
	case envelope.Type == messages.TypeRegister && envelope.Mode == messages.ModeSubscriber:
		b.handleRegisterSubscriber(envelope, conn)
	case envelope.Type == messages.TypeWithdraw && envelope.Mode == messages.ModeProducer:
		b.handleWithdrawProducer(envelope, conn)
	case envelope.Type == messages.TypeWithdraw && envelope.Mode == messages.ModeSubscriber:
		b.handleWithdrawSubscriber(envelope, conn)
	case envelope.Type == messages.TypeMessage:
		b.handlePublish(envelope, conn)
	case envelope.Type == messages.TypeStatus:
		b.handleStatus(envelope, conn)
	default:
		b.reply(conn, "Unknown message type.")
	}
}

func (b *Broker) handleRegisterProducer(envelope *messages.Envelope, conn connection.IConnection) {
	switch b.registry.RegisterProducer(envelope.Topic, conn, envelope.Id) {
	case topic.OutcomeCreated:
		b.reply(conn, fmt.Sprintf("New topic registered: %s", envelope.Topic))
	case topic.OutcomeAlreadyProducer:
		b.reply(conn, fmt.Sprintf("You already are the producer of topic %s.", envelope.Topic))
	case topic.OutcomeNameTaken:
		b.reply(conn, fmt.Sprintf("Topic %s already exists.", envelope.Topic))
	}
}

func (b *Broker) handleRegisterSubscriber(envelope *messages.Envelope, conn connection.IConnection) {
	switch b.registry.RegisterSubscriber(envelope.Topic, conn) {
	case topic.OutcomeSubscribed:
		b.reply(conn, fmt.Sprintf("Subscribed to topic: %s", envelope.Topic))
	case topic.OutcomeAlreadySubscribed:
		b.reply(conn, fmt.Sprintf("You already are a subscriber of topic %s.", envelope.Topic))
	case topic.OutcomeNoSuchTopic:
		b.reply(conn, fmt.Sprintf("Topic %s doesn't exist.", envelope.Topic))
	}
}

func (b *Broker) handleWithdrawProducer(envelope *messages.Envelope, conn connection.IConnection) {
	switch b.registry.WithdrawProducer(envelope.Topic, conn) {
	case topic.OutcomeRemoved:
		b.reply(conn, fmt.Sprintf("Topic %s has been withdrawn.", envelope.Topic))
		events.EmitEvent(events.EventTopicRemoved, envelope.Topic)
	case topic.OutcomeNotProducer:
		b.reply(conn, fmt.Sprintf("You are not a producer of topic %s.", envelope.Topic))
	case topic.OutcomeNoSuchTopic:
		b.reply(conn, fmt.Sprintf("Topic %s doesn't exist.", envelope.Topic))
	}
}

func (b *Broker) handleWithdrawSubscriber(envelope *messages.Envelope, conn connection.IConnection) {
	switch b.registry.WithdrawSubscriber(envelope.Topic, conn) {
	case topic.OutcomeRemoved:
		b.reply(conn, fmt.Sprintf("Subscription of topic %s has been withdrawn.", envelope.Topic))
	case topic.OutcomeNotSubscriber:
		b.reply(conn, fmt.Sprintf("You are not a subscriber of topic %s.", envelope.Topic))
	case topic.OutcomeNoSuchTopic:
		b.reply(conn, fmt.Sprintf("Topic %s doesn't exist.", envelope.Topic))
	}
}

func (b *Broker) handlePublish(envelope *messages.Envelope, conn connection.IConnection) {
	outcome, subscribers := b.registry.Publish(envelope.Topic, conn)
	switch outcome {
	case topic.OutcomeDelivered:
		frame, err := json.Marshal(fanOutFrame{Topic: envelope.Topic, Payload: envelope.Payload})
		if err != nil {
			b.logger.Printf("unable to encode fan-out frame for topic %s due to %s", envelope.Topic, err.Error())
			return
		}
		for _, subscriber := range subscribers {
			b.dispatcher.Enqueue(subscriber, frame)
		}
	case topic.OutcomeNotProducer:
		b.reply(conn, fmt.Sprintf("You are not a producer of topic %s.", envelope.Topic))
	case topic.OutcomeNoSuchTopic:
		b.reply(conn, fmt.Sprintf("Topic %s doesn't exist.", envelope.Topic))
	}
}

// handleStatus echoes the status envelope back with its payload replaced by
// the registry snapshot, in topic creation order.
func (b *Broker) handleStatus(envelope *messages.Envelope, conn connection.IConnection) {
	entries := b.registry.SnapshotStatus()
	payload, err := json.Marshal(entries)
	if err != nil {
		b.logger.Printf("unable to encode status payload due to %s", err.Error())
		return
	}
	statusEnvelope := envelope.Copy()
	statusEnvelope.Payload = payload
	frame, err := b.codec.Encode(statusEnvelope)
	if err != nil {
		b.logger.Printf("unable to encode status reply due to %s", err.Error())
		return
	}
	b.dispatcher.Enqueue(conn, frame)
}

func (b *Broker) reply(conn connection.IConnection, text string) {
	b.dispatcher.Enqueue(conn, []byte(text))
}

func (b *Broker) handleDisconnected(conn connection.IConnection) {
	removed := b.registry.OnDisconnect(conn)
	for _, topicName := range removed {
		b.logger.Printf("Topic %s has been removed.", topicName)
		events.EmitEvent(events.EventTopicRemoved, topicName)
	}
	events.EmitEvent(events.EventClientDisconnected, conn.Address())
}
