package hub_server

import (
	"encoding/json"
	"os"
	"testing"
	"time"

	"pubhub/common/connection"
	"pubhub/common/logger"
	"pubhub/common/test_utils"
	"pubhub/hub_common/messages"
	"pubhub/hub_server/dispatcher"
	"pubhub/hub_server/topic"
)

type brokerFixture struct {
	broker     *Broker
	dispatcher *dispatcher.Dispatcher
}

func newBrokerFixture() *brokerFixture {
	testLogger := logger.New(os.Stdout, "[BrokerTest]", false)
	messageDispatcher := dispatcher.NewDispatcher(testLogger.WithPrefix("[Dispatcher]"))
	registry := topic.NewTopicRegistry(testLogger.WithPrefix("[TopicRegistry]"))
	messageDispatcher.Start()
	return &brokerFixture{
		broker:     NewBroker(registry, messageDispatcher, testLogger.WithPrefix("[Broker]")),
		dispatcher: messageDispatcher,
	}
}

func (f *brokerFixture) route(envelopeType string, id string, topicName string, mode string, payload string, conn connection.IConnection) {
	f.broker.Route(messages.NewEnvelope(envelopeType, id, topicName, mode, json.RawMessage(payload)), conn)
}

func waitForReply(conn *connection.MockConnection, expected string) bool {
	return test_utils.WaitUntil(time.Second, func() bool {
		for _, frame := range conn.Frames() {
			if string(frame) == expected {
				return true
			}
		}
		return false
	})
}

func TestBrokerRouting(t *testing.T) {
	test_utils.NewTestGroup("Broker", "routing by (type, mode)").Cases([]*test_utils.Assertion{
		test_utils.NewTestCase("register publish subscribe flow", "producer registers, subscriber joins, payload fans out", func() bool {
			f := newBrokerFixture()
			defer f.dispatcher.Stop()
			producer := connection.NewMockConnection("p", "127.0.0.1:50001")
			subscriber := connection.NewMockConnection("s", "127.0.0.1:50002")

			f.route(messages.TypeRegister, "id-p", "temp", messages.ModeProducer, `{}`, producer)
			if !waitForReply(producer, "New topic registered: temp") {
				return false
			}
			f.route(messages.TypeRegister, "id-s", "temp", messages.ModeSubscriber, `{}`, subscriber)
			if !waitForReply(subscriber, "Subscribed to topic: temp") {
				return false
			}
			f.route(messages.TypeMessage, "id-p", "temp", messages.ModeProducer, `{"reading":21.5}`, producer)
			return waitForReply(subscriber, `{"topic":"temp","payload":{"reading":21.5}}`)
		}),
		test_utils.NewTestCase("producer disconnect removes topic", "later subscriptions observe no_such_topic", func() bool {
			f := newBrokerFixture()
			defer f.dispatcher.Stop()
			producer := connection.NewMockConnection("p", "127.0.0.1:50001")
			subscriber := connection.NewMockConnection("s", "127.0.0.1:50002")
			f.route(messages.TypeRegister, "id-p", "temp", messages.ModeProducer, `{}`, producer)
			f.route(messages.TypeRegister, "id-s", "temp", messages.ModeSubscriber, `{}`, subscriber)
			f.broker.handleDisconnected(producer)
			if f.broker.Registry().NumTopics() != 0 {
				return false
			}
			late := connection.NewMockConnection("s2", "127.0.0.1:50003")
			f.route(messages.TypeRegister, "id-s2", "temp", messages.ModeSubscriber, `{}`, late)
			return waitForReply(late, "Topic temp doesn't exist.")
		}),
		test_utils.NewTestCase("publish by non producer", "sender gets the error text, no subscriber receives anything", func() bool {
			f := newBrokerFixture()
			defer f.dispatcher.Stop()
			producer := connection.NewMockConnection("p", "127.0.0.1:50001")
			subscriber := connection.NewMockConnection("s", "127.0.0.1:50002")
			intruder := connection.NewMockConnection("c", "127.0.0.1:50003")
			f.route(messages.TypeRegister, "id-p", "temp", messages.ModeProducer, `{}`, producer)
			f.route(messages.TypeRegister, "id-s", "temp", messages.ModeSubscriber, `{}`, subscriber)
			if !waitForReply(subscriber, "Subscribed to topic: temp") {
				return false
			}
			f.route(messages.TypeMessage, "id-c", "temp", messages.ModeProducer, `{"x":1}`, intruder)
			if !waitForReply(intruder, "You are not a producer of topic temp.") {
				return false
			}
			// only the subscription ack may have reached the subscriber
			return subscriber.NumFrames() == 1
		}),
		test_utils.NewTestCase("status reply", "payload lists topics with their producer ids in registry order", func() bool {
			f := newBrokerFixture()
			defer f.dispatcher.Stop()
			p1 := connection.NewMockConnection("p1", "127.0.0.1:50001")
			p2 := connection.NewMockConnection("p2", "127.0.0.1:50002")
			asker := connection.NewMockConnection("a", "127.0.0.1:50003")
			f.route(messages.TypeRegister, "id1", "a", messages.ModeProducer, `{}`, p1)
			f.route(messages.TypeRegister, "id2", "b", messages.ModeProducer, `{}`, p2)
			f.route(messages.TypeStatus, "id-a", "logs", messages.ModeNone, `{}`, asker)
			if !test_utils.WaitUntil(time.Second, func() bool { return asker.NumFrames() == 1 }) {
				return false
			}
			reply := &messages.Envelope{}
			if err := json.Unmarshal(asker.LastFrame(), reply); err != nil {
				return false
			}
			if reply.Type != messages.TypeStatus {
				return false
			}
			var entries []messages.StatusEntry
			if err := json.Unmarshal(reply.Payload, &entries); err != nil {
				return false
			}
			return len(entries) == 2 &&
				entries[0] == (messages.StatusEntry{Topic: "a", Id: "id1"}) &&
				entries[1] == (messages.StatusEntry{Topic: "b", Id: "id2"})
		}),
		test_utils.NewTestCase("withdraw replies", "", func() bool {
			f := newBrokerFixture()
			defer f.dispatcher.Stop()
			producer := connection.NewMockConnection("p", "127.0.0.1:50001")
			f.route(messages.TypeRegister, "id-p", "temp", messages.ModeProducer, `{}`, producer)
			f.route(messages.TypeWithdraw, "id-p", "temp", messages.ModeProducer, `{}`, producer)
			if !waitForReply(producer, "Topic temp has been withdrawn.") {
				return false
			}
			f.route(messages.TypeWithdraw, "id-p", "temp", messages.ModeProducer, `{}`, producer)
			return waitForReply(producer, "Topic temp doesn't exist.")
		}),
		test_utils.NewTestCase("unknown type", "", func() bool {
			f := newBrokerFixture()
			defer f.dispatcher.Stop()
			sender := connection.NewMockConnection("c", "127.0.0.1:50001")
			f.broker.Route(&messages.Envelope{Type: "noop", Id: "id", Topic: "t", Mode: messages.ModeProducer, Timestamp: messages.Timestamp()}, sender)
			return waitForReply(sender, "Unknown message type.")
		}),
	}).Do(t)
}
