package topic

import (
	"pubhub/common/connection"
)

// Topic is one named channel: exactly one producer, a duplicate-free
// subscriber set. Topic carries no lock of its own; every access is
// serialized by the owning TopicRegistry.
type Topic struct {
	name        string
	producer    connection.IConnection
	producerId  string
	subscribers map[string]connection.IConnection
}

func newTopic(name string, producer connection.IConnection, producerId string) *Topic {
	return &Topic{
		name:        name,
		producer:    producer,
		producerId:  producerId,
		subscribers: make(map[string]connection.IConnection),
	}
}

func (t *Topic) Name() string {
	return t.name
}

func (t *Topic) ProducerId() string {
	return t.producerId
}

func (t *Topic) isProducer(conn connection.IConnection) bool {
	return t.producer != nil && t.producer.Id() == conn.Id()
}

func (t *Topic) hasSubscriber(conn connection.IConnection) bool {
	_, has := t.subscribers[conn.Id()]
	return has
}

func (t *Topic) addSubscriber(conn connection.IConnection) {
	t.subscribers[conn.Id()] = conn
}

func (t *Topic) removeSubscriber(conn connection.IConnection) {
	delete(t.subscribers, conn.Id())
}

func (t *Topic) numSubscribers() int {
	return len(t.subscribers)
}

func (t *Topic) subscriberSnapshot() []connection.IConnection {
	snapshot := make([]connection.IConnection, 0, len(t.subscribers))
	for _, conn := range t.subscribers {
		snapshot = append(snapshot, conn)
	}
	return snapshot
}
