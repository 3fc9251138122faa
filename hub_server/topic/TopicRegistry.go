package topic

import (
	"sync"

	"pubhub/common/connection"
	"pubhub/common/logger"
	"pubhub/hub_common/messages"
)

// TopicRegistry is the only shared mutable state of the hub. Every exported
// operation holds the registry mutex for its whole body, so the invariants
// (one producer per topic, no duplicate subscribers, topic exists only while
// it has a producer) hold under concurrent callers, and a publish can never
// observe a half-cleaned topic. No operation performs I/O under the lock.
type TopicRegistry struct {
	topics map[string]*Topic
	order  []string
	lock   *sync.Mutex
	logger *logger.SimpleLogger
}

type ITopicRegistry interface {
	RegisterProducer(topicName string, conn connection.IConnection, clientId string) Outcome
	RegisterSubscriber(topicName string, conn connection.IConnection) Outcome
	WithdrawProducer(topicName string, conn connection.IConnection) Outcome
	WithdrawSubscriber(topicName string, conn connection.IConnection) Outcome
	Publish(topicName string, conn connection.IConnection) (Outcome, []connection.IConnection)
	SnapshotStatus() []messages.StatusEntry
	OnDisconnect(conn connection.IConnection) []string
	NumTopics() int
	NumSubscribers(topicName string) int
}

func NewTopicRegistry(registryLogger *logger.SimpleLogger) ITopicRegistry {
	return &TopicRegistry{
		topics: make(map[string]*Topic),
		lock:   new(sync.Mutex),
		logger: registryLogger,
	}
}

func (r *TopicRegistry) RegisterProducer(topicName string, conn connection.IConnection, clientId string) Outcome {
	r.lock.Lock()
	defer r.lock.Unlock()
	if t, has := r.topics[topicName]; has {
		if t.isProducer(conn) {
			return OutcomeAlreadyProducer
		}
		return OutcomeNameTaken
	}
	r.topics[topicName] = newTopic(topicName, conn, clientId)
	r.order = append(r.order, topicName)
	r.logger.Printf("new topic %s has been created by %s", topicName, clientId)
	return OutcomeCreated
}

func (r *TopicRegistry) RegisterSubscriber(topicName string, conn connection.IConnection) Outcome {
	r.lock.Lock()
	defer r.lock.Unlock()
	t, has := r.topics[topicName]
	if !has {
		return OutcomeNoSuchTopic
	}
	if t.hasSubscriber(conn) {
		return OutcomeAlreadySubscribed
	}
	t.addSubscriber(conn)
	r.logger.Printf("connection %s has subscribed to topic %s", conn.Id(), topicName)
	return OutcomeSubscribed
}

// WithdrawProducer deletes the topic and its entire subscriber set in the
// same critical section.
func (r *TopicRegistry) WithdrawProducer(topicName string, conn connection.IConnection) Outcome {
	r.lock.Lock()
	defer r.lock.Unlock()
	t, has := r.topics[topicName]
	if !has {
		return OutcomeNoSuchTopic
	}
	if !t.isProducer(conn) {
		return OutcomeNotProducer
	}
	r.deleteTopic(topicName)
	r.logger.Printf("topic %s has been withdrawn by its producer", topicName)
	return OutcomeRemoved
}

func (r *TopicRegistry) WithdrawSubscriber(topicName string, conn connection.IConnection) Outcome {
	r.lock.Lock()
	defer r.lock.Unlock()
	t, has := r.topics[topicName]
	if !has {
		return OutcomeNoSuchTopic
	}
	if !t.hasSubscriber(conn) {
		return OutcomeNotSubscriber
	}
	t.removeSubscriber(conn)
	r.logger.Printf("connection %s has unsubscribed from topic %s", conn.Id(), topicName)
	return OutcomeRemoved
}

// Publish mutates nothing; the producer check and the subscriber snapshot
// are taken under the same hold so a racing withdraw can never yield a
// stale delivery list.
func (r *TopicRegistry) Publish(topicName string, conn connection.IConnection) (Outcome, []connection.IConnection) {
	r.lock.Lock()
	defer r.lock.Unlock()
	t, has := r.topics[topicName]
	if !has {
		return OutcomeNoSuchTopic, nil
	}
	if !t.isProducer(conn) {
		return OutcomeNotProducer, nil
	}
	return OutcomeDelivered, t.subscriberSnapshot()
}

// SnapshotStatus reports (topic, producer id) pairs in topic creation order.
func (r *TopicRegistry) SnapshotStatus() []messages.StatusEntry {
	r.lock.Lock()
	defer r.lock.Unlock()
	entries := make([]messages.StatusEntry, 0, len(r.order))
	for _, name := range r.order {
		t := r.topics[name]
		entries = append(entries, messages.StatusEntry{Topic: t.Name(), Id: t.ProducerId()})
	}
	return entries
}

// OnDisconnect removes the connection from every topic in one atomic pass:
// topics it produced are deleted (and reported), subscriptions are removed
// silently. Calling it again for the same connection is a no-op.
func (r *TopicRegistry) OnDisconnect(conn connection.IConnection) []string {
	r.lock.Lock()
	defer r.lock.Unlock()
	var removed []string
	for _, name := range r.order {
		t := r.topics[name]
		if t.isProducer(conn) {
			removed = append(removed, name)
			continue
		}
		if t.hasSubscriber(conn) {
			t.removeSubscriber(conn)
			r.logger.Printf("subscriber of topic %s disconnected, deleting subscription", name)
		}
	}
	for _, name := range removed {
		r.deleteTopic(name)
		r.logger.Printf("producer of topic %s disconnected, topic deleted", name)
	}
	return removed
}

func (r *TopicRegistry) NumTopics() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return len(r.topics)
}

func (r *TopicRegistry) NumSubscribers(topicName string) int {
	r.lock.Lock()
	defer r.lock.Unlock()
	t, has := r.topics[topicName]
	if !has {
		return 0
	}
	return t.numSubscribers()
}

// deleteTopic must run with the registry lock held.
func (r *TopicRegistry) deleteTopic(topicName string) {
	delete(r.topics, topicName)
	for i, name := range r.order {
		if name == topicName {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}
