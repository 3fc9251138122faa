package topic

import (
	"fmt"
	"os"
	"sync"
	"testing"

	"pubhub/common/connection"
	"pubhub/common/logger"
	"pubhub/common/test_utils"
)

func newTestRegistry() ITopicRegistry {
	return NewTopicRegistry(logger.New(os.Stdout, "[TopicRegistry]", false))
}

func TestTopicRegistry(t *testing.T) {
	test_utils.NewTestGroup("TopicRegistry", "atomic registry operations").Cases([]*test_utils.Assertion{
		test_utils.NewTestCase("producer registration", "first registration creates the topic", func() bool {
			registry := newTestRegistry()
			producer := connection.NewMockConnection("c1", "127.0.0.1:50001")
			return registry.RegisterProducer("temp", producer, "id1") == OutcomeCreated &&
				registry.NumTopics() == 1
		}),
		test_utils.NewTestCase("repeat producer registration", "same connection observes already_producer", func() bool {
			registry := newTestRegistry()
			producer := connection.NewMockConnection("c1", "127.0.0.1:50001")
			registry.RegisterProducer("temp", producer, "id1")
			return registry.RegisterProducer("temp", producer, "id1") == OutcomeAlreadyProducer
		}),
		test_utils.NewTestCase("name taken", "a different connection observes name_taken", func() bool {
			registry := newTestRegistry()
			registry.RegisterProducer("temp", connection.NewMockConnection("c1", "127.0.0.1:50001"), "id1")
			return registry.RegisterProducer("temp", connection.NewMockConnection("c2", "127.0.0.1:50002"), "id2") == OutcomeNameTaken
		}),
		test_utils.NewTestCase("duplicate subscriber", "second subscribe returns already_subscribed and the set stays duplicate-free", func() bool {
			registry := newTestRegistry()
			registry.RegisterProducer("temp", connection.NewMockConnection("c1", "127.0.0.1:50001"), "id1")
			subscriber := connection.NewMockConnection("c2", "127.0.0.1:50002")
			if registry.RegisterSubscriber("temp", subscriber) != OutcomeSubscribed {
				return false
			}
			if registry.RegisterSubscriber("temp", subscriber) != OutcomeAlreadySubscribed {
				return false
			}
			return registry.NumSubscribers("temp") == 1
		}),
		test_utils.NewTestCase("subscribe unknown topic", "", func() bool {
			registry := newTestRegistry()
			return registry.RegisterSubscriber("temp", connection.NewMockConnection("c1", "")) == OutcomeNoSuchTopic
		}),
		test_utils.NewTestCase("withdraw producer deletes topic", "publish and subscribe observe no_such_topic afterwards", func() bool {
			registry := newTestRegistry()
			producer := connection.NewMockConnection("c1", "127.0.0.1:50001")
			registry.RegisterProducer("temp", producer, "id1")
			registry.RegisterSubscriber("temp", connection.NewMockConnection("c2", "127.0.0.1:50002"))
			if registry.WithdrawProducer("temp", producer) != OutcomeRemoved {
				return false
			}
			outcome, _ := registry.Publish("temp", producer)
			return outcome == OutcomeNoSuchTopic &&
				registry.RegisterSubscriber("temp", connection.NewMockConnection("c3", "127.0.0.1:50003")) == OutcomeNoSuchTopic
		}),
		test_utils.NewTestCase("withdraw by non producer", "", func() bool {
			registry := newTestRegistry()
			registry.RegisterProducer("temp", connection.NewMockConnection("c1", "127.0.0.1:50001"), "id1")
			return registry.WithdrawProducer("temp", connection.NewMockConnection("c2", "127.0.0.1:50002")) == OutcomeNotProducer
		}),
		test_utils.NewTestCase("withdraw subscriber", "", func() bool {
			registry := newTestRegistry()
			registry.RegisterProducer("temp", connection.NewMockConnection("c1", "127.0.0.1:50001"), "id1")
			subscriber := connection.NewMockConnection("c2", "127.0.0.1:50002")
			registry.RegisterSubscriber("temp", subscriber)
			if registry.WithdrawSubscriber("temp", subscriber) != OutcomeRemoved {
				return false
			}
			return registry.WithdrawSubscriber("temp", subscriber) == OutcomeNotSubscriber
		}),
		test_utils.NewTestCase("publish snapshot", "publish returns the current subscriber set without mutating it", func() bool {
			registry := newTestRegistry()
			producer := connection.NewMockConnection("c1", "127.0.0.1:50001")
			registry.RegisterProducer("temp", producer, "id1")
			s1 := connection.NewMockConnection("c2", "127.0.0.1:50002")
			s2 := connection.NewMockConnection("c3", "127.0.0.1:50003")
			registry.RegisterSubscriber("temp", s1)
			registry.RegisterSubscriber("temp", s2)
			outcome, subscribers := registry.Publish("temp", producer)
			return outcome == OutcomeDelivered && len(subscribers) == 2 &&
				registry.NumSubscribers("temp") == 2
		}),
		test_utils.NewTestCase("publish by non producer", "", func() bool {
			registry := newTestRegistry()
			registry.RegisterProducer("temp", connection.NewMockConnection("c1", "127.0.0.1:50001"), "id1")
			outcome, subscribers := registry.Publish("temp", connection.NewMockConnection("c2", "127.0.0.1:50002"))
			return outcome == OutcomeNotProducer && subscribers == nil
		}),
		test_utils.NewTestCase("status snapshot order", "entries follow topic creation order", func() bool {
			registry := newTestRegistry()
			registry.RegisterProducer("a", connection.NewMockConnection("c1", "127.0.0.1:50001"), "id1")
			registry.RegisterProducer("b", connection.NewMockConnection("c2", "127.0.0.1:50002"), "id2")
			entries := registry.SnapshotStatus()
			return len(entries) == 2 &&
				entries[0].Topic == "a" && entries[0].Id == "id1" &&
				entries[1].Topic == "b" && entries[1].Id == "id2"
		}),
		test_utils.NewTestCase("disconnect cleanup", "produced topics removed, subscriptions dropped silently", func() bool {
			registry := newTestRegistry()
			leaving := connection.NewMockConnection("c1", "127.0.0.1:50001")
			other := connection.NewMockConnection("c2", "127.0.0.1:50002")
			registry.RegisterProducer("temp", leaving, "id1")
			registry.RegisterProducer("humidity", other, "id2")
			registry.RegisterSubscriber("humidity", leaving)
			removed := registry.OnDisconnect(leaving)
			if len(removed) != 1 || removed[0] != "temp" {
				return false
			}
			return registry.NumTopics() == 1 && registry.NumSubscribers("humidity") == 0
		}),
		test_utils.NewTestCase("disconnect idempotent", "a second pass for the same connection changes nothing", func() bool {
			registry := newTestRegistry()
			leaving := connection.NewMockConnection("c1", "127.0.0.1:50001")
			registry.RegisterProducer("temp", leaving, "id1")
			registry.OnDisconnect(leaving)
			return len(registry.OnDisconnect(leaving)) == 0 && registry.NumTopics() == 0
		}),
	}).Do(t)
}

func TestTopicRegistryConcurrency(t *testing.T) {
	registry := newTestRegistry()
	numRacers := 16
	outcomes := make([]Outcome, numRacers)
	actions := make([]func(), numRacers)
	for i := 0; i < numRacers; i++ {
		idx := i
		conn := connection.NewMockConnection(fmt.Sprintf("c%d", idx), fmt.Sprintf("127.0.0.1:5%04d", idx))
		actions[idx] = func() {
			outcomes[idx] = registry.RegisterProducer("temp", conn, fmt.Sprintf("id%d", idx))
		}
	}
	test_utils.NewTestGroup("TopicRegistry race", "concurrent producer registrations on one name").
		Concurrently("register race", "16 connections race to register the same topic", actions...).
		Then("single winner", "exactly one created, the rest name_taken", func() bool {
			created := 0
			taken := 0
			for _, outcome := range outcomes {
				switch outcome {
				case OutcomeCreated:
					created++
				case OutcomeNameTaken:
					taken++
				}
			}
			return created == 1 && taken == numRacers-1 && registry.NumTopics() == 1
		}).Do(t)

	registrySub := newTestRegistry()
	producer := connection.NewMockConnection("p", "127.0.0.1:40000")
	registrySub.RegisterProducer("temp", producer, "idp")
	var wg sync.WaitGroup
	subActions := make([]func(), numRacers)
	subscriber := connection.NewMockConnection("s", "127.0.0.1:40001")
	for i := 0; i < numRacers; i++ {
		subActions[i] = func() {
			registrySub.RegisterSubscriber("temp", subscriber)
			wg.Done()
		}
		wg.Add(1)
	}
	test_utils.NewTestGroup("TopicRegistry race", "concurrent duplicate subscriptions").
		Concurrently("subscribe race", "one connection subscribes 16 times concurrently", subActions...).
		Then("no duplicates", "the subscriber appears once", func() bool {
			wg.Wait()
			return registrySub.NumSubscribers("temp") == 1
		}).Do(t)
}
