package topic

// Outcome is the discriminated result of a registry operation. The broker
// selects reply texts from it; outcomes are not errors and carry no stack.
type Outcome int

const (
	OutcomeCreated Outcome = iota
	OutcomeAlreadyProducer
	OutcomeNameTaken
	OutcomeSubscribed
	OutcomeAlreadySubscribed
	OutcomeRemoved
	OutcomeNotProducer
	OutcomeNotSubscriber
	OutcomeNoSuchTopic
	OutcomeDelivered
)

var outcomeStrings = map[Outcome]string{
	OutcomeCreated:           "created",
	OutcomeAlreadyProducer:   "already_producer",
	OutcomeNameTaken:         "name_taken",
	OutcomeSubscribed:        "subscribed",
	OutcomeAlreadySubscribed: "already_subscribed",
	OutcomeRemoved:           "removed",
	OutcomeNotProducer:       "not_producer",
	OutcomeNotSubscriber:     "not_subscriber",
	OutcomeNoSuchTopic:       "no_such_topic",
	OutcomeDelivered:         "delivered",
}

func (o Outcome) String() string {
	if s, has := outcomeStrings[o]; has {
		return s
	}
	return "unknown"
}
