package events

import (
	"pubhub/hub_common/notification"
)

const (
	EventClientConnected    = "EClientConnected"
	EventClientDisconnected = "EClientDisconnected"
	EventTopicRemoved       = "ETopicRemoved"

	EventServerStarted = "EServerStarted"
	EventServerClosed  = "EServerClosed"
)

var emitter = notification.New(notification.DefaultMaxListeners)

func EmitEvent(eventId string, payload string) {
	emitter.Notify(eventId, payload)
}

func OnEvent(eventId string, listener notification.EventListener) (notification.Disposable, error) {
	return emitter.On(eventId, listener)
}

func OffEvent(eventId string, listener notification.EventListener) {
	emitter.Off(eventId, listener)
}
