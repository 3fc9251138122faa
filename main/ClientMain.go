package main

import (
	"encoding/json"
	"fmt"
	"time"

	"pubhub/hub_client"
	"pubhub/hub_common/messages"
)

// ClientDemo drives one producer and one subscriber through a full
// register/publish/status/withdraw cycle against a locally running hub.
func ClientDemo() {
	producer := hub_client.NewClient("127.0.0.1", 1234, "demo-producer")
	subscriber := hub_client.NewClient("127.0.0.1", 1234, "demo-subscriber")
	subscriber.OnMessage(func(topic string, payload json.RawMessage) {
		fmt.Printf("Message received on topic: %s: %s\n", topic, payload)
	})
	subscriber.OnStatus(func(entries []messages.StatusEntry) {
		fmt.Printf("Server status: %+v\n", entries)
	})

	if err := producer.Connect(); err != nil {
		fmt.Println(err)
		return
	}
	if err := subscriber.Connect(); err != nil {
		fmt.Println(err)
		return
	}

	producer.RegisterProducer("temp")
	time.Sleep(100 * time.Millisecond)
	subscriber.RegisterSubscriber("temp")
	time.Sleep(100 * time.Millisecond)
	producer.Produce("temp", map[string]float64{"reading": 21.5})
	time.Sleep(100 * time.Millisecond)
	subscriber.RequestStatus()
	time.Sleep(100 * time.Millisecond)
	producer.WithdrawProducer("temp")
	time.Sleep(100 * time.Millisecond)

	producer.Disconnect()
	subscriber.Disconnect()
}
