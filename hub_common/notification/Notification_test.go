package notification

import (
	"sync"
	"testing"

	"pubhub/common/test_utils"
)

func TestNotificationEmitter(t *testing.T) {
	test_utils.NewTestGroup("NotificationEmitter", "event fan-out").Cases([]*test_utils.Assertion{
		test_utils.NewTestCase("notify reaches all listeners", "", func() bool {
			emitter := New(DefaultMaxListeners)
			var lock sync.Mutex
			count := 0
			listener := func(payload string) {
				lock.Lock()
				if payload == "temp" {
					count++
				}
				lock.Unlock()
			}
			emitter.On("ETopicRemoved", listener)
			emitter.On("ETopicRemoved", func(payload string) {
				lock.Lock()
				count++
				lock.Unlock()
			})
			emitter.Notify("ETopicRemoved", "temp")
			return count == 2
		}),
		test_utils.NewTestCase("once fires a single time", "", func() bool {
			emitter := New(DefaultMaxListeners)
			count := 0
			var lock sync.Mutex
			emitter.Once("EClientDisconnected", func(payload string) {
				lock.Lock()
				count++
				lock.Unlock()
			})
			emitter.Notify("EClientDisconnected", "c1")
			emitter.Notify("EClientDisconnected", "c1")
			return count == 1
		}),
		test_utils.NewTestCase("off removes the listener", "", func() bool {
			emitter := New(DefaultMaxListeners)
			count := 0
			var lock sync.Mutex
			listener := func(payload string) {
				lock.Lock()
				count++
				lock.Unlock()
			}
			disposable, err := emitter.On("EClientConnected", listener)
			if err != nil {
				return false
			}
			emitter.Notify("EClientConnected", "c1")
			disposable()
			emitter.Notify("EClientConnected", "c1")
			return count == 1
		}),
		test_utils.NewTestCase("notify without listeners", "is a no-op", func() bool {
			emitter := New(DefaultMaxListeners)
			emitter.Notify("EServerStarted", "hub")
			return !emitter.HasEvent("EServerStarted")
		}),
	}).Do(t)
}
