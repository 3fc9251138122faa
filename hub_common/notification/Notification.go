package notification

import (
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

const DefaultMaxListeners = 256

type EventListener func(payload string)
type Disposable func()

// NotificationEmitter fans an event payload out to every registered
// listener. Listeners run on their own goroutines; Notify returns once all
// of them have finished.
type NotificationEmitter struct {
	listeners       map[string][]EventListener
	lock            *sync.RWMutex
	maxNumListeners int
}

type INotificationEmitter interface {
	HasEvent(eventId string) bool
	ListenerCount(eventId string) int
	Notify(eventId string, payload string)
	On(eventId string, listener EventListener) (Disposable, error)
	Once(eventId string, listener EventListener) (Disposable, error)
	Off(eventId string, listener EventListener)
	OffAll(eventId string)
}

func New(maxListenerCount int) INotificationEmitter {
	if maxListenerCount < 1 || maxListenerCount > DefaultMaxListeners {
		maxListenerCount = DefaultMaxListeners
	}
	return &NotificationEmitter{make(map[string][]EventListener), new(sync.RWMutex), maxListenerCount}
}

func (e *NotificationEmitter) withWrite(cb func()) {
	e.lock.Lock()
	defer e.lock.Unlock()
	cb()
}

func (e *NotificationEmitter) addListener(eventId string, listener EventListener) (err error) {
	e.withWrite(func() {
		listeners := e.listeners[eventId]
		if listeners == nil {
			listeners = make([]EventListener, 0, e.maxNumListeners)
		} else if len(listeners) >= e.maxNumListeners {
			err = errors.New("listener count exceeded max listener count for event " + eventId)
			return
		}
		e.listeners[eventId] = append(listeners, listener)
	})
	return
}

func (e *NotificationEmitter) indexOfListener(eventId string, listener EventListener) int {
	listenerPtr := reflect.ValueOf(listener).Pointer()
	e.lock.RLock()
	defer e.lock.RUnlock()
	for i, f := range e.listeners[eventId] {
		if listenerPtr == reflect.ValueOf(f).Pointer() {
			return i
		}
	}
	return -1
}

func (e *NotificationEmitter) removeIthListener(eventId string, listenerIdx int) {
	if listenerIdx < 0 || e.ListenerCount(eventId) <= listenerIdx {
		return
	}
	e.withWrite(func() {
		all := e.listeners[eventId]
		e.listeners[eventId] = append(all[:listenerIdx], all[listenerIdx+1:]...)
	})
}

func (e *NotificationEmitter) HasEvent(eventId string) bool {
	e.lock.RLock()
	defer e.lock.RUnlock()
	return e.listeners[eventId] != nil
}

func (e *NotificationEmitter) ListenerCount(eventId string) int {
	e.lock.RLock()
	defer e.lock.RUnlock()
	return len(e.listeners[eventId])
}

func (e *NotificationEmitter) Notify(eventId string, payload string) {
	if !e.HasEvent(eventId) {
		return
	}
	e.lock.RLock()
	listeners := e.listeners[eventId]
	e.lock.RUnlock()
	var wg sync.WaitGroup
	for _, f := range listeners {
		if f != nil {
			wg.Add(1)
			go func(listener EventListener) {
				listener(payload)
				wg.Done()
			}(f)
		}
	}
	wg.Wait()
}

func (e *NotificationEmitter) On(eventId string, listener EventListener) (Disposable, error) {
	if err := e.addListener(eventId, listener); err != nil {
		return nil, err
	}
	return func() {
		e.Off(eventId, listener)
	}, nil
}

func (e *NotificationEmitter) Once(eventId string, listener EventListener) (Disposable, error) {
	hasFired := atomic.Value{}
	hasFired.Store(false)
	var actualListenerPtr func(string)
	actualListener := func(payload string) {
		if hasFired.Load().(bool) {
			e.Off(eventId, actualListenerPtr)
			return
		}
		hasFired.Store(true)
		listener(payload)
		e.Off(eventId, actualListenerPtr)
	}
	actualListenerPtr = actualListener
	if err := e.addListener(eventId, actualListenerPtr); err != nil {
		return nil, err
	}
	return func() {
		e.Off(eventId, actualListenerPtr)
	}, nil
}

func (e *NotificationEmitter) Off(eventId string, listener EventListener) {
	if !e.HasEvent(eventId) {
		return
	}
	e.removeIthListener(eventId, e.indexOfListener(eventId, listener))
}

func (e *NotificationEmitter) OffAll(eventId string) {
	if !e.HasEvent(eventId) {
		return
	}
	e.withWrite(func() {
		e.listeners[eventId] = nil
	})
}
