package dispatcher

import (
	"sync"

	"pubhub/common/connection"
	"pubhub/common/logger"
)

const DefaultQueueSize = 1024

// Delivery is one outbound frame bound for one connection.
type Delivery struct {
	Target connection.IConnection
	Frame  []byte
}

// Dispatcher drains the outbound queue on a single goroutine and writes each
// frame to its target. Delivery is best-effort, at-most-once: a write
// failure is logged and that one frame dropped. After every successful write
// the registered observer is notified (the delivery log hangs off it).
// The queue is multi-producer, single-consumer; the consumer blocks on
// channel receive, never polls.
type Dispatcher struct {
	queue     chan Delivery
	observers []func(connection.IConnection, []byte)
	logger    *logger.SimpleLogger
	startOnce sync.Once
	stopOnce  sync.Once
	done      chan bool
	stopped   bool
	stopLock  *sync.RWMutex
}

type IDispatcher interface {
	Enqueue(target connection.IConnection, frame []byte)
	OnDelivered(observer func(connection.IConnection, []byte))
	Start()
	Stop()
}

func NewDispatcher(dispatcherLogger *logger.SimpleLogger) *Dispatcher {
	return &Dispatcher{
		queue:    make(chan Delivery, DefaultQueueSize),
		logger:   dispatcherLogger,
		done:     make(chan bool),
		stopLock: new(sync.RWMutex),
	}
}

// OnDelivered registers an observer called after each successful write.
// Observers must be registered before Start.
func (d *Dispatcher) OnDelivered(observer func(connection.IConnection, []byte)) {
	d.observers = append(d.observers, observer)
}

// Enqueue never blocks past Stop: a producer waiting on a full queue is
// released when the done channel closes and its frame is dropped.
func (d *Dispatcher) Enqueue(target connection.IConnection, frame []byte) {
	d.stopLock.RLock()
	stopped := d.stopped
	d.stopLock.RUnlock()
	if stopped {
		d.logger.Printf("dispatcher stopped, dropping frame for %s", target.Address())
		return
	}
	select {
	case d.queue <- Delivery{Target: target, Frame: frame}:
	case <-d.done:
		d.logger.Printf("dispatcher stopped, dropping frame for %s", target.Address())
	}
}

func (d *Dispatcher) Start() {
	d.startOnce.Do(func() {
		go d.drainLoop()
	})
}

func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		d.stopLock.Lock()
		d.stopped = true
		d.stopLock.Unlock()
		close(d.done)
	})
}

func (d *Dispatcher) drainLoop() {
	for {
		select {
		case <-d.done:
			return
		case delivery := <-d.queue:
			d.deliver(delivery)
		}
	}
}

func (d *Dispatcher) deliver(delivery Delivery) {
	if err := delivery.Target.Write(delivery.Frame); err != nil {
		d.logger.Printf("failed to send the message to %s due to %s", delivery.Target.Address(), err.Error())
		return
	}
	for _, observer := range d.observers {
		observer(delivery.Target, delivery.Frame)
	}
}
