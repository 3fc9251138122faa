package connection

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
)

// MockConnection records written frames in memory so registry, dispatcher
// and broker logic can be exercised without live sockets.
type MockConnection struct {
	id      string
	address string
	frames  [][]byte
	broken  bool
	live    bool
	onClose func(error)
	lock    *sync.RWMutex
}

func NewMockConnection(id string, address string) *MockConnection {
	return &MockConnection{
		id:      id,
		address: address,
		live:    true,
		lock:    new(sync.RWMutex),
	}
}

func (m *MockConnection) Id() string {
	return m.id
}

func (m *MockConnection) ConnectionType() uint8 {
	return TypeTCP
}

func (m *MockConnection) Address() string {
	return m.address
}

func (m *MockConnection) Read() ([]byte, error) {
	return nil, errors.New("mock connection does not support reads")
}

func (m *MockConnection) ReadLoop() {}

func (m *MockConnection) Write(frame []byte) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.broken || !m.live {
		return errors.New("write on dead connection " + m.id)
	}
	c := make([]byte, len(frame))
	copy(c, frame)
	m.frames = append(m.frames, c)
	return nil
}

func (m *MockConnection) OnMessage(cb func([]byte)) {}

func (m *MockConnection) OnError(cb func(error)) {}

func (m *MockConnection) OnClose(cb func(error)) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.onClose = cb
}

func (m *MockConnection) Close() error {
	m.lock.Lock()
	m.live = false
	cb := m.onClose
	m.lock.Unlock()
	if cb != nil {
		cb(nil)
	}
	return nil
}

func (m *MockConnection) State() int {
	m.lock.RLock()
	defer m.lock.RUnlock()
	if m.live {
		return StateReading
	}
	return StateDisconnected
}

func (m *MockConnection) IsLive() bool {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.live
}

func (m *MockConnection) String() string {
	return fmt.Sprintf("MockConnection { id: %s, address: %s }", m.id, m.address)
}

// Break makes every subsequent Write fail, simulating a dead peer.
func (m *MockConnection) Break() {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.broken = true
}

func (m *MockConnection) Frames() [][]byte {
	m.lock.RLock()
	defer m.lock.RUnlock()
	frames := make([][]byte, len(m.frames))
	copy(frames, m.frames)
	return frames
}

func (m *MockConnection) NumFrames() int {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return len(m.frames)
}

func (m *MockConnection) LastFrame() []byte {
	m.lock.RLock()
	defer m.lock.RUnlock()
	if len(m.frames) == 0 {
		return nil
	}
	return m.frames[len(m.frames)-1]
}
