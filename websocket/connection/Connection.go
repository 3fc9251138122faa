package connection

import (
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	common_connection "pubhub/common/connection"
	"pubhub/common/utils"
)

// WsConnection adapts a websocket connection to the hub's connection
// interface. Websocket messages are natural frames, so one message is one
// envelope and no delimiter is involved.
type WsConnection struct {
	id          string
	conn        *websocket.Conn
	onMessageCb func([]byte)
	onCloseCb   func(error)
	onErrorCb   func(error)
	state       int
	rwLock      *sync.RWMutex
	writeLock   *sync.Mutex
}

func NewWsConnection(conn *websocket.Conn) common_connection.IConnection {
	return &WsConnection{
		id:        utils.GenStringId(),
		conn:      conn,
		state:     common_connection.StateIdle,
		rwLock:    new(sync.RWMutex),
		writeLock: new(sync.Mutex),
	}
}

func (c *WsConnection) withWrite(cb func()) {
	c.rwLock.Lock()
	defer c.rwLock.Unlock()
	cb()
}

func (c *WsConnection) Id() string {
	return c.id
}

func (c *WsConnection) ConnectionType() uint8 {
	return common_connection.TypeWebsocket
}

func (c *WsConnection) Address() string {
	return c.conn.RemoteAddr().String()
}

func (c *WsConnection) State() int {
	c.rwLock.RLock()
	defer c.rwLock.RUnlock()
	return c.state
}

func (c *WsConnection) setState(state int) {
	if state < common_connection.StateIdle || state > common_connection.StateDisconnected {
		return
	}
	c.withWrite(func() {
		c.state = state
	})
}

func (c *WsConnection) IsLive() bool {
	return c.State() < common_connection.StateClosing
}

func (c *WsConnection) Read() ([]byte, error) {
	_, frame, err := c.conn.ReadMessage()
	if err != nil {
		if c.IsLive() && c.onErrorCb != nil {
			c.onErrorCb(err)
		}
		return nil, err
	}
	return frame, nil
}

func (c *WsConnection) ReadLoop() {
	if c.State() > common_connection.StateIdle {
		return
	}
	c.setState(common_connection.StateReading)
	var readErr error
	for c.State() == common_connection.StateReading {
		frame, err := c.Read()
		if err != nil {
			readErr = err
			break
		}
		if len(frame) == 0 {
			continue
		}
		if c.onMessageCb != nil {
			c.onMessageCb(frame)
		}
	}
	c.closeWithError(readErr)
}

func (c *WsConnection) Write(frame []byte) error {
	if !c.IsLive() {
		return errors.New("write on closed connection " + c.id)
	}
	c.writeLock.Lock()
	defer c.writeLock.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}

func (c *WsConnection) OnMessage(cb func([]byte)) {
	c.onMessageCb = cb
}

func (c *WsConnection) OnError(cb func(error)) {
	c.onErrorCb = cb
}

func (c *WsConnection) OnClose(cb func(error)) {
	c.onCloseCb = cb
}

func (c *WsConnection) Close() error {
	return c.closeWithError(nil)
}

func (c *WsConnection) closeWithError(cause error) error {
	alreadyClosing := false
	c.withWrite(func() {
		if c.state >= common_connection.StateClosing {
			alreadyClosing = true
			return
		}
		c.state = common_connection.StateClosing
	})
	if alreadyClosing {
		return nil
	}
	err := c.conn.Close()
	if cause == nil {
		cause = err
	}
	if c.onCloseCb != nil {
		c.onCloseCb(cause)
	}
	c.setState(common_connection.StateDisconnected)
	return err
}

func (c *WsConnection) String() string {
	return fmt.Sprintf("WsConnection { id: %s, address: %s, state: %d }", c.id, c.Address(), c.State())
}
