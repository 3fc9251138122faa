package tcp

import (
	"bufio"
	"fmt"
	"net"
	"sync"

	"github.com/pkg/errors"

	"pubhub/common/connection"
	"pubhub/common/utils"
)

const frameDelimiter = '\n'

// TCPConnection frames the byte stream as one message per line. A raw TCP
// read can split or coalesce messages arbitrarily, so the read side scans
// for the delimiter instead of trusting read boundaries.
type TCPConnection struct {
	id          string
	conn        net.Conn
	reader      *bufio.Reader
	onMessageCb func([]byte)
	onCloseCb   func(error)
	onErrorCb   func(error)
	state       int
	rwLock      *sync.RWMutex
	writeLock   *sync.Mutex
}

func NewTCPConnection(conn net.Conn) connection.IConnection {
	return &TCPConnection{
		id:        utils.GenStringId(),
		conn:      conn,
		reader:    bufio.NewReader(conn),
		state:     connection.StateIdle,
		rwLock:    new(sync.RWMutex),
		writeLock: new(sync.Mutex),
	}
}

func (c *TCPConnection) withWrite(cb func()) {
	c.rwLock.Lock()
	defer c.rwLock.Unlock()
	cb()
}

func (c *TCPConnection) Id() string {
	return c.id
}

func (c *TCPConnection) ConnectionType() uint8 {
	return connection.TypeTCP
}

func (c *TCPConnection) Address() string {
	return c.conn.RemoteAddr().String()
}

func (c *TCPConnection) State() int {
	c.rwLock.RLock()
	defer c.rwLock.RUnlock()
	return c.state
}

func (c *TCPConnection) setState(state int) {
	if state < connection.StateIdle || state > connection.StateDisconnected {
		return
	}
	c.withWrite(func() {
		c.state = state
	})
}

func (c *TCPConnection) IsLive() bool {
	return c.State() < connection.StateClosing
}

// Read blocks for the next delimited frame, delimiter stripped.
func (c *TCPConnection) Read() ([]byte, error) {
	line, err := c.reader.ReadBytes(frameDelimiter)
	if err != nil {
		if c.IsLive() && c.onErrorCb != nil {
			c.onErrorCb(err)
		}
		return nil, err
	}
	return trimFrame(line), nil
}

// ReadLoop is the single consumer of this connection's inbound stream. It
// returns once the peer is gone or Close was called, after firing the close
// callback exactly once.
func (c *TCPConnection) ReadLoop() {
	if c.State() > connection.StateIdle {
		return
	}
	c.setState(connection.StateReading)
	var readErr error
	for c.State() == connection.StateReading {
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

// Write sends one frame, terminating it with the delimiter.
func (c *TCPConnection) Write(frame []byte) error {
	if !c.IsLive() {
		return errors.New("write on closed connection " + c.id)
	}
	buffer := make([]byte, 0, len(frame)+1)
	buffer = append(buffer, frame...)
	buffer = append(buffer, frameDelimiter)
	c.writeLock.Lock()
	_, err := c.conn.Write(buffer)
	c.writeLock.Unlock()
	return err
}

func (c *TCPConnection) OnMessage(cb func([]byte)) {
	c.onMessageCb = cb
}

func (c *TCPConnection) OnError(cb func(error)) {
	c.onErrorCb = cb
}

func (c *TCPConnection) OnClose(cb func(error)) {
	c.onCloseCb = cb
}

// Close is idempotent; concurrent callers race on the state transition and
// only the winner closes the socket and fires the callback.
func (c *TCPConnection) Close() error {
	return c.closeWithError(nil)
}

func (c *TCPConnection) closeWithError(cause error) error {
	alreadyClosing := false
	c.withWrite(func() {
		if c.state >= connection.StateClosing {
			alreadyClosing = true
			return
		}
		c.state = connection.StateClosing
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
	c.setState(connection.StateDisconnected)
	return err
}

func (c *TCPConnection) String() string {
	return fmt.Sprintf("TCPConnection { id: %s, address: %s, state: %d }", c.id, c.Address(), c.State())
}

func trimFrame(line []byte) []byte {
	end := len(line)
	for end > 0 && (line[end-1] == '\n' || line[end-1] == '\r') {
		end--
	}
	return line[:end]
}
