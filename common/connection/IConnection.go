package connection

const (
	TypeTCP       = 0
	TypeWebsocket = 1
)

const (
	StateIdle         = 0
	StateReading      = 1
	StateStopping     = 2
	StateStopped      = 3
	StateClosing      = 4
	StateDisconnected = 5
)

// IConnection is one accepted client socket. A connection is identified by
// its Id, never by the underlying transport handle, so registries can key
// on it without holding a live socket.
type IConnection interface {
	Id() string
	ConnectionType() uint8
	Address() string
	Read() ([]byte, error)
	ReadLoop()
	Write([]byte) error
	OnMessage(func([]byte))
	OnError(func(error))
	OnClose(func(error))
	Close() error
	State() int
	IsLive() bool
	String() string
}
