package wserver

import (
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/gorilla/websocket"

	base_conn "pubhub/common/connection"
	"pubhub/common/logger"
	"pubhub/websocket/connection"
)

const WSConnectionPath = "/"

// WServer is the websocket front-end: it upgrades HTTP requests on the
// connection path and hands each established connection to the handler,
// which runs the connection's read loop on the request goroutine.
type WServer struct {
	name              string
	address           string
	listener          net.Listener
	upgrader          *websocket.Upgrader
	connectionHandler func(base_conn.IConnection)
	logger            *logger.SimpleLogger
}

func NewWServer(config WsServerConfig, connectionHandler func(base_conn.IConnection)) *WServer {
	wsServer := &WServer{}
	wsServer.logger = logger.New(os.Stdout, fmt.Sprintf("[wserver-%s]", config.Name), true)
	wsServer.name = config.Name
	wsServer.address = fmt.Sprintf("%s:%d", config.Address, config.Port)
	wsServer.connectionHandler = connectionHandler
	wsServer.upgrader = &websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 1024,
		CheckOrigin: func(req *http.Request) bool {
			if req.Method != "GET" {
				wsServer.logger.Printf("invalid request from %s(METHOD = %s URL = %s)", req.RemoteAddr, req.Method, req.URL)
				return false
			}
			return true
		},
	}
	return wsServer
}

func (ws *WServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != WSConnectionPath {
		http.NotFound(w, r)
		return
	}
	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		ws.logger.Printf("err while upgrading HTTP request: %s", err.Error())
		return
	}
	ws.handleNewConnection(conn)
}

func (ws *WServer) Start() (err error) {
	ws.logger.Println("starting ws server...")
	ws.listener, err = net.Listen("tcp", ws.address)
	if err != nil {
		ws.logger.Println("net listen error:", err)
		return
	}
	err = http.Serve(ws.listener, ws)
	if err != nil {
		ws.logger.Println("http serve error:", err)
		return
	}
	return nil
}

func (ws *WServer) Stop() (err error) {
	if ws.listener == nil {
		return nil
	}
	return ws.listener.Close()
}

func (ws *WServer) handleNewConnection(conn *websocket.Conn) {
	ws.logger.Printf("new connection from %s detected", conn.RemoteAddr())
	c := connection.NewWsConnection(conn)
	// the handler runs the read loop; this goroutine is the request's own
	ws.connectionHandler(c)
}
