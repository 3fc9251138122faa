package hub_server

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/pkg/errors"

	"pubhub/common/logger"
	"pubhub/hub_server/config"
	"pubhub/hub_server/dispatcher"
	"pubhub/hub_server/events"
	"pubhub/hub_server/topic"
	"pubhub/tcp"
	"pubhub/websocket/wserver"
)

// Server owns the accept loop, the registry, the dispatcher and the delivery
// log. One goroutine per accepted connection runs that connection's read
// loop; the accept loop itself uses a bounded deadline purely for periodic
// liveness logging.
type Server struct {
	config      config.ServerConfig
	broker      *Broker
	dispatcher  *dispatcher.Dispatcher
	deliveryLog *dispatcher.DeliveryLog
	wsServer    *wserver.WServer
	listener    *net.TCPListener
	closed      chan bool
	logger      *logger.SimpleLogger
}

type IServer interface {
	Start() error
	Stop() error
}

func NewServer(serverConfig config.ServerConfig) *Server {
	serverLogger := logger.New(os.Stdout, fmt.Sprintf("[Server-%s]", serverConfig.ServerId), true)
	messageDispatcher := dispatcher.NewDispatcher(serverLogger.WithPrefix("[Dispatcher]"))
	registry := topic.NewTopicRegistry(serverLogger.WithPrefix("[TopicRegistry]"))
	server := &Server{
		config:     serverConfig,
		broker:     NewBroker(registry, messageDispatcher, serverLogger.WithPrefix("[Broker]")),
		dispatcher: messageDispatcher,
		closed:     make(chan bool),
		logger:     serverLogger,
	}
	deliveryLog, err := dispatcher.NewDeliveryLog(serverConfig.LogFilePath, serverLogger.WithPrefix("[DeliveryLog]"))
	if err != nil {
		// the hub still runs without its delivery log
		serverLogger.Printf("delivery log disabled: %s", err.Error())
	} else {
		server.deliveryLog = deliveryLog
		messageDispatcher.OnDelivered(deliveryLog.Record)
	}
	if serverConfig.WebsocketPort > 0 {
		server.wsServer = wserver.NewWServer(
			wserver.NewServerConfig(serverConfig.ServerId, serverConfig.ListenAddress(), serverConfig.WebsocketPort),
			server.broker.HandleConnection,
		)
	}
	return server
}

func (s *Server) Broker() *Broker {
	return s.broker
}

func (s *Server) Start() error {
	address := fmt.Sprintf("%s:%d", s.config.ListenAddress(), s.config.ListenPort)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return errors.Wrap(err, "unable to listen on "+address)
	}
	s.listener = listener.(*net.TCPListener)
	s.dispatcher.Start()
	if s.wsServer != nil {
		go func() {
			if wsErr := s.wsServer.Start(); wsErr != nil {
				s.logger.Printf("websocket front-end stopped: %s", wsErr.Error())
			}
		}()
	}
	s.logger.Printf("Server '%s' listening on %s with timeout of %d seconds",
		s.config.ServerId, address, s.config.TimeOut)
	events.EmitEvent(events.EventServerStarted, s.config.ServerId)
	return s.acceptLoop()
}

func (s *Server) acceptLoop() error {
	for {
		s.listener.SetDeadline(time.Now().Add(s.config.AcceptTimeout()))
		rawConn, err := s.listener.Accept()
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				s.logger.Printf("No new connections, server is waiting...")
				continue
			}
			select {
			case <-s.closed:
				return nil
			default:
				return errors.Wrap(err, "accept failed")
			}
		}
		conn := tcp.NewTCPConnection(rawConn)
		s.logger.Printf("Connected with %s", conn.Address())
		go s.broker.HandleConnection(conn)
	}
}

func (s *Server) Stop() error {
	close(s.closed)
	events.EmitEvent(events.EventServerClosed, s.config.ServerId)
	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	if s.wsServer != nil {
		s.wsServer.Stop()
	}
	s.dispatcher.Stop()
	if s.deliveryLog != nil {
		s.deliveryLog.Close()
	}
	return err
}
