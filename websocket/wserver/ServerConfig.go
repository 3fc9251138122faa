package wserver

type WsServerConfig struct {
	Name    string
	Address string
	Port    int
}

func NewServerConfig(name string, address string, port int) WsServerConfig {
	return WsServerConfig{Name: name, Address: address, Port: port}
}
