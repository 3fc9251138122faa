package config

import (
	"encoding/json"
	"io/ioutil"
	"os"
	"time"

	"github.com/pkg/errors"

	"pubhub/common/logger"
)

const (
	DefaultServerId      = "default_server"
	DefaultListenAddress = "127.0.0.1"
	DefaultListenPort    = 1234
	DefaultTimeOut       = 3
	DefaultLogFilePath   = "log.txt"
)

// ServerConfig is loaded once at startup and immutable afterwards. Any load
// failure falls back to the documented defaults instead of aborting.
type ServerConfig struct {
	ServerId        string   `json:"ServerID"`
	ListenAddresses []string `json:"ListenAddresses"`
	ListenPort      int      `json:"ListenPort"`
	TimeOut         int      `json:"TimeOut"`
	WebsocketPort   int      `json:"WebsocketPort"`
	LogFilePath     string   `json:"LogFilePath"`
}

func Default() ServerConfig {
	return ServerConfig{
		ServerId:        DefaultServerId,
		ListenAddresses: []string{DefaultListenAddress},
		ListenPort:      DefaultListenPort,
		TimeOut:         DefaultTimeOut,
		LogFilePath:     DefaultLogFilePath,
	}
}

// Load reads a JSON config file. Keys absent from the file keep their
// default values; an unreadable or unparsable file yields the full defaults.
func Load(path string, configLogger *logger.SimpleLogger) ServerConfig {
	config := Default()
	stream, err := readConfigFile(path)
	if err != nil {
		configLogger.Printf("unable to read config file from %s due to %s, will use default config", path, err.Error())
		return config
	}
	if err = json.Unmarshal(stream, &config); err != nil {
		configLogger.Printf("unable to parse config file from %s due to %s, will use default config", path, err.Error())
		return Default()
	}
	config = fillDefaults(config)
	configLogger.Printf("config loaded: host=%s, port=%d, timeout=%d", config.ListenAddress(), config.ListenPort, config.TimeOut)
	return config
}

func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open config file")
	}
	defer f.Close()
	return ioutil.ReadAll(f)
}

func fillDefaults(config ServerConfig) ServerConfig {
	if config.ServerId == "" {
		config.ServerId = DefaultServerId
	}
	if len(config.ListenAddresses) == 0 {
		config.ListenAddresses = []string{DefaultListenAddress}
	}
	if config.ListenPort == 0 {
		config.ListenPort = DefaultListenPort
	}
	if config.TimeOut == 0 {
		config.TimeOut = DefaultTimeOut
	}
	if config.LogFilePath == "" {
		config.LogFilePath = DefaultLogFilePath
	}
	return config
}

// ListenAddress is the first configured address, mirroring how clients pick
// the address to dial.
func (c ServerConfig) ListenAddress() string {
	if len(c.ListenAddresses) == 0 {
		return DefaultListenAddress
	}
	return c.ListenAddresses[0]
}

func (c ServerConfig) AcceptTimeout() time.Duration {
	return time.Duration(c.TimeOut) * time.Second
}
