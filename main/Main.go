package main

import (
	"flag"
	"fmt"
	"os"

	"pubhub/common/logger"
	"pubhub/hub_server"
	"pubhub/hub_server/config"
)

func main() {
	var configPath string
	var demo bool
	flag.StringVar(&configPath, "config", "config.json", "path to the server config json file")
	flag.BoolVar(&demo, "demo", false, "run the demo client instead of the server")
	flag.Parse()

	if demo {
		ClientDemo()
		return
	}

	mainLogger := logger.New(os.Stdout, "[main]", true)
	serverConfig := config.Load(configPath, mainLogger)
	server := hub_server.NewServer(serverConfig)
	if err := server.Start(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
