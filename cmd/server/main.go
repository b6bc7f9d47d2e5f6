package main

import (
	app "github.com/phiphung-web/redirect/internal/app/server"
	"github.com/phiphung-web/redirect/internal/config"
)

func main() {
	cfg := config.Load()
	config.SetupLogging(cfg.Server.LogLevel)
	app.Run(cfg)
}
