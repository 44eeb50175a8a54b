package main

import (
	"parkshare/pkg/app"
	"parkshare/pkg/config"
)

const ServiceName = "parkshare"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	cfg.SetRedis()
	defer cfg.GracefulShutdown()

	application, err := app.NewApplication(cfg)
	if err != nil {
		cfg.Log.Fatal("Failed to build application", "error", err)
	}
	application.Run()
}
