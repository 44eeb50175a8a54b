package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"parkshare/internal/scheduler"
	"parkshare/pkg/app"
	"parkshare/pkg/config"
	"parkshare/pkg/lock"
)

const ServiceName = "parkshare-scheduler"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	cfg.SetRedis()
	defer cfg.GracefulShutdown()

	services, err := app.NewServices(cfg)
	if err != nil {
		cfg.Log.Fatal("Failed to build services", "error", err)
	}
	defer services.Close(cfg)

	s := scheduler.NewScheduler(lock.NewRedisLocker(cfg.Client.Redis), cfg,
		scheduler.Step{Name: "complete-bookings", Run: services.Spots.CompleteDue},
		scheduler.Step{Name: "expire-requests", Run: services.Parkings.ExpireDue},
		scheduler.Step{Name: "complete-requests", Run: services.Parkings.CompleteDue},
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	s.Run(ctx)
}
