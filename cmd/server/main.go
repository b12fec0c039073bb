package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/automaxprocs/maxprocs"

	"github.com/Tyrowin/hellochat/internal/logger"
	"github.com/Tyrowin/hellochat/internal/profiler"
	"github.com/Tyrowin/hellochat/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML configuration file")
	flag.Parse()

	config, err := server.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	zlog := logger.New(config.Logger)

	if _, err := maxprocs.Set(maxprocs.Logger(zlog.Printf)); err != nil {
		zlog.Error().Err(err).Msg("failed to set GOMAXPROCS")
	}

	if config.Profiler.Enabled {
		profiler.Start(&profiler.Config{
			Host: config.Profiler.Host,
			Port: config.Profiler.Port,
		}, zlog)
	}

	manager := server.NewConnectionManager(*config, zlog)
	router := server.SetupRoutes(server.NewHandlers(manager, zlog))
	httpServer := server.CreateServer(config, router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.StartServer(httpServer, zlog)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		zlog.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	case err := <-errCh:
		if err != nil {
			zlog.Fatalf("server stopped: %v", err)
		}
		return
	}

	if err := server.ShutdownServer(httpServer, config.ShutdownTimeout, zlog); err != nil {
		zlog.Error().Err(err).Msg("HTTP server did not shut down cleanly")
	}
	if err := manager.Shutdown(config.ShutdownTimeout); err != nil {
		zlog.Error().Err(err).Msg("chat connections did not shut down cleanly")
	}
}
