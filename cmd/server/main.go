package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/jfelden/wordstack/internal/auth"
	"github.com/jfelden/wordstack/internal/cache"
	"github.com/jfelden/wordstack/internal/config"
	"github.com/jfelden/wordstack/internal/database"
	"github.com/jfelden/wordstack/internal/handlers"
	"github.com/jfelden/wordstack/internal/middleware"
)

func main() {
	configPath := "config.yaml"
	for i, arg := range os.Args[1:] {
		if arg == "-config" && i+2 < len(os.Args) {
			configPath = os.Args[i+2]
		}
	}

	if err := config.Load(configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := logrus.New()
	if level, err := logrus.ParseLevel(config.Global.Server.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	if config.Global.Server.Debug {
		logger.SetLevel(logrus.DebugLevel)
	}

	// init db connection
	database.ConnectDB()
	defer database.DB.Close()

	// init redis; the server degrades to single-process mode without it
	if err := cache.ConnectRedis(); err != nil {
		logger.Warnf("redis unavailable, running without cache or fan-out: %v", err)
	}

	// init auth keys
	auth.Init()

	server := handlers.NewTableServer(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if cache.Rdb != nil {
		sub := cache.NewSubscriber(logger)
		server.RegisterBusHandlers(sub)
		go func() {
			if err := sub.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Errorf("pubsub subscriber stopped: %v", err)
			}
		}()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", handlers.PingHandler)
	mux.HandleFunc("/rooms", handlers.RoomsHandler(server))
	mux.HandleFunc("/rooms/ws/", handlers.TableWSHandler(logger, server))

	httpServer := &http.Server{
		Handler:      middleware.LogMiddleware(logger)(mux),
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
	}

	l, err := net.Listen("tcp", config.Global.Server.ListenAddr())
	if err != nil {
		logger.Fatalf("failed to listen: %v", err)
	}
	logger.Infof("listening on %s", l.Addr())

	errc := make(chan error, 1)
	go func() {
		errc <- httpServer.Serve(l)
	}()

	select {
	case err := <-errc:
		logger.Errorf("failed to serve: %v", err)
	case <-ctx.Done():
		logger.Info("terminating on signal")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("shutdown: %v", err)
		}
	}
}
