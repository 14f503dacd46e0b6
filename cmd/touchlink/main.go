package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/touchlink/internal/adapter"
	"github.com/banshee-data/touchlink/internal/config"
	"github.com/banshee-data/touchlink/internal/handler"
	"github.com/banshee-data/touchlink/internal/hostsim"
	"github.com/banshee-data/touchlink/internal/serialmux"
	"github.com/banshee-data/touchlink/internal/settings"
	"github.com/banshee-data/touchlink/internal/timeutil"
	"github.com/banshee-data/touchlink/internal/version"
)

var (
	configPath  = flag.String("config", "", "Path to JSON config (default "+config.DefaultConfigPath+" if present)")
	port        = flag.String("port", "", "Serial port of the tracking service (overrides config)")
	devMode     = flag.Bool("dev", false, "Use the synthetic tracking source instead of the service")
	listen      = flag.String("listen", "", "Admin listen address (overrides config)")
	dbPath      = flag.String("db", "", "Settings database path (overrides config)")
	fps         = flag.Float64("fps", 0, "Host frame rate (overrides config)")
	listPorts   = flag.Bool("list-ports", false, "List serial ports and exit")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// loadConfig reads the config file and applies flag overrides. A missing
// default config file is not an error.
func loadConfig() (*config.Config, error) {
	cfg := config.Empty()
	path := *configPath
	if path == "" {
		if _, err := os.Stat(config.DefaultConfigPath); err == nil {
			path = config.DefaultConfigPath
		}
	}
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}

	if *port != "" {
		cfg.SerialPort = port
	}
	if *devMode {
		cfg.Dev = devMode
	}
	if *listen != "" {
		cfg.Listen = listen
	}
	if *dbPath != "" {
		cfg.SettingsDB = dbPath
	}
	if *fps != 0 {
		cfg.FrameRate = fps
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}
	return cfg, nil
}

// newHandler picks the tracking source described by cfg.
func newHandler(cfg *config.Config, clock timeutil.Clock) (handler.Handler, error) {
	if cfg.GetDev() {
		return handler.NewSynthetic(clock), nil
	}
	if cfg.GetSerialPort() == "" {
		return nil, errors.New("serial port is required outside dev mode")
	}
	return handler.NewService(handler.ServiceConfig{
		Path:              cfg.GetSerialPort(),
		Port:              serialmux.PortOptions{BaudRate: cfg.GetBaudRate()},
		KeepAliveInterval: cfg.GetKeepAliveInterval(),
		Clock:             clock,
	}), nil
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	if *listPorts {
		ports, err := serialmux.ListPorts()
		if err != nil {
			log.Fatalf("failed to list serial ports: %v", err)
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	log.Printf("starting %s", version.String())

	store, err := settings.OpenSQLite(cfg.GetSettingsDB())
	if err != nil {
		log.Fatalf("failed to open settings database: %v", err)
	}
	defer store.Close()

	clock := timeutil.RealClock{}
	h, err := newHandler(cfg, clock)
	if err != nil {
		log.Fatalf("failed to create handler: %v", err)
	}

	host := hostsim.New(store, cfg.GetStrings())
	device := adapter.NewDevice(host, h)
	device.OnLoad()
	device.Initialize()
	defer device.Shutdown()
	log.Printf("device status: %s", device.Status().State)

	loop := hostsim.NewLoop(host, device, hostsim.LoopConfig{
		FrameInterval:  cfg.GetFrameInterval(),
		ResyncInterval: cfg.GetResyncInterval(),
		Clock:          clock,
	})

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// frame and resync actors
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("host loop stopped: %v", err)
		}
		log.Print("host loop terminated")
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := http.NewServeMux()
		loop.AttachAdminRoutes(mux)
		if err := store.AttachAdminRoutes(mux); err != nil {
			log.Printf("failed to attach settings routes: %v", err)
		}
		if svc, ok := h.(*handler.Service); ok {
			svc.AttachAdminRoutes(mux)
		}

		server := &http.Server{
			Addr:    cfg.GetListen(),
			Handler: mux,
		}

		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()
		log.Printf("admin routes on http://%s/debug/", cfg.GetListen())

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}

		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
