package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/retailpos/terminal/internal/api"
	"github.com/retailpos/terminal/internal/bus"
	"github.com/retailpos/terminal/internal/config"
	"github.com/retailpos/terminal/internal/conn"
	"github.com/retailpos/terminal/internal/identity"
	"github.com/retailpos/terminal/internal/status"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	resetIdentity := flag.Bool("reset-identity", false, "Clear the persisted terminal identity and exit")
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	resolver := identity.NewResolver(cfg.Terminal.IdentityPath)
	if *resetIdentity {
		if err := resolver.Reset(); err != nil {
			log.Fatalf("Failed to reset identity: %v", err)
		}
		log.Println("Terminal identity cleared")
		return
	}

	terminalID, err := resolver.TerminalID()
	if err != nil {
		log.Fatalf("Failed to resolve terminal identity: %v", err)
	}
	log.Printf("Terminal identity: %s", terminalID)

	b := bus.New()
	manager := conn.NewManager(conn.Options{
		URL:              cfg.Server.SocketURL,
		TerminalID:       terminalID,
		BaseDelay:        cfg.Connection.ReconnectBaseDelay,
		MaxAttempts:      cfg.Connection.MaxReconnectAttempts,
		HandshakeTimeout: cfg.Connection.HandshakeTimeout,
		WriteTimeout:     cfg.Connection.WriteTimeout,
	}, b)

	b.Subscribe(conn.EventConnected, func(any) {
		log.Println("Connected to server")
	})
	b.Subscribe(conn.EventDisconnected, func(p any) {
		if info, ok := p.(conn.DisconnectInfo); ok {
			log.Printf("Disconnected (%d): %s", info.Code, info.Reason)
		}
	})
	b.Subscribe(conn.EventTerminalAssigned, func(p any) {
		log.Printf("Server assigned session identity: %v", p)
	})
	b.Subscribe(conn.EventGiveUp, func(any) {
		log.Println("Reconnect attempts exhausted; staying offline until restart")
	})

	apiClient := api.NewClient(cfg.Server.APIURL, cfg.Server.AuthToken)
	reporter := status.NewReporter(apiClient, status.Options{
		TerminalID: terminalID,
		Facts: status.Facts{
			Name:             cfg.Terminal.Name,
			LocalAddress:     cfg.Terminal.LocalAddress,
			Port:             cfg.Terminal.Port,
			ScreenResolution: cfg.Terminal.ScreenResolution,
			SoftwareVersion:  version,
		},
		Interval: cfg.Heartbeat.Interval,
		Online:   func() bool { return manager.State() == conn.Connected },
		Sender:   manager,
	})

	manager.Connect()
	reporter.Start()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	reporter.Stop()
	manager.Disconnect()
}
