package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"cortexrelay/clients"
	cortexclient "cortexrelay/clients/cortex"
	slackclient "cortexrelay/clients/slack"
	"cortexrelay/config"
	"cortexrelay/handlers"
	"cortexrelay/middleware"
	"cortexrelay/services"
	"cortexrelay/services/auth"
	"cortexrelay/services/session"
	"cortexrelay/usecases/relay"
)

func main() {
	if err := run(); err != nil {
		log.Printf("❌ Fatal error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	alertMiddleware := middleware.NewErrorAlertMiddleware(middleware.SlackAlertConfig{
		WebhookURL:  cfg.SlackConfig.AlertWebhookURL,
		Environment: cfg.Environment,
		AppName:     "cortexrelay",
	})

	// Build the token source for the Snowflake API. Unreadable credentials
	// abort launch; everything after this point fails soft per event.
	var tokens clients.TokenSource
	sessionOpts := session.Options{
		Account:   cfg.SnowflakeConfig.Account,
		User:      cfg.SnowflakeConfig.User,
		Host:      cfg.SnowflakeConfig.Host,
		Role:      cfg.SnowflakeConfig.Role,
		Warehouse: cfg.SnowflakeConfig.Warehouse,
		Database:  cfg.SnowflakeConfig.Database,
		Schema:    cfg.SnowflakeConfig.Schema,
	}

	switch cfg.AuthConfig.Mode {
	case config.AuthModeKeypair:
		keypair, err := auth.NewKeypairTokenSource(
			cfg.SnowflakeConfig.Account,
			cfg.SnowflakeConfig.User,
			cfg.AuthConfig.PrivateKeyPath,
			cfg.AuthConfig.PrivateKeyPassphrase,
		)
		if err != nil {
			return err
		}
		tokens = keypair
		sessionOpts.PrivateKey = keypair.PrivateKey()
	case config.AuthModeOAuth:
		spcs := auth.NewSPCSTokenSource(cfg.AuthConfig.SPCSTokenFile)
		tokens = spcs
		sessionOpts.Tokens = spcs
	}

	if _, err := tokens.Token(context.Background()); err != nil {
		return fmt.Errorf("startup credential check failed: %w", err)
	}
	log.Printf("✅ Snowflake credentials verified (%s)", tokens.TokenType())

	cortexClient := cortexclient.NewCortexClient(cortexclient.Options{
		AgentURL:      cfg.CortexConfig.AgentEndpoint,
		Model:         cfg.CortexConfig.Model,
		SemanticModel: cfg.CortexConfig.SemanticModel,
		SearchService: cfg.CortexConfig.SearchService,
	}, tokens)

	var sessions services.SessionManager
	if cfg.ExecutesSQL() {
		manager := session.NewSnowflakeSessionManager(sessionOpts)
		defer func() {
			if err := manager.Close(); err != nil {
				log.Printf("⚠️ Failed to close Snowflake session: %v", err)
			}
		}()
		sessions = manager
	}

	slackAPI := slackclient.NewSlackClient(cfg.SlackConfig.BotToken)
	relayUseCase := relay.NewRelayUseCase(slackAPI, cortexClient, sessions)

	listener := slackclient.NewEventListener(cfg.SlackConfig.AppToken, cfg.SlackConfig.BotToken)
	listener.RegisterMessageHandler(alertMiddleware.WrapMessageHandler(relayUseCase.HandleMessageEvent))

	// Health check endpoint for container orchestration
	healthHandler := handlers.NewHealthHandler()
	router := mux.NewRouter()
	healthHandler.SetupEndpoints(router)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           alertMiddleware.HTTPMiddleware(router),
		ReadHeaderTimeout: 30 * time.Second,
	}
	go func() {
		log.Printf("✅ Health check listening on http://localhost%s/healthcheck", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("❌ Health server error: %v", err)
		}
	}()

	healthHandler.SetReady()
	log.Printf(">>>>>>>>>> Init complete")

	return runUntilShutdown(listener, server)
}

func runUntilShutdown(listener *slackclient.EventListener, server *http.Server) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	listenerErr := make(chan error, 1)
	go func() {
		listenerErr <- listener.Run(ctx)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-listenerErr:
		if err != nil {
			log.Printf("❌ Slack listener error: %v", err)
			shutdownHealthServer(server)
			return err
		}
	case <-stop:
		log.Printf("🛑 Shutdown signal received, cleaning up...")
		cancel()
	}

	shutdownHealthServer(server)
	log.Printf("✅ Relay stopped gracefully")
	return nil
}

func shutdownHealthServer(server *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("❌ Health server shutdown error: %v", err)
	}
}
