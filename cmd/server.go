package cmd

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"solidity-armor/ai"
	"solidity-armor/audit"
	"solidity-armor/config"
	"solidity-armor/db"
	"solidity-armor/ingest"
	"solidity-armor/logging"
	"solidity-armor/web"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the web server",
	Long:  `Start the Solidity Armor web server, serving the dashboard and the scan API.`,
	Run:   runServer,
}

var (
	serverPort string
)

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().StringVarP(&serverPort, "port", "p", "", "web server port (overrides config)")
}

func runServer(cmd *cobra.Command, args []string) {
	if err := config.LoadConfig(cfgFile); err != nil {
		log.Fatal("Failed to load config:", err)
	}
	cfg := config.GetConfig()

	if err := logging.Init(cfg.Logging); err != nil {
		log.Printf("Failed to initialize logging: %v", err)
	}

	database, err := db.NewDatabase(cfg.Database.Driver, cfg.Database.GetDSN())
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer database.Close()

	var gateway *ai.Gateway
	if cfg.AI.APIKey != "" {
		gateway, err = buildGateway(cfg)
		if err != nil {
			log.Fatal("Failed to create analysis gateway:", err)
		}
	} else {
		log.Println("No AI API key configured; contract submissions will be rejected")
	}

	verifier, err := buildVerifier(cfg)
	if err != nil {
		log.Fatal("Failed to create payment verifier:", err)
	}

	auditor := audit.NewService(database, gateway, ingest.NewAcquirer(), buildNotifier(cfg))

	port := serverPort
	if port == "" {
		port = fmt.Sprintf("%d", cfg.Server.Port)
	}

	server := web.NewAppServer(database, auditor, web.ServerOptions{
		Port:           port,
		Payments:       verifier,
		RequirePayment: cfg.Payment.Enforce,
		AIConfigured:   cfg.AI.APIKey != "",
	})

	// Graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		log.Println("Shutting down server...")
		if err := server.Stop(); err != nil {
			log.Printf("Server forced to shutdown: %v", err)
		}
		os.Exit(0)
	}()

	log.Printf("Starting Solidity Armor on port %s", port)
	log.Printf("Dashboard URL: http://localhost:%s", port)
	log.Printf("API URL: http://localhost:%s/api/v1", port)

	if err := server.Start(); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
