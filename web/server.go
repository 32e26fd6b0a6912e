package web

import (
	"fmt"
	"net/http"

	"solidity-armor/audit"
	"solidity-armor/db"
	"solidity-armor/payment"
	"solidity-armor/web/service"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/template/html/v2"
)

// AppServer represents the web application server
type AppServer struct {
	app       *fiber.App
	database  *db.Database
	scanSvc   *service.ScanService
	healthSvc *service.HealthService
	port      string
}

// ServerOptions configures an AppServer.
type ServerOptions struct {
	Port           string
	Payments       payment.Verifier
	RequirePayment bool
	AIConfigured   bool
}

// NewAppServer creates a new application server instance
func NewAppServer(database *db.Database, auditor *audit.Service, opts ServerOptions) *AppServer {
	// HTML template engine
	engine := html.New("./web/templates", ".html")

	// Fiber app with template engine
	app := fiber.New(fiber.Config{
		Views:       engine,
		ViewsLayout: "layouts/main",
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New())

	server := &AppServer{
		app:       app,
		database:  database,
		scanSvc:   service.NewScanService(database, auditor, opts.Payments, opts.RequirePayment),
		healthSvc: service.NewHealthService(database, opts.AIConfigured),
		port:      opts.Port,
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all web routes
func (ds *AppServer) setupRoutes() {
	// Static files
	ds.app.Static("/static", "./web/static")

	// Web pages
	ds.app.Get("/", ds.handleDashboard)
	ds.app.Get("/scans", ds.handleScans)
	ds.app.Get("/scans/:id", ds.handleScanDetail)

	// API endpoints
	api := ds.app.Group("/api/v1")
	api.Get("/health", ds.healthSvc.HandleHealthCheck)
	api.Get("/health/db", ds.healthSvc.HandleAPIHealthDB)
	api.Get("/health/ai", ds.healthSvc.HandleAPIHealthAI)
	api.Get("/stats", ds.handleStats)

	// Scan management API
	api.Post("/scans", ds.scanSvc.HandleAPISubmitScan)
	api.Get("/scans", ds.scanSvc.HandleAPIListScans)
	api.Get("/scans/:id", ds.scanSvc.HandleAPIScanDetail)
	api.Post("/scans/:id/fix", ds.scanSvc.HandleAPIFixSuggestion)
}

// Start starts the web server
func (ds *AppServer) Start() error {
	fmt.Printf("🛡️ Starting Solidity Armor on port %s\n", ds.port)
	return ds.app.Listen(":" + ds.port)
}

// Stop gracefully stops the web server
func (ds *AppServer) Stop() error {
	return ds.app.Shutdown()
}

// Test routes a request through the app without a network listener.
func (ds *AppServer) Test(req *http.Request, msTimeout ...int) (*http.Response, error) {
	return ds.app.Test(req, msTimeout...)
}

func (ds *AppServer) handleStats(c *fiber.Ctx) error {
	stats, err := service.GetStats(ds.database)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to get stats"})
	}
	return c.JSON(stats)
}
