package web

import (
	"errors"
	"fmt"

	"solidity-armor/db"
	"solidity-armor/models"
	"solidity-armor/web/service"

	"github.com/gofiber/fiber/v2"
)

func (ds *AppServer) handleDashboard(c *fiber.Ctx) error {
	stats, err := service.GetStats(ds.database)
	if err != nil {
		return c.Status(500).SendString("Failed to load dashboard stats")
	}

	return c.Render("dashboard", fiber.Map{
		"Title": "Solidity Armor",
		"Stats": stats,
	})
}

func (ds *AppServer) handleScans(c *fiber.Ctx) error {
	owner := service.OwnerFromRequest(c)
	if owner == "" {
		return c.Render("scans", fiber.Map{
			"Title": "Contract Scans",
			"Scans": []*models.Scan{},
		})
	}

	scans, err := ds.database.GetScansByOwner(owner, 50)
	if err != nil {
		return c.Status(500).SendString("Failed to load scans")
	}

	return c.Render("scans", fiber.Map{
		"Title": "Contract Scans",
		"Owner": owner,
		"Scans": scans,
	})
}

func (ds *AppServer) handleScanDetail(c *fiber.Ctx) error {
	owner := service.OwnerFromRequest(c)
	if owner == "" {
		return c.Status(400).SendString("Owner address is required")
	}

	scan, err := ds.database.GetScanByOwnerAndID(owner, c.Params("id"))
	if err != nil {
		if errors.Is(err, db.ErrScanNotFound) {
			return c.Status(404).SendString("Scan not found")
		}
		return c.Status(500).SendString("Failed to load scan")
	}

	return c.Render("scan_detail", fiber.Map{
		"Title":          fmt.Sprintf("Scan Details - %s", scan.ContractName),
		"Scan":           scan,
		"SeverityCounts": models.CountBySeverity(scan.Vulnerabilities),
	})
}
