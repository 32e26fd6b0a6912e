package service

import (
	"errors"
	"io"

	"solidity-armor/audit"
	"solidity-armor/db"
	"solidity-armor/payment"

	"github.com/gofiber/fiber/v2"
)

// OwnerHeader carries the authenticated owner address, set by the identity
// layer in front of this service.
const OwnerHeader = "X-Owner-Address"

type ScanService struct {
	database       *db.Database
	auditor        *audit.Service
	payments       payment.Verifier
	requirePayment bool
}

func NewScanService(database *db.Database, auditor *audit.Service, payments payment.Verifier, requirePayment bool) *ScanService {
	return &ScanService{
		database:       database,
		auditor:        auditor,
		payments:       payments,
		requirePayment: requirePayment,
	}
}

// OwnerFromRequest resolves the owner address from the request. The header
// wins; the form field covers page form submissions.
func OwnerFromRequest(c *fiber.Ctx) string {
	if owner := c.Get(OwnerHeader); owner != "" {
		return owner
	}
	return c.FormValue("owner")
}

type fixRequest struct {
	FindingIndex int `json:"finding_index"`
}

// Scan management handlers

func (ss *ScanService) HandleAPISubmitScan(c *fiber.Ctx) error {
	owner := OwnerFromRequest(c)
	if owner == "" {
		return c.Status(400).JSON(fiber.Map{"error": "Owner address is required"})
	}

	if ss.requirePayment {
		txHash := c.FormValue("payment_tx")
		if err := ss.payments.VerifyPayment(c.UserContext(), txHash); err != nil {
			return c.Status(402).JSON(fiber.Map{"error": err.Error()})
		}
	}

	input := audit.SubmitInput{
		OwnerID: owner,
		URL:     c.FormValue("url"),
	}

	if fileHeader, err := c.FormFile("contract"); err == nil && fileHeader != nil {
		file, err := fileHeader.Open()
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "Could not read uploaded file"})
		}
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "Could not read uploaded file"})
		}
		input.FileName = fileHeader.Filename
		input.FileData = data
	}

	result := ss.auditor.Submit(c.UserContext(), input)
	if result.IsError {
		// No scan id means the submission never got past input validation.
		if result.ScanID == "" {
			return c.Status(400).JSON(fiber.Map{"error": result.Message})
		}
		return c.Status(502).JSON(fiber.Map{"error": result.Message, "scan_id": result.ScanID})
	}

	return c.Status(201).JSON(fiber.Map{
		"scan_id": result.ScanID,
		"message": result.Message,
	})
}

func (ss *ScanService) HandleAPIListScans(c *fiber.Ctx) error {
	owner := OwnerFromRequest(c)
	if owner == "" {
		return c.Status(400).JSON(fiber.Map{"error": "Owner address is required"})
	}

	limit := c.QueryInt("limit", 50)
	scans, err := ss.database.GetScansByOwner(owner, limit)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to get scans"})
	}

	return c.JSON(scans)
}

func (ss *ScanService) HandleAPIScanDetail(c *fiber.Ctx) error {
	owner := OwnerFromRequest(c)
	if owner == "" {
		return c.Status(400).JSON(fiber.Map{"error": "Owner address is required"})
	}

	scan, err := ss.database.GetScanByOwnerAndID(owner, c.Params("id"))
	if err != nil {
		if errors.Is(err, db.ErrScanNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "Scan not found"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "Failed to get scan"})
	}

	return c.JSON(scan)
}

func (ss *ScanService) HandleAPIFixSuggestion(c *fiber.Ctx) error {
	owner := OwnerFromRequest(c)
	if owner == "" {
		return c.Status(400).JSON(fiber.Map{"error": "Owner address is required"})
	}

	var req fixRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request body"})
	}

	fix, err := ss.auditor.RequestFixSuggestion(c.UserContext(), owner, c.Params("id"), req.FindingIndex)
	if err != nil {
		switch {
		case errors.Is(err, db.ErrScanNotFound):
			return c.Status(404).JSON(fiber.Map{"error": "Scan not found"})
		case errors.Is(err, audit.ErrFindingNotFound):
			return c.Status(404).JSON(fiber.Map{"error": "Finding not found"})
		default:
			return c.Status(502).JSON(fiber.Map{"error": "Could not generate a fix suggestion"})
		}
	}

	return c.JSON(fiber.Map{
		"scan_id":       c.Params("id"),
		"finding_index": req.FindingIndex,
		"suggested_fix": fix,
	})
}
