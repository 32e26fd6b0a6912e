package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"solidity-armor/ai"
	"solidity-armor/db"
	"solidity-armor/ingest"
	"solidity-armor/models"
)

// ErrFindingNotFound means the requested finding index does not exist on the scan.
var ErrFindingNotFound = errors.New("finding not found")

// Notifier receives alerts for completed high-risk scans and failures.
// Delivery is best-effort and never blocks the audit pipeline.
type Notifier interface {
	SendScanAlert(scan *models.Scan) error
}

// Service drives a contract through the full audit pipeline:
// acquisition, record creation, analysis, and persistence of the outcome.
type Service struct {
	database *db.Database
	gateway  *ai.Gateway
	acquirer *ingest.Acquirer
	notifier Notifier
}

// SubmitInput is one audit request. Exactly one of FileName/FileData or URL
// must be set, matching ingest.Input.
type SubmitInput struct {
	OwnerID  string
	FileName string
	FileData []byte
	URL      string
}

// SubmitResult reports the outcome of an audit request to the caller.
type SubmitResult struct {
	Message string
	IsError bool
	ScanID  string
}

// NewService creates an audit service. The notifier may be nil, and the
// gateway may be nil when no analysis backend is configured; submissions are
// then rejected up front.
func NewService(database *db.Database, gateway *ai.Gateway, acquirer *ingest.Acquirer, notifier Notifier) *Service {
	return &Service{
		database: database,
		gateway:  gateway,
		acquirer: acquirer,
		notifier: notifier,
	}
}

// Submit runs one contract through the audit pipeline. Acquisition failures
// return without creating a record; once a record exists, any later failure
// marks it Failed and reports a generic error naming the contract.
func (s *Service) Submit(ctx context.Context, input SubmitInput) SubmitResult {
	if s.gateway == nil {
		return SubmitResult{Message: "Contract analysis is not configured.", IsError: true}
	}

	contract, err := s.acquirer.Acquire(ctx, ingest.Input{
		FileName: input.FileName,
		FileData: input.FileData,
		URL:      input.URL,
	})
	if err != nil {
		return SubmitResult{Message: err.Error(), IsError: true}
	}

	scan := &models.Scan{
		OwnerID:      input.OwnerID,
		ContractName: contract.DisplayName,
		Origin:       contract.Origin,
		SourceCode:   contract.Content,
	}
	if err := s.database.CreateScan(scan); err != nil {
		return SubmitResult{Message: err.Error(), IsError: true}
	}

	if err := s.database.MarkScanAnalyzing(input.OwnerID, scan.ID); err != nil {
		return s.failScan(scan, err)
	}

	report, err := s.gateway.AnalyzeContract(ctx, contract.Content)
	if err != nil {
		return s.failScan(scan, err)
	}

	risk := models.RiskSummaryFor(report.Vulnerabilities)
	if err := s.database.CompleteScan(input.OwnerID, scan.ID, report.Vulnerabilities, report.Summary, risk); err != nil {
		return s.failScan(scan, err)
	}

	log.Printf("Scan %s completed for %s: risk=%s findings=%d",
		scan.ID, contract.DisplayName, risk, len(report.Vulnerabilities))

	if risk == models.RiskLevelHigh {
		s.notify(input.OwnerID, scan.ID)
	}

	return SubmitResult{
		Message: fmt.Sprintf("Analysis of %s completed: %s risk, %d finding(s).",
			contract.DisplayName, risk, len(report.Vulnerabilities)),
		ScanID: scan.ID,
	}
}

// failScan marks the scan Failed and returns a generic error result. The
// underlying cause is recorded in the scan summary for later viewing, never
// in the caller-facing message.
func (s *Service) failScan(scan *models.Scan, cause error) SubmitResult {
	log.Printf("Scan %s failed for %s: %v", scan.ID, scan.ContractName, cause)

	if err := s.database.FailScan(scan.OwnerID, scan.ID, fmt.Sprintf("Analysis failed: %v", cause)); err != nil {
		log.Printf("Could not mark scan %s as failed: %v", scan.ID, err)
	}

	s.notify(scan.OwnerID, scan.ID)

	return SubmitResult{
		Message: fmt.Sprintf("Analysis of %s failed. Please try again later.", scan.ContractName),
		IsError: true,
		ScanID:  scan.ID,
	}
}

func (s *Service) notify(ownerID, scanID string) {
	if s.notifier == nil {
		return
	}

	scan, err := s.database.GetScanByOwnerAndID(ownerID, scanID)
	if err != nil {
		log.Printf("Could not load scan %s for notification: %v", scanID, err)
		return
	}

	if err := s.notifier.SendScanAlert(scan); err != nil {
		log.Printf("Notification for scan %s failed: %v", scanID, err)
	}
}

// RequestFixSuggestion asks the analysis provider for a remediation of one
// finding on a completed scan. The scan record itself is not modified.
func (s *Service) RequestFixSuggestion(ctx context.Context, ownerID, scanID string, findingIndex int) (string, error) {
	if s.gateway == nil {
		return "", ai.ErrUpstreamUnavailable
	}

	scan, err := s.database.GetScanByOwnerAndID(ownerID, scanID)
	if err != nil {
		return "", err
	}

	if findingIndex < 0 || findingIndex >= len(scan.Vulnerabilities) {
		return "", fmt.Errorf("%w: index %d on scan with %d finding(s)",
			ErrFindingNotFound, findingIndex, len(scan.Vulnerabilities))
	}

	finding, err := json.MarshalIndent(scan.Vulnerabilities[findingIndex], "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to serialize finding: %w", err)
	}

	return s.gateway.SuggestFix(ctx, scan.SourceCode, string(finding))
}
