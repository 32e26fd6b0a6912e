package notifier

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solidity-armor/models"
)

func testScan(status models.ScanStatus) *models.Scan {
	return &models.Scan{
		ID:           "scan-1",
		OwnerID:      "0xabc",
		ContractName: "Vault.sol",
		Status:       status,
		RiskSummary:  models.RiskLevelHigh,
		Summary:      "One high-severity reentrancy issue.",
		Vulnerabilities: []models.Vulnerability{
			{Type: "Reentrancy", Description: "withdraw() sends before zeroing balance", RiskScore: 8, Severity: models.SeverityHigh},
		},
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
}

func TestSendScanAlertHighRisk(t *testing.T) {
	var received SlackMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sn := NewSlackNotifier(server.URL, "solidity-armor", "#alerts", ":shield:")
	err := sn.SendScanAlert(testScan(models.ScanStatusCompleted))
	require.NoError(t, err)

	assert.Contains(t, received.Text, "High-Risk Contract Detected")
	assert.Contains(t, received.Text, "Vault.sol")
	assert.Equal(t, "#alerts", received.Channel)
	require.Len(t, received.Attachments, 1)
	assert.Equal(t, "warning", received.Attachments[0].Color)
}

func TestSendScanAlertFailure(t *testing.T) {
	var received SlackMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	scan := testScan(models.ScanStatusFailed)
	scan.Vulnerabilities = nil
	scan.Summary = ""
	scan.RiskSummary = ""

	sn := NewSlackNotifier(server.URL, "solidity-armor", "#alerts", ":shield:")
	require.NoError(t, sn.SendScanAlert(scan))

	assert.Contains(t, received.Text, "Analysis Failed")
	require.Len(t, received.Attachments, 1)
	assert.Equal(t, "danger", received.Attachments[0].Color)
}

func TestSendScanAlertClientErrorNotRetried(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	sn := NewSlackNotifier(server.URL, "solidity-armor", "#alerts", ":shield:")
	sn.retryDelay = 0

	err := sn.SendScanAlert(testScan(models.ScanStatusCompleted))
	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestValidateConfiguration(t *testing.T) {
	sn := NewSlackNotifier("", "u", "#c", ":e:")
	assert.Error(t, sn.ValidateConfiguration())

	sn = NewSlackNotifier("http://example.com/hook", "u", "#c", ":e:")
	assert.Error(t, sn.ValidateConfiguration())

	sn = NewSlackNotifier("https://hooks.slack.com/services/T/B/X", "u", "#c", ":e:")
	assert.NoError(t, sn.ValidateConfiguration())
}
