package audit

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solidity-armor/ai"
	"solidity-armor/db"
	"solidity-armor/ingest"
	"solidity-armor/models"
)

const testContract = `pragma solidity ^0.8.0;
contract Vault {
    mapping(address => uint256) balances;
    function withdraw() external {
        (bool ok, ) = msg.sender.call{value: balances[msg.sender]}("");
        require(ok);
        balances[msg.sender] = 0;
    }
}`

type chatStub struct {
	reply string
	err   error
	calls int
}

func (c *chatStub) Chat(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	c.calls++
	if c.err != nil {
		return "", c.err
	}
	return c.reply, nil
}

type alertRecorder struct {
	alerts []*models.Scan
}

func (a *alertRecorder) SendScanAlert(scan *models.Scan) error {
	a.alerts = append(a.alerts, scan)
	return nil
}

func setupService(t *testing.T, chat *chatStub, notifier Notifier) (*Service, *db.Database) {
	tempDir, err := os.MkdirTemp("", "audit_test_*")
	require.NoError(t, err)

	database, err := db.NewDatabase("sqlite3", filepath.Join(tempDir, "test.db"))
	require.NoError(t, err)

	t.Cleanup(func() {
		database.Close()
		os.RemoveAll(tempDir)
	})

	svc := NewService(database, ai.NewGateway(chat), ingest.NewAcquirer(), notifier)
	return svc, database
}

func TestSubmitCompletesScan(t *testing.T) {
	chat := &chatStub{reply: `{
		"vulnerabilities": [
			{"type": "Reentrancy", "description": "withdraw() sends before zeroing balance", "riskScore": 8, "severity": "High"}
		],
		"summary": "One high-severity reentrancy issue."
	}`}
	svc, database := setupService(t, chat, nil)

	result := svc.Submit(context.Background(), SubmitInput{
		OwnerID:  "0xabc",
		FileName: "Vault.sol",
		FileData: []byte(testContract),
	})

	require.False(t, result.IsError, result.Message)
	require.NotEmpty(t, result.ScanID)
	assert.Contains(t, result.Message, "Vault.sol")
	assert.Contains(t, result.Message, "High")

	scan, err := database.GetScanByOwnerAndID("0xabc", result.ScanID)
	require.NoError(t, err)
	assert.Equal(t, models.ScanStatusCompleted, scan.Status)
	assert.Equal(t, models.RiskLevelHigh, scan.RiskSummary)
	assert.Equal(t, "One high-severity reentrancy issue.", scan.Summary)
	require.Len(t, scan.Vulnerabilities, 1)
	assert.Equal(t, "Reentrancy", scan.Vulnerabilities[0].Type)
}

func TestSubmitCleanContract(t *testing.T) {
	chat := &chatStub{reply: `{"vulnerabilities": [], "summary": "No issues found."}`}
	svc, database := setupService(t, chat, nil)

	result := svc.Submit(context.Background(), SubmitInput{
		OwnerID:  "0xabc",
		FileName: "Safe.sol",
		FileData: []byte("contract Safe {}"),
	})

	require.False(t, result.IsError)
	scan, err := database.GetScanByOwnerAndID("0xabc", result.ScanID)
	require.NoError(t, err)
	assert.Equal(t, models.ScanStatusCompleted, scan.Status)
	assert.Equal(t, models.RiskLevelNone, scan.RiskSummary)
	assert.Empty(t, scan.Vulnerabilities)
}

func TestSubmitAcquisitionFailureCreatesNoRecord(t *testing.T) {
	chat := &chatStub{}
	svc, database := setupService(t, chat, nil)

	result := svc.Submit(context.Background(), SubmitInput{
		OwnerID:  "0xabc",
		FileName: "NotSolidity.txt",
		FileData: []byte("hello"),
	})

	assert.True(t, result.IsError)
	assert.Empty(t, result.ScanID)
	assert.Zero(t, chat.calls)

	scans, err := database.GetScansByOwner("0xabc", 10)
	require.NoError(t, err)
	assert.Empty(t, scans)
}

func TestSubmitUpstreamFailureMarksScanFailed(t *testing.T) {
	chat := &chatStub{err: errors.New("connection refused")}
	recorder := &alertRecorder{}
	svc, database := setupService(t, chat, recorder)

	result := svc.Submit(context.Background(), SubmitInput{
		OwnerID:  "0xabc",
		FileName: "Vault.sol",
		FileData: []byte(testContract),
	})

	require.True(t, result.IsError)
	require.NotEmpty(t, result.ScanID)
	assert.Contains(t, result.Message, "Vault.sol")
	assert.NotContains(t, result.Message, "connection refused")

	scan, err := database.GetScanByOwnerAndID("0xabc", result.ScanID)
	require.NoError(t, err)
	assert.Equal(t, models.ScanStatusFailed, scan.Status)
	assert.Empty(t, scan.Vulnerabilities)
	assert.Contains(t, scan.Summary, "connection refused")

	require.Len(t, recorder.alerts, 1)
	assert.Equal(t, result.ScanID, recorder.alerts[0].ID)
}

func TestSubmitMalformedReplyMarksScanFailed(t *testing.T) {
	chat := &chatStub{reply: `{
		"vulnerabilities": [
			{"type": "Overflow", "description": "d", "riskScore": 5, "severity": "Extreme"}
		],
		"summary": "One finding."
	}`}
	svc, database := setupService(t, chat, nil)

	result := svc.Submit(context.Background(), SubmitInput{
		OwnerID:  "0xabc",
		FileName: "Vault.sol",
		FileData: []byte(testContract),
	})

	require.True(t, result.IsError)
	scan, err := database.GetScanByOwnerAndID("0xabc", result.ScanID)
	require.NoError(t, err)
	assert.Equal(t, models.ScanStatusFailed, scan.Status)
	assert.Empty(t, scan.Vulnerabilities)
}

func TestSubmitNotifiesOnHighRisk(t *testing.T) {
	chat := &chatStub{reply: `{
		"vulnerabilities": [
			{"type": "Reentrancy", "description": "d", "riskScore": 9, "severity": "Critical"}
		],
		"summary": "Critical issue."
	}`}
	recorder := &alertRecorder{}
	svc, _ := setupService(t, chat, recorder)

	result := svc.Submit(context.Background(), SubmitInput{
		OwnerID:  "0xabc",
		FileName: "Vault.sol",
		FileData: []byte(testContract),
	})

	require.False(t, result.IsError)
	require.Len(t, recorder.alerts, 1)
	assert.Equal(t, models.RiskLevelHigh, recorder.alerts[0].RiskSummary)
}

func TestSubmitDoesNotNotifyOnLowRisk(t *testing.T) {
	chat := &chatStub{reply: `{
		"vulnerabilities": [
			{"type": "Style", "description": "d", "riskScore": 2, "severity": "Low"}
		],
		"summary": "Minor issue."
	}`}
	recorder := &alertRecorder{}
	svc, _ := setupService(t, chat, recorder)

	result := svc.Submit(context.Background(), SubmitInput{
		OwnerID:  "0xabc",
		FileName: "Vault.sol",
		FileData: []byte(testContract),
	})

	require.False(t, result.IsError)
	assert.Empty(t, recorder.alerts)
}

func TestRequestFixSuggestion(t *testing.T) {
	chat := &chatStub{reply: `{
		"vulnerabilities": [
			{"type": "Reentrancy", "description": "d", "riskScore": 8, "severity": "High"}
		],
		"summary": "One issue."
	}`}
	svc, database := setupService(t, chat, nil)

	result := svc.Submit(context.Background(), SubmitInput{
		OwnerID:  "0xabc",
		FileName: "Vault.sol",
		FileData: []byte(testContract),
	})
	require.False(t, result.IsError)

	chat.reply = `{"suggestedFix": "Zero the balance before the external call."}`
	fix, err := svc.RequestFixSuggestion(context.Background(), "0xabc", result.ScanID, 0)
	require.NoError(t, err)
	assert.Contains(t, fix, "Zero the balance")

	// The fix request must not mutate the stored scan.
	scan, err := database.GetScanByOwnerAndID("0xabc", result.ScanID)
	require.NoError(t, err)
	assert.Equal(t, models.ScanStatusCompleted, scan.Status)
	assert.Empty(t, scan.Vulnerabilities[0].SuggestedFix)
}

func TestRequestFixSuggestionBadIndex(t *testing.T) {
	chat := &chatStub{reply: `{"vulnerabilities": [], "summary": "Clean."}`}
	svc, _ := setupService(t, chat, nil)

	result := svc.Submit(context.Background(), SubmitInput{
		OwnerID:  "0xabc",
		FileName: "Safe.sol",
		FileData: []byte("contract Safe {}"),
	})
	require.False(t, result.IsError)

	_, err := svc.RequestFixSuggestion(context.Background(), "0xabc", result.ScanID, 0)
	assert.True(t, errors.Is(err, ErrFindingNotFound))
}

func TestRequestFixSuggestionWrongOwner(t *testing.T) {
	chat := &chatStub{reply: `{
		"vulnerabilities": [
			{"type": "Reentrancy", "description": "d", "riskScore": 8, "severity": "High"}
		],
		"summary": "One issue."
	}`}
	svc, _ := setupService(t, chat, nil)

	result := svc.Submit(context.Background(), SubmitInput{
		OwnerID:  "0xabc",
		FileName: "Vault.sol",
		FileData: []byte(testContract),
	})
	require.False(t, result.IsError)

	_, err := svc.RequestFixSuggestion(context.Background(), "0xother", result.ScanID, 0)
	assert.True(t, errors.Is(err, db.ErrScanNotFound))
}
