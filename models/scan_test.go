package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRiskSummaryFor(t *testing.T) {
	tests := []struct {
		name       string
		severities []Severity
		expected   RiskLevel
	}{
		{"empty list", nil, RiskLevelNone},
		{"single low", []Severity{SeverityLow}, RiskLevelLow},
		{"single medium", []Severity{SeverityMedium}, RiskLevelMedium},
		{"single high", []Severity{SeverityHigh}, RiskLevelHigh},
		{"single critical", []Severity{SeverityCritical}, RiskLevelHigh},
		{"low then critical", []Severity{SeverityLow, SeverityCritical}, RiskLevelHigh},
		{"medium beats low", []Severity{SeverityLow, SeverityMedium, SeverityLow}, RiskLevelMedium},
		{"high beats everything", []Severity{SeverityLow, SeverityMedium, SeverityHigh}, RiskLevelHigh},
		{"unrecognized only", []Severity{Severity("Extreme")}, RiskLevelNone},
		{"unrecognized mixed with low", []Severity{Severity("Extreme"), SeverityLow}, RiskLevelLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var vulns []Vulnerability
			for _, sev := range tt.severities {
				vulns = append(vulns, Vulnerability{Type: "Test", Severity: sev})
			}
			assert.Equal(t, tt.expected, RiskSummaryFor(vulns))
		})
	}
}

func TestRiskSummaryForIsTotal(t *testing.T) {
	// Whatever the input, the result is exactly one of the four labels.
	valid := map[RiskLevel]bool{
		RiskLevelNone:   true,
		RiskLevelLow:    true,
		RiskLevelMedium: true,
		RiskLevelHigh:   true,
	}

	inputs := [][]Vulnerability{
		nil,
		{},
		{{Severity: "garbage"}},
		{{Severity: SeverityCritical}, {Severity: ""}},
		{{Severity: SeverityLow}, {Severity: SeverityMedium}, {Severity: SeverityHigh}, {Severity: SeverityCritical}},
	}

	for _, in := range inputs {
		assert.True(t, valid[RiskSummaryFor(in)])
	}
}

func TestScanStatusTransitions(t *testing.T) {
	// Forward path
	assert.True(t, ScanStatusPending.CanTransitionTo(ScanStatusAnalyzing))
	assert.True(t, ScanStatusAnalyzing.CanTransitionTo(ScanStatusCompleted))
	assert.True(t, ScanStatusAnalyzing.CanTransitionTo(ScanStatusFailed))
	assert.True(t, ScanStatusPending.CanTransitionTo(ScanStatusFailed))

	// Completed never comes straight from Pending
	assert.False(t, ScanStatusPending.CanTransitionTo(ScanStatusCompleted))

	// No regressions, no transitions out of terminal states
	assert.False(t, ScanStatusAnalyzing.CanTransitionTo(ScanStatusPending))
	assert.False(t, ScanStatusCompleted.CanTransitionTo(ScanStatusAnalyzing))
	assert.False(t, ScanStatusCompleted.CanTransitionTo(ScanStatusFailed))
	assert.False(t, ScanStatusFailed.CanTransitionTo(ScanStatusCompleted))
	assert.False(t, ScanStatusFailed.CanTransitionTo(ScanStatusPending))

	assert.True(t, ScanStatusCompleted.IsTerminal())
	assert.True(t, ScanStatusFailed.IsTerminal())
	assert.False(t, ScanStatusPending.IsTerminal())
	assert.False(t, ScanStatusAnalyzing.IsTerminal())
}

func TestValidSeverity(t *testing.T) {
	for _, sev := range []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical} {
		assert.True(t, ValidSeverity(sev))
	}
	assert.False(t, ValidSeverity("Extreme"))
	assert.False(t, ValidSeverity(""))
	assert.False(t, ValidSeverity("low")) // case sensitive
}

func TestMarshalScanFields(t *testing.T) {
	scan := &Scan{
		Vulnerabilities: []Vulnerability{
			{Type: "Reentrancy", Description: "external call before state update", RiskScore: 8, Severity: SeverityHigh},
		},
	}

	err := scan.MarshalScanFields()
	require.NoError(t, err)
	assert.Contains(t, scan.VulnerabilitiesJSON, "Reentrancy")

	restored := &Scan{VulnerabilitiesJSON: scan.VulnerabilitiesJSON}
	err = restored.UnmarshalScanFields()
	require.NoError(t, err)
	require.Len(t, restored.Vulnerabilities, 1)
	assert.Equal(t, 8, restored.Vulnerabilities[0].RiskScore)
	assert.Equal(t, SeverityHigh, restored.Vulnerabilities[0].Severity)
}

func TestMarshalScanFieldsNilVulnerabilities(t *testing.T) {
	scan := &Scan{}
	require.NoError(t, scan.MarshalScanFields())
	assert.Equal(t, "[]", scan.VulnerabilitiesJSON)

	empty := &Scan{VulnerabilitiesJSON: ""}
	require.NoError(t, empty.UnmarshalScanFields())
	assert.NotNil(t, empty.Vulnerabilities)
	assert.Len(t, empty.Vulnerabilities, 0)
}

func TestCountBySeverity(t *testing.T) {
	vulns := []Vulnerability{
		{Severity: SeverityHigh},
		{Severity: SeverityHigh},
		{Severity: SeverityLow},
	}
	counts := CountBySeverity(vulns)
	assert.Equal(t, 2, counts[SeverityHigh])
	assert.Equal(t, 1, counts[SeverityLow])
	assert.Equal(t, 0, counts[SeverityCritical])
}
