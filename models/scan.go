package models

import (
	"encoding/json"
	"time"
)

// ScanStatus is the lifecycle state of a scan. Statuses only move forward:
// Pending -> Analyzing -> Completed|Failed.
type ScanStatus string

const (
	ScanStatusPending   ScanStatus = "Pending"
	ScanStatusAnalyzing ScanStatus = "Analyzing"
	ScanStatusCompleted ScanStatus = "Completed"
	ScanStatusFailed    ScanStatus = "Failed"
)

// CanTransitionTo reports whether moving from s to next is a legal forward
// step of the scan lifecycle. Completed and Failed are terminal.
func (s ScanStatus) CanTransitionTo(next ScanStatus) bool {
	switch s {
	case ScanStatusPending:
		return next == ScanStatusAnalyzing || next == ScanStatusFailed
	case ScanStatusAnalyzing:
		return next == ScanStatusCompleted || next == ScanStatusFailed
	default:
		return false
	}
}

// IsTerminal reports whether the status allows no further transitions.
func (s ScanStatus) IsTerminal() bool {
	return s == ScanStatusCompleted || s == ScanStatusFailed
}

// RiskLevel is the aggregate risk classification of a completed scan.
type RiskLevel string

const (
	RiskLevelNone   RiskLevel = "None"
	RiskLevelLow    RiskLevel = "Low"
	RiskLevelMedium RiskLevel = "Medium"
	RiskLevelHigh   RiskLevel = "High"
)

// Severity is the closed set of per-finding severity levels. Vulnerability
// types are free text (the model chooses them); severities are not.
type Severity string

const (
	SeverityLow      Severity = "Low"
	SeverityMedium   Severity = "Medium"
	SeverityHigh     Severity = "High"
	SeverityCritical Severity = "Critical"
)

// ValidSeverity reports whether s is one of the enumerated severity levels.
func ValidSeverity(s Severity) bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Vulnerability represents one finding within a scan.
type Vulnerability struct {
	Type         string   `json:"type"`
	Description  string   `json:"description"`
	RiskScore    int      `json:"riskScore"`
	Severity     Severity `json:"severity"`
	SuggestedFix string   `json:"suggestedFix,omitempty"`
}

// Scan represents one vulnerability-analysis job for one submitted contract.
type Scan struct {
	ID           string     `json:"id"`
	OwnerID      string     `json:"owner_id"`
	ContractName string     `json:"contract_name"`
	Origin       string     `json:"origin"` // source URL, or the file name for uploads
	Status       ScanStatus `json:"status"`
	RiskSummary  RiskLevel  `json:"risk_summary,omitempty"` // empty until Completed
	Summary      string     `json:"summary"`
	SourceCode   string     `json:"source_code"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`

	Vulnerabilities []Vulnerability `json:"vulnerabilities"`

	// JSON-serialized vulnerabilities for database storage
	VulnerabilitiesJSON string `json:"-"`
}

// MarshalScanFields marshals the vulnerability list into its JSON string for
// database storage.
func (s *Scan) MarshalScanFields() error {
	vulns := s.Vulnerabilities
	if vulns == nil {
		vulns = []Vulnerability{}
	}
	data, err := json.Marshal(vulns)
	if err != nil {
		return err
	}
	s.VulnerabilitiesJSON = string(data)
	return nil
}

// UnmarshalScanFields unmarshals the JSON string from database storage into
// the structured vulnerability list.
func (s *Scan) UnmarshalScanFields() error {
	if s.VulnerabilitiesJSON == "" {
		s.Vulnerabilities = []Vulnerability{}
		return nil
	}
	return json.Unmarshal([]byte(s.VulnerabilitiesJSON), &s.Vulnerabilities)
}

// RiskSummaryFor classifies a list of findings into a single aggregate risk
// label. First match wins: any High or Critical finding makes the whole scan
// High, then Medium, then Low; an empty list is None.
func RiskSummaryFor(vulnerabilities []Vulnerability) RiskLevel {
	hasMedium := false
	hasLow := false
	for _, v := range vulnerabilities {
		switch v.Severity {
		case SeverityHigh, SeverityCritical:
			return RiskLevelHigh
		case SeverityMedium:
			hasMedium = true
		case SeverityLow:
			hasLow = true
		}
	}
	if hasMedium {
		return RiskLevelMedium
	}
	if hasLow {
		return RiskLevelLow
	}
	return RiskLevelNone
}

// CountBySeverity returns the number of findings at each severity level.
func CountBySeverity(vulnerabilities []Vulnerability) map[Severity]int {
	counts := make(map[Severity]int)
	for _, v := range vulnerabilities {
		counts[v.Severity]++
	}
	return counts
}
