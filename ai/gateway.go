package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"solidity-armor/models"
)

var (
	// ErrUpstreamUnavailable means the analysis provider could not be reached
	// or returned an error response.
	ErrUpstreamUnavailable = errors.New("analysis provider unavailable")
	// ErrMalformedResponse means the provider answered but the reply did not
	// conform to the required report shape.
	ErrMalformedResponse = errors.New("malformed analysis response")
)

// ChatCompleter is the transport the gateway talks through. *Client satisfies it.
type ChatCompleter interface {
	Chat(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Gateway turns raw model replies into validated audit reports.
type Gateway struct {
	client ChatCompleter
}

// AnalysisReport is a validated vulnerability report for one contract.
type AnalysisReport struct {
	Vulnerabilities []models.Vulnerability
	Summary         string
}

// NewGateway creates a gateway over the given chat client.
func NewGateway(client ChatCompleter) *Gateway {
	return &Gateway{client: client}
}

type rawReport struct {
	Vulnerabilities []rawFinding `json:"vulnerabilities"`
	Summary         string       `json:"summary"`
}

type rawFinding struct {
	Type        string      `json:"type"`
	Description string      `json:"description"`
	RiskScore   json.Number `json:"riskScore"`
	Severity    string      `json:"severity"`
}

type rawFix struct {
	SuggestedFix string `json:"suggestedFix"`
}

// AnalyzeContract submits Solidity source for analysis and returns the
// validated report. A reply that fails validation is rejected in full.
func (g *Gateway) AnalyzeContract(ctx context.Context, source string) (*AnalysisReport, error) {
	reply, err := g.client.Chat(ctx, analyzeSystemPrompt, analyzeUserPrompt(source))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	report, err := parseAnalysisReply(reply)
	if err != nil {
		log.Printf("Rejected analysis reply: %v", err)
		return nil, err
	}

	return report, nil
}

// SuggestFix asks the provider for a remediation of one finding. The finding
// report is the serialized vulnerability the caller wants fixed.
func (g *Gateway) SuggestFix(ctx context.Context, source, findingReport string) (string, error) {
	reply, err := g.client.Chat(ctx, fixSystemPrompt, fixUserPrompt(source, findingReport))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	payload, err := extractJSON(reply)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	var fix rawFix
	if err := json.Unmarshal([]byte(payload), &fix); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if strings.TrimSpace(fix.SuggestedFix) == "" {
		return "", fmt.Errorf("%w: empty suggestedFix", ErrMalformedResponse)
	}

	return fix.SuggestedFix, nil
}

func parseAnalysisReply(reply string) (*AnalysisReport, error) {
	payload, err := extractJSON(reply)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	dec := json.NewDecoder(strings.NewReader(payload))
	dec.UseNumber()

	var raw rawReport
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if strings.TrimSpace(raw.Summary) == "" {
		return nil, fmt.Errorf("%w: missing summary", ErrMalformedResponse)
	}

	report := &AnalysisReport{
		Vulnerabilities: make([]models.Vulnerability, 0, len(raw.Vulnerabilities)),
		Summary:         raw.Summary,
	}

	for i, f := range raw.Vulnerabilities {
		vuln, err := validateFinding(f)
		if err != nil {
			return nil, fmt.Errorf("%w: finding %d: %v", ErrMalformedResponse, i, err)
		}
		report.Vulnerabilities = append(report.Vulnerabilities, vuln)
	}

	return report, nil
}

func validateFinding(f rawFinding) (models.Vulnerability, error) {
	if strings.TrimSpace(f.Type) == "" {
		return models.Vulnerability{}, fmt.Errorf("missing type")
	}

	if strings.TrimSpace(f.Description) == "" {
		return models.Vulnerability{}, fmt.Errorf("missing description")
	}

	severity := models.Severity(f.Severity)
	if !models.ValidSeverity(severity) {
		return models.Vulnerability{}, fmt.Errorf("invalid severity %q", f.Severity)
	}

	score, err := f.RiskScore.Int64()
	if err != nil {
		return models.Vulnerability{}, fmt.Errorf("riskScore %q is not an integer", f.RiskScore.String())
	}
	if score < 1 || score > 10 {
		return models.Vulnerability{}, fmt.Errorf("riskScore %d out of range", score)
	}

	return models.Vulnerability{
		Type:        f.Type,
		Description: f.Description,
		RiskScore:   int(score),
		Severity:    severity,
	}, nil
}
