package notifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"solidity-armor/models"
)

// SlackNotifier handles Slack notifications
type SlackNotifier struct {
	webhookURL string
	username   string
	channel    string
	iconEmoji  string
	maxRetries int
	retryDelay time.Duration
	httpClient *http.Client
}

// NewSlackNotifier creates a new Slack notifier instance
func NewSlackNotifier(webhookURL, username, channel, iconEmoji string) *SlackNotifier {
	return &SlackNotifier{
		webhookURL: webhookURL,
		username:   username,
		channel:    channel,
		iconEmoji:  iconEmoji,
		maxRetries: 3,
		retryDelay: time.Second * 2,
		httpClient: &http.Client{
			Timeout: time.Second * 30,
		},
	}
}

// SlackMessage represents a Slack message structure
type SlackMessage struct {
	Text        string            `json:"text,omitempty"`
	Username    string            `json:"username,omitempty"`
	Channel     string            `json:"channel,omitempty"`
	IconEmoji   string            `json:"icon_emoji,omitempty"`
	Attachments []SlackAttachment `json:"attachments,omitempty"`
}

// SlackAttachment represents a Slack message attachment
type SlackAttachment struct {
	Color     string       `json:"color,omitempty"`
	Title     string       `json:"title,omitempty"`
	Text      string       `json:"text,omitempty"`
	Fields    []SlackField `json:"fields,omitempty"`
	Footer    string       `json:"footer,omitempty"`
	Timestamp int64        `json:"ts,omitempty"`
}

// SlackField represents a field in a Slack attachment
type SlackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// SendScanAlert sends an alert for a high-risk or failed scan.
func (sn *SlackNotifier) SendScanAlert(scan *models.Scan) error {
	message := sn.buildScanMessage(scan)
	return sn.sendMessage(message)
}

// SendCustomMessage sends a custom message to Slack
func (sn *SlackNotifier) SendCustomMessage(text string) error {
	message := &SlackMessage{
		Text:      text,
		Username:  sn.username,
		Channel:   sn.channel,
		IconEmoji: sn.iconEmoji,
	}

	return sn.sendMessage(message)
}

// buildScanMessage builds the alert message for one scan
func (sn *SlackNotifier) buildScanMessage(scan *models.Scan) *SlackMessage {
	color := "warning"
	mainText := fmt.Sprintf("⚠️ *High-Risk Contract Detected: %s*", scan.ContractName)
	if scan.Status == models.ScanStatusFailed {
		color = "danger"
		mainText = fmt.Sprintf("❌ *Contract Analysis Failed: %s*", scan.ContractName)
	}

	attachment := SlackAttachment{
		Color:     color,
		Title:     fmt.Sprintf("Owner: %s | Scan: %s", scan.OwnerID, scan.ID),
		Footer:    "Solidity Armor",
		Timestamp: time.Now().Unix(),
	}

	attachment.Fields = append(attachment.Fields,
		SlackField{
			Title: "Status",
			Value: string(scan.Status),
			Short: true,
		},
		SlackField{
			Title: "Risk Summary",
			Value: orDash(string(scan.RiskSummary)),
			Short: true,
		},
	)

	if len(scan.Vulnerabilities) > 0 {
		counts := models.CountBySeverity(scan.Vulnerabilities)
		breakdown := fmt.Sprintf(
			"🔴 Critical: %d | 🟠 High: %d | 🟡 Medium: %d | 🟢 Low: %d",
			counts[models.SeverityCritical],
			counts[models.SeverityHigh],
			counts[models.SeverityMedium],
			counts[models.SeverityLow],
		)
		attachment.Fields = append(attachment.Fields, SlackField{
			Title: "Findings",
			Value: breakdown,
			Short: false,
		})

		attachment.Fields = append(attachment.Fields, SlackField{
			Title: "Top Findings",
			Value: sn.formatFindingList(scan.Vulnerabilities, 5),
			Short: false,
		})
	}

	if scan.Summary != "" {
		attachment.Fields = append(attachment.Fields, SlackField{
			Title: "Summary",
			Value: truncate(scan.Summary, 300),
			Short: false,
		})
	}

	return &SlackMessage{
		Text:        mainText,
		Username:    sn.username,
		Channel:     sn.channel,
		IconEmoji:   sn.iconEmoji,
		Attachments: []SlackAttachment{attachment},
	}
}

// formatFindingList formats a list of findings for display
func (sn *SlackNotifier) formatFindingList(vulns []models.Vulnerability, maxShown int) string {
	var lines []string
	count := 0
	for _, vuln := range vulns {
		if count >= maxShown {
			remaining := len(vulns) - count
			lines = append(lines, fmt.Sprintf("... and %d more", remaining))
			break
		}

		emoji := getSeverityEmoji(vuln.Severity)
		line := fmt.Sprintf("%s *%s* (%s) - Score: %d/10", emoji, vuln.Type, vuln.Severity, vuln.RiskScore)
		if vuln.Description != "" {
			line += fmt.Sprintf("\n   %s", truncate(vuln.Description, 100))
		}
		lines = append(lines, line)
		count++
	}

	return strings.Join(lines, "\n")
}

// sendMessage sends a message to Slack with retry logic
func (sn *SlackNotifier) sendMessage(message *SlackMessage) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal Slack message: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= sn.maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(sn.retryDelay)
		}

		resp, err := sn.httpClient.Post(sn.webhookURL, "application/json", bytes.NewBuffer(payload))
		if err != nil {
			lastErr = fmt.Errorf("failed to send request: %w", err)
			continue
		}

		resp.Body.Close()

		if resp.StatusCode == http.StatusOK {
			return nil
		}

		lastErr = fmt.Errorf("slack API returned status %d", resp.StatusCode)

		// Don't retry for client errors
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			break
		}
	}

	return fmt.Errorf("failed to send Slack notification after %d attempts: %w", sn.maxRetries+1, lastErr)
}

// ValidateConfiguration validates the Slack notifier configuration
func (sn *SlackNotifier) ValidateConfiguration() error {
	if sn.webhookURL == "" {
		return fmt.Errorf("Slack webhook URL is required")
	}

	if !strings.HasPrefix(sn.webhookURL, "https://hooks.slack.com/") {
		return fmt.Errorf("invalid Slack webhook URL format")
	}

	return nil
}

func getSeverityEmoji(severity models.Severity) string {
	switch severity {
	case models.SeverityCritical:
		return "🔴"
	case models.SeverityHigh:
		return "🟠"
	case models.SeverityMedium:
		return "🟡"
	case models.SeverityLow:
		return "🟢"
	default:
		return "⚪"
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
