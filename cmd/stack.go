package cmd

import (
	"fmt"
	"math/big"
	"time"

	"solidity-armor/ai"
	"solidity-armor/audit"
	"solidity-armor/config"
	"solidity-armor/notifier"
	"solidity-armor/payment"
)

// buildGateway constructs the analysis gateway from configuration.
func buildGateway(cfg *config.Config) (*ai.Gateway, error) {
	client, err := ai.NewClient(ai.ClientConfig{
		APIKey:  cfg.AI.APIKey,
		BaseURL: cfg.AI.BaseURL,
		Model:   cfg.AI.Model,
		Timeout: time.Duration(cfg.AI.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create analysis client: %w", err)
	}
	return ai.NewGateway(client), nil
}

// buildNotifier constructs the Slack notifier, or nil when alerting is off.
func buildNotifier(cfg *config.Config) audit.Notifier {
	if !cfg.Notification.Enabled || cfg.Notification.SlackWebhookURL == "" {
		return nil
	}
	return notifier.NewSlackNotifier(
		cfg.Notification.SlackWebhookURL,
		cfg.Notification.Username,
		cfg.Notification.Channel,
		cfg.Notification.IconEmoji,
	)
}

// buildVerifier constructs the payment verifier, or nil when enforcement is off.
func buildVerifier(cfg *config.Config) (payment.Verifier, error) {
	if !cfg.Payment.Enforce {
		return nil, nil
	}

	minWei, ok := new(big.Int).SetString(cfg.Payment.MinFeeWei, 10)
	if !ok {
		return nil, fmt.Errorf("invalid payment.min_fee_wei: %s", cfg.Payment.MinFeeWei)
	}

	return payment.NewEthVerifier(cfg.Payment.RPCURL, cfg.Payment.Recipient, minWei)
}
