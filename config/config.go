package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Database     DatabaseConfig     `yaml:"database" mapstructure:"database"`
	AI           AIConfig           `yaml:"ai" mapstructure:"ai"`
	Server       ServerConfig       `yaml:"server" mapstructure:"server"`
	Payment      PaymentConfig      `yaml:"payment" mapstructure:"payment"`
	Notification NotificationConfig `yaml:"notification" mapstructure:"notification"`
	Logging      LoggingConfig      `yaml:"logging" mapstructure:"logging"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"`
	Path   string `yaml:"path" mapstructure:"path"`
}

// AIConfig configures the analysis provider
type AIConfig struct {
	BaseURL        string `yaml:"base_url" mapstructure:"base_url"`
	APIKey         string `yaml:"api_key" mapstructure:"api_key"`
	Model          string `yaml:"model" mapstructure:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
}

// ServerConfig configures the web server
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// PaymentConfig configures on-chain payment verification. When Enforce is
// false, scan requests are accepted without a payment proof.
type PaymentConfig struct {
	Enforce   bool   `yaml:"enforce" mapstructure:"enforce"`
	RPCURL    string `yaml:"rpc_url" mapstructure:"rpc_url"`
	Recipient string `yaml:"recipient" mapstructure:"recipient"`
	MinFeeWei string `yaml:"min_fee_wei" mapstructure:"min_fee_wei"`
}

// NotificationConfig configures Slack alerting
type NotificationConfig struct {
	Enabled         bool   `yaml:"enabled" mapstructure:"enabled"`
	SlackWebhookURL string `yaml:"slack_webhook_url" mapstructure:"slack_webhook_url"`
	Channel         string `yaml:"channel" mapstructure:"channel"`
	Username        string `yaml:"username" mapstructure:"username"`
	IconEmoji       string `yaml:"icon_emoji" mapstructure:"icon_emoji"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Output string `yaml:"output" mapstructure:"output"`
	File   string `yaml:"file" mapstructure:"file"`
}

var config *Config = nil

func GetConfig() *Config {
	if config == nil {
		err := LoadConfig(os.Getenv("SOLIDITY_ARMOR_CONFIG_PATH"))
		if err != nil {
			log.Fatal("Failed to load config:", err)
			return getMinimalConfig()
		}
	}
	return config
}

// GetDSN returns the data source name for the database connection
func (dc *DatabaseConfig) GetDSN() string {
	return dc.Path
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) error {
	// Set default values
	setDefaults()

	// Load from file if specified
	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		// Look for config file in standard locations
		viper.SetConfigName(".solidity-armor")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
		viper.AddConfigPath("/etc/solidity-armor")
	}

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and environment variables
	}

	// Override with environment variables
	viper.SetEnvPrefix("SOLIDITY_ARMOR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Unmarshal config
	loadConfig := &Config{}
	if err := viper.Unmarshal(loadConfig); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate and set defaults for computed values
	if err := validateAndSetDefaults(loadConfig); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	config = loadConfig
	return nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Database defaults
	viper.SetDefault("database.driver", "sqlite3")
	viper.SetDefault("database.path", "./solidity_armor.db")

	// AI defaults
	viper.SetDefault("ai.base_url", "https://api.openai.com/v1")
	viper.SetDefault("ai.model", "gpt-4-turbo")
	viper.SetDefault("ai.timeout_seconds", 60)

	// Server defaults
	viper.SetDefault("server.port", 8080)

	// Payment defaults
	viper.SetDefault("payment.enforce", false)
	viper.SetDefault("payment.min_fee_wei", "5000000000000000") // 0.005 ETH

	// Notification defaults
	viper.SetDefault("notification.enabled", false)
	viper.SetDefault("notification.channel", "#security-alerts")
	viper.SetDefault("notification.username", "solidity-armor")
	viper.SetDefault("notification.icon_emoji", ":shield:")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.output", "stdout")
}

// validateAndSetDefaults validates configuration and sets computed defaults
func validateAndSetDefaults(config *Config) error {
	// Expand environment variables in paths
	config.Database.Path = os.ExpandEnv(config.Database.Path)

	// Ensure database directory exists
	if config.Database.Driver == "sqlite3" {
		dbDir := filepath.Dir(config.Database.Path)
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// Fall back to the conventional provider variable when no key is configured
	if config.AI.APIKey == "" {
		config.AI.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	if config.Payment.Enforce {
		if config.Payment.RPCURL == "" {
			return fmt.Errorf("payment.rpc_url is required when payment.enforce is set")
		}
		if config.Payment.Recipient == "" {
			return fmt.Errorf("payment.recipient is required when payment.enforce is set")
		}
	}

	return nil
}

// getMinimalConfig returns a minimal configuration with defaults
func getMinimalConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver: "sqlite3",
			Path:   "./solidity_armor.db",
		},
		AI: AIConfig{
			BaseURL:        "https://api.openai.com/v1",
			Model:          "gpt-4-turbo",
			TimeoutSeconds: 60,
		},
		Server: ServerConfig{
			Port: 8080,
		},
		Payment: PaymentConfig{
			Enforce:   false,
			MinFeeWei: "5000000000000000",
		},
		Notification: NotificationConfig{
			Enabled:   false,
			Channel:   "#security-alerts",
			Username:  "solidity-armor",
			IconEmoji: ":shield:",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: "stdout",
		},
	}
}

// SaveConfig saves the current configuration to a file
func SaveConfig(config *Config, filePath string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GenerateDefaultConfig creates a default configuration file
func GenerateDefaultConfig(filePath string) error {
	config := getMinimalConfig()
	return SaveConfig(config, filePath)
}
