package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	verbose bool

	// Version information
	appVersion string
	appCommit  string
	appDate    string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "solidity-armor",
	Short: "AI-powered vulnerability scanner for Solidity smart contracts",
	Long: `Solidity Armor analyzes Solidity smart contracts for security
vulnerabilities such as reentrancy, integer overflow, and access control
flaws, using a large language model as the analysis engine.

Features:
- Contract submission by file upload or URL
- Severity scoring and risk classification per finding
- AI-generated fix suggestions
- SQLite3 based scan history, scoped per owner
- Web dashboard and JSON API
- Optional on-chain payment verification
- Slack alerting for high-risk contracts`,
	Version: getVersionString(),
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute(version, commit, date string) error {
	appVersion = version
	appCommit = commit
	appDate = date
	rootCmd.Version = getVersionString()

	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.solidity-armor.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Bind flags to viper
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".solidity-armor" (without extension).
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".solidity-armor")
	}

	// Environment variables
	viper.SetEnvPrefix("SOLIDITY_ARMOR")
	viper.AutomaticEnv()

	// Read configuration file
	if err := viper.ReadInConfig(); err == nil {
		if verbose {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}

// getVersionString returns formatted version information
func getVersionString() string {
	if appVersion == "" {
		appVersion = "unknown"
	}
	if appCommit == "" {
		appCommit = "unknown"
	}
	if appDate == "" {
		appDate = "unknown"
	}

	return fmt.Sprintf("%s (commit: %s, date: %s)", appVersion, appCommit, appDate)
}
