package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"text/tabwriter"

	"solidity-armor/audit"
	"solidity-armor/config"
	"solidity-armor/db"
	"solidity-armor/ingest"

	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Analyze a contract from the command line",
	Long: `Submit a Solidity contract for analysis without going through the web
server. The result is stored in the scan history and printed to stdout.`,
	RunE: runScan,
}

var (
	scanFile  string
	scanURL   string
	scanOwner string
)

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringVarP(&scanFile, "file", "f", "", "path to a .sol file")
	scanCmd.Flags().StringVarP(&scanURL, "url", "u", "", "URL to fetch the contract from")
	scanCmd.Flags().StringVarP(&scanOwner, "owner", "o", "", "owner address the scan is recorded under")
	scanCmd.MarkFlagRequired("owner")
}

func runScan(cmd *cobra.Command, args []string) error {
	if err := config.LoadConfig(cfgFile); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg := config.GetConfig()

	database, err := db.NewDatabase(cfg.Database.Driver, cfg.Database.GetDSN())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	gateway, err := buildGateway(cfg)
	if err != nil {
		return err
	}

	auditor := audit.NewService(database, gateway, ingest.NewAcquirer(), buildNotifier(cfg))

	input := audit.SubmitInput{
		OwnerID: scanOwner,
		URL:     scanURL,
	}
	if scanFile != "" {
		data, err := os.ReadFile(scanFile)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", scanFile, err)
		}
		input.FileName = filepath.Base(scanFile)
		input.FileData = data
	}

	log.Println("Submitting contract for analysis...")
	result := auditor.Submit(context.Background(), input)
	if result.IsError {
		return fmt.Errorf("%s", result.Message)
	}

	scan, err := database.GetScanByOwnerAndID(scanOwner, result.ScanID)
	if err != nil {
		return fmt.Errorf("failed to load scan result: %w", err)
	}

	fmt.Printf("\nScan %s: %s\n", scan.ID, scan.ContractName)
	fmt.Printf("Status: %s | Risk: %s\n", scan.Status, scan.RiskSummary)
	if scan.Summary != "" {
		fmt.Printf("\n%s\n", scan.Summary)
	}

	if len(scan.Vulnerabilities) > 0 {
		fmt.Println()
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "Type\tSeverity\tScore\tDescription")
		fmt.Fprintln(w, "----\t--------\t-----\t-----------")
		for _, v := range scan.Vulnerabilities {
			fmt.Fprintf(w, "%s\t%s\t%d/10\t%s\n", v.Type, v.Severity, v.RiskScore, v.Description)
		}
		w.Flush()
	}

	return nil
}
