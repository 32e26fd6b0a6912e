package db

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"solidity-armor/models"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaFS embed.FS

var (
	// ErrScanNotFound is returned when no scan exists for the given owner and id.
	ErrScanNotFound = errors.New("scan not found")

	// ErrMissingOwner is returned when a scan is created without an owner id.
	ErrMissingOwner = errors.New("owner id is required")

	// ErrInvalidTransition is returned when a status update would move a scan
	// backwards or out of a terminal state.
	ErrInvalidTransition = errors.New("invalid scan status transition")
)

// resolveMigrationsPath determines the correct path to migrations directory
func resolveMigrationsPath() string {
	// Check if migrations directory exists in current directory (when running from db package)
	if _, err := os.Stat("migrations"); err == nil {
		return "migrations"
	}

	// Check if db/migrations exists (when running from project root)
	if _, err := os.Stat("db/migrations"); err == nil {
		return "db/migrations"
	}

	// Fallback: try to find it relative to the current file
	if workDir, err := os.Getwd(); err == nil {
		if filepath.Base(workDir) == "db" {
			return "migrations"
		}
	}

	// Default fallback
	return "db/migrations"
}

// Database represents the database connection and scan record operations
type Database struct {
	conn             *sql.DB
	migrationManager *MigrationManager
}

// NewDatabase creates a new database connection
func NewDatabase(driverName, dataSourceName string) (*Database, error) {
	conn, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Configure connection pool
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(10)
	conn.SetConnMaxLifetime(5 * time.Minute)

	migrationsDir := resolveMigrationsPath()
	migrationManager := NewMigrationManager(conn, migrationsDir)

	db := &Database{
		conn:             conn,
		migrationManager: migrationManager,
	}

	if err := db.RunMigrations(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (db *Database) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// RunMigrations runs all pending database migrations
func (db *Database) RunMigrations() error {
	log.Println("Running database migrations...")
	return db.migrationManager.Migrate()
}

// GetMigrationStatus returns the current migration status
func (db *Database) GetMigrationStatus() ([]Migration, error) {
	return db.migrationManager.GetMigrationStatus()
}

// InitializeSchema creates the database schema directly from the embedded
// schema file, bypassing migrations. Used by tests that run without a
// migrations directory.
func (db *Database) InitializeSchema() error {
	schema, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema file: %w", err)
	}

	_, err = db.conn.Exec(string(schema))
	if err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	return nil
}

// Ping checks database connectivity
func (db *Database) Ping() error {
	return db.conn.Ping()
}

// Scan Operations

// CreateScan allocates an id, stamps timestamps, and inserts the scan with
// status Pending, no findings and no risk summary.
func (db *Database) CreateScan(scan *models.Scan) error {
	if scan.OwnerID == "" {
		return fmt.Errorf("failed to create scan: %w", ErrMissingOwner)
	}

	scan.ID = uuid.NewString()
	scan.Status = models.ScanStatusPending
	scan.RiskSummary = ""
	scan.Vulnerabilities = []models.Vulnerability{}
	now := time.Now().UTC()
	scan.CreatedAt = now
	scan.UpdatedAt = now

	if err := scan.MarshalScanFields(); err != nil {
		return fmt.Errorf("failed to marshal scan fields: %w", err)
	}

	query := `
		INSERT INTO scans (id, owner_id, contract_name, origin, status, risk_summary,
		                   summary, source_code, vulnerabilities_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.conn.Exec(query, scan.ID, scan.OwnerID, scan.ContractName, scan.Origin,
		scan.Status, string(scan.RiskSummary), scan.Summary, scan.SourceCode,
		scan.VulnerabilitiesJSON, scan.CreatedAt, scan.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create scan: %w", err)
	}

	return nil
}

// transition applies a guarded status update. The WHERE clause pins the
// expected current status so concurrent or repeated calls can never move a
// scan backwards; extraSet/extraArgs carry the completion fields so they land
// in the same UPDATE as the status change.
func (db *Database) transition(ownerID, scanID string, from, to models.ScanStatus, extraSet string, extraArgs ...interface{}) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("cannot move scan from %s to %s: %w", from, to, ErrInvalidTransition)
	}

	query := fmt.Sprintf(`
		UPDATE scans
		SET status = ?%s, updated_at = ?
		WHERE id = ? AND owner_id = ? AND status = ?
	`, extraSet)

	args := []interface{}{to}
	args = append(args, extraArgs...)
	args = append(args, time.Now().UTC(), scanID, ownerID, from)

	result, err := db.conn.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to update scan status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		// Either the scan does not exist for this owner, or it is no longer in
		// the expected status; distinguish the two for the caller.
		var current models.ScanStatus
		err := db.conn.QueryRow(`SELECT status FROM scans WHERE id = ? AND owner_id = ?`, scanID, ownerID).Scan(&current)
		if err == sql.ErrNoRows {
			return ErrScanNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to check scan status: %w", err)
		}
		return fmt.Errorf("scan is %s, expected %s: %w", current, from, ErrInvalidTransition)
	}

	return nil
}

// MarkScanAnalyzing moves a Pending scan to Analyzing.
func (db *Database) MarkScanAnalyzing(ownerID, scanID string) error {
	return db.transition(ownerID, scanID, models.ScanStatusPending, models.ScanStatusAnalyzing, "")
}

// CompleteScan moves an Analyzing scan to Completed, setting the findings,
// summary and risk summary in the same update.
func (db *Database) CompleteScan(ownerID, scanID string, vulnerabilities []models.Vulnerability, summary string, risk models.RiskLevel) error {
	scan := &models.Scan{Vulnerabilities: vulnerabilities}
	if err := scan.MarshalScanFields(); err != nil {
		return fmt.Errorf("failed to marshal scan fields: %w", err)
	}

	return db.transition(ownerID, scanID, models.ScanStatusAnalyzing, models.ScanStatusCompleted,
		", vulnerabilities_json = ?, summary = ?, risk_summary = ?",
		scan.VulnerabilitiesJSON, summary, string(risk))
}

// FailScan moves a scan to Failed from whichever transient status it is in,
// recording the failure detail in the summary.
func (db *Database) FailScan(ownerID, scanID string, summary string) error {
	err := db.transition(ownerID, scanID, models.ScanStatusAnalyzing, models.ScanStatusFailed,
		", summary = ?", summary)
	if errors.Is(err, ErrInvalidTransition) {
		// The scan may still be Pending if analysis never started.
		return db.transition(ownerID, scanID, models.ScanStatusPending, models.ScanStatusFailed,
			", summary = ?", summary)
	}
	return err
}

const scanColumns = `id, owner_id, contract_name, origin, status, risk_summary,
	       summary, source_code, vulnerabilities_json, created_at, updated_at`

func scanRow(row interface {
	Scan(dest ...interface{}) error
}) (*models.Scan, error) {
	scan := &models.Scan{}
	var risk string
	err := row.Scan(
		&scan.ID, &scan.OwnerID, &scan.ContractName, &scan.Origin, &scan.Status,
		&risk, &scan.Summary, &scan.SourceCode, &scan.VulnerabilitiesJSON,
		&scan.CreatedAt, &scan.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	scan.RiskSummary = models.RiskLevel(risk)

	if err := scan.UnmarshalScanFields(); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scan fields: %w", err)
	}

	return scan, nil
}

// GetScanByOwnerAndID retrieves a single scan, scoped to its owner.
func (db *Database) GetScanByOwnerAndID(ownerID, scanID string) (*models.Scan, error) {
	query := fmt.Sprintf(`SELECT %s FROM scans WHERE id = ? AND owner_id = ?`, scanColumns)

	scan, err := scanRow(db.conn.QueryRow(query, scanID, ownerID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrScanNotFound
		}
		return nil, fmt.Errorf("failed to get scan: %w", err)
	}

	return scan, nil
}

// GetScansByOwner retrieves all scans for an owner, newest first.
func (db *Database) GetScansByOwner(ownerID string, limit int) ([]*models.Scan, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM scans
		WHERE owner_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, scanColumns)

	rows, err := db.conn.Query(query, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query scans: %w", err)
	}
	defer rows.Close()

	var scans []*models.Scan
	for rows.Next() {
		scan, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		scans = append(scans, scan)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scans: %w", err)
	}

	return scans, nil
}

// CountScansByStatus returns the number of scans per status across all
// owners, for the dashboard stats view.
func (db *Database) CountScansByStatus() (map[models.ScanStatus]int, error) {
	rows, err := db.conn.Query(`SELECT status, COUNT(*) FROM scans GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count scans: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.ScanStatus]int)
	for rows.Next() {
		var status models.ScanStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan count row: %w", err)
		}
		counts[status] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating counts: %w", err)
	}

	return counts, nil
}
