package main

import (
	"database/sql"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/chrissnell/observerip/internal/log"
	"github.com/chrissnell/observerip/internal/storage/sqlite"
	"github.com/chrissnell/observerip/pkg/config"
	"github.com/chrissnell/observerip/pkg/migrate"
	_ "modernc.org/sqlite"
)

func main() {
	var (
		dbKind         = flag.String("db", "config", "Database to migrate: config or archive")
		dbDSN          = flag.String("dsn", "", "Path to the SQLite database")
		migrationTable = flag.String("table", "schema_migrations", "Migration table name")
		command        = flag.String("command", "up", "Migration command: up, down, to, version, status")
		targetVersion  = flag.String("target", "", "Target version for down/to commands")
		helpFlag       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *helpFlag {
		showHelp()
		return
	}

	if *dbDSN == "" {
		fmt.Fprintf(os.Stderr, "Error: -dsn flag is required\n")
		showHelp()
		os.Exit(1)
	}

	var migrations fs.FS
	switch *dbKind {
	case "config":
		migrations = config.Migrations()
	case "archive":
		migrations = sqlite.Migrations()
	default:
		fmt.Fprintf(os.Stderr, "Unknown database: %s\n", *dbKind)
		os.Exit(1)
	}

	logger := log.GetSugaredLogger()
	defer log.Sync()

	db, err := sql.Open("sqlite", *dbDSN)
	if err != nil {
		logger.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("Failed to ping database: %v", err)
	}

	migrator := migrate.NewMigrator(db, migrate.NewFSProvider(migrations, *migrationTable), logger)

	switch *command {
	case "up":
		err = migrator.MigrateUp()
	case "down", "to":
		var target int
		target, err = parseTarget(*targetVersion)
		if err != nil {
			logger.Fatalf("%s: %v", *command, err)
		}
		if *command == "down" {
			err = migrator.MigrateDown(target)
		} else {
			err = migrator.MigrateTo(target)
		}
	case "version":
		version, err := migrator.GetCurrentVersion()
		if err != nil {
			logger.Fatalf("Failed to get current version: %v", err)
		}
		fmt.Printf("Current version: %d\n", version)
		return
	case "status":
		err = showStatus(migrator)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", *command)
		showHelp()
		os.Exit(1)
	}

	if err != nil {
		logger.Fatalf("Migration command failed: %v", err)
	}

	fmt.Println("Migration completed successfully")
}

func parseTarget(s string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("-target flag is required")
	}
	target, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid target version: %v", err)
	}
	return target, nil
}

func showStatus(migrator *migrate.Migrator) error {
	currentVersion, err := migrator.GetCurrentVersion()
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	pending, err := migrator.GetPendingMigrations()
	if err != nil {
		return fmt.Errorf("failed to get pending migrations: %w", err)
	}

	fmt.Printf("Current version: %d\n", currentVersion)
	fmt.Printf("Pending migrations: %d\n", len(pending))

	if len(pending) > 0 {
		fmt.Println("\nPending migrations:")
		for _, migration := range pending {
			fmt.Printf("  %d: %s\n", migration.Version, migration.Name)
		}
	}

	return nil
}

func showHelp() {
	fmt.Println("Database Migration Tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  migrate [flags]")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  -db string         Database to migrate: config or archive (default: config)")
	fmt.Println("  -dsn string        Path to the SQLite database (required)")
	fmt.Println("  -table string      Migration table name (default: schema_migrations)")
	fmt.Println("  -command string    Migration command (default: up)")
	fmt.Println("  -target string     Target version for down/to commands")
	fmt.Println("  -help              Show this help message")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  up                 Apply all pending migrations")
	fmt.Println("  down               Roll back to target version")
	fmt.Println("  to                 Migrate to specific version (up or down)")
	fmt.Println("  version            Show current migration version")
	fmt.Println("  status             Show migration status")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  migrate -dsn config.db -command up")
	fmt.Println("  migrate -db archive -dsn observations.db -command status")
	fmt.Println("  migrate -dsn config.db -command down -target 0")
}
