// migrate-to-postgres copies archived simulation reports from SQLite to
// PostgreSQL. Reports already present in PostgreSQL are skipped, so the
// tool can be rerun safely.
//
// Usage:
//
//	go run ./cmd/migrate-to-postgres \
//	    -sqlite data/tunnelfight.db \
//	    -pg-host localhost \
//	    -pg-port 5432 \
//	    -pg-user tunnelfight \
//	    -pg-password tunnelfight \
//	    -pg-database tunnelfight
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/lawnchairsociety/tunnelfight/internal/database"
)

func main() {
	defaults := database.DefaultPostgresConfig()

	sqlitePath := flag.String("sqlite", "data/tunnelfight.db", "Path to SQLite database")
	pgHost := flag.String("pg-host", defaults.Host, "PostgreSQL host")
	pgPort := flag.Int("pg-port", defaults.Port, "PostgreSQL port")
	pgUser := flag.String("pg-user", defaults.User, "PostgreSQL user")
	pgPassword := flag.String("pg-password", "", "PostgreSQL password (default: $TUNNELFIGHT_DB_POSTGRES_PASSWORD)")
	pgDatabase := flag.String("pg-database", defaults.Database, "PostgreSQL database name")
	pgSSLMode := flag.String("pg-sslmode", defaults.SSLMode, "PostgreSQL SSL mode")
	dryRun := flag.Bool("dry-run", false, "Show what would be migrated without making changes")
	flag.Parse()

	log.Println("SQLite to PostgreSQL Report Migration")
	log.Println("=====================================")

	if _, err := os.Stat(*sqlitePath); err != nil {
		log.Fatalf("SQLite database not found: %v", err)
	}

	log.Printf("Opening SQLite database: %s", *sqlitePath)
	src, err := database.Open(*sqlitePath)
	if err != nil {
		log.Fatalf("Failed to open SQLite database: %v", err)
	}
	defer src.Close()

	pg := defaults
	pg.Host = *pgHost
	pg.Port = *pgPort
	pg.User = *pgUser
	pg.Password = *pgPassword
	if pg.Password == "" {
		pg.Password = os.Getenv("TUNNELFIGHT_DB_POSTGRES_PASSWORD")
	}
	pg.Database = *pgDatabase
	pg.SSLMode = *pgSSLMode
	dstCfg := database.Config{Driver: string(database.DialectPostgres), Postgres: pg}

	// Opening runs the schema migration, so the target is ready either way.
	log.Printf("Opening PostgreSQL database: %s", dstCfg.String())
	dst, err := database.OpenWithConfig(dstCfg)
	if err != nil {
		log.Fatalf("Failed to open PostgreSQL database: %v", err)
	}
	defer dst.Close()

	if *dryRun {
		log.Println("DRY RUN MODE - No reports will be written")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := database.CopyReports(ctx, src, dst, *dryRun)
	if err != nil {
		log.Fatalf("Migration stopped after %d reports: %v", result.Copied, err)
	}

	log.Println("=====================================")
	log.Printf("Migration complete! Copied %d reports, skipped %d already present", result.Copied, result.Skipped)
	if *dryRun {
		log.Println("(DRY RUN - No actual changes were made)")
	}
}
