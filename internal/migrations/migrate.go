// Package migrations runs the file-based schema migrations in ./migrations
// against Postgres. Grounded on internal/migrations/migrate.go's
// golang-migrate wiring and its baseline-to-latest safety net for a
// database that already carries the schema (e.g. restored from a snapshot)
// but has no migrate metadata table yet.
package migrations

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"regexp"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	pg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
)

// Run applies every pending migration in ./migrations.
func Run(databaseURL string) error {
	if databaseURL == "" {
		return fmt.Errorf("migrations: database URL is empty")
	}

	sqlDB, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return fmt.Errorf("migrations: open db: %w", err)
	}
	defer sqlDB.Close()

	driver, err := pg.WithInstance(sqlDB, &pg.Config{MigrationsTable: "schema_migrations_migrate"})
	if err != nil {
		return fmt.Errorf("migrations: create driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://migrations", "postgres", driver)
	if err != nil {
		return fmt.Errorf("migrations: create instance: %w", err)
	}

	var playersExist bool
	row := sqlDB.QueryRow(`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name='players')`)
	if err := row.Scan(&playersExist); err == nil && playersExist {
		var migrateTableExists bool
		row2 := sqlDB.QueryRow(`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name='schema_migrations_migrate')`)
		if err := row2.Scan(&migrateTableExists); err == nil && !migrateTableExists {
			if latest := latestVersion("migrations"); latest > 0 {
				log.Printf("[MIGRATE] baselining to version %d (schema already present)", latest)
				if err := m.Force(int(latest)); err != nil {
					log.Printf("[MIGRATE] baseline to %d failed: %v", latest, err)
				}
			}
		}
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("migrations: up: %w", err)
	}
	log.Printf("[MIGRATE] migrations applied")
	return nil
}

func latestVersion(dir string) int64 {
	files, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	re := regexp.MustCompile(`^0*([0-9]+)_`)
	var max int64
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		m := re.FindStringSubmatch(f.Name())
		if len(m) < 2 {
			continue
		}
		if v, _ := strconv.ParseInt(m[1], 10, 64); v > max {
			max = v
		}
	}
	return max
}
