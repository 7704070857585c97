package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
)

// Migration repair tool: forces the schema version to clean a dirty state
// after a failed migration, or applies pending migrations with -up.
func main() {
	var (
		forceVersion = flag.Int("force", -1, "force schema version to clean a dirty state")
		up           = flag.Bool("up", false, "apply pending migrations")
	)
	flag.Parse()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		dsn = fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			envOr("DATABASE_HOST", "localhost"),
			envOr("DATABASE_PORT", "5432"),
			envOr("DATABASE_USER", "postgres"),
			os.Getenv("DATABASE_PASSWORD"),
			envOr("DATABASE_DBNAME", "eduquiz_db"),
			envOr("DATABASE_SSLMODE", "disable"),
		)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatal(err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		log.Fatal(err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://migrations", "postgres", driver)
	if err != nil {
		log.Fatal(err)
	}

	switch {
	case *forceVersion >= 0:
		fmt.Printf("forcing migration version to %d...\n", *forceVersion)
		if err := m.Force(*forceVersion); err != nil {
			log.Fatalf("failed to force version: %v", err)
		}
		fmt.Println("done, dirty state cleaned")
	case *up:
		if err := m.Up(); err != nil && err != migrate.ErrNoChange {
			log.Fatalf("failed to apply migrations: %v", err)
		}
		fmt.Println("migrations applied")
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
