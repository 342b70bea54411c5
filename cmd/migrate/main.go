// Command migrate applies the payroll formula schema migrations.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

func main() {
	databaseURL := flag.String("database", os.Getenv("DATABASE_URL"), "Postgres connection URL")
	path := flag.String("path", "migrations", "migrations directory")
	command := flag.String("command", "up", "up, down, version, or force <n>")
	flag.Parse()

	if *databaseURL == "" {
		log.Fatal("no database URL: pass -database or set DATABASE_URL")
	}

	m, err := migrate.New("file://"+*path, *databaseURL)
	if err != nil {
		log.Fatalf("open migrations at %s: %v", *path, err)
	}
	defer m.Close()

	if err := run(m, *command, flag.Args()); err != nil {
		log.Fatalf("migrate %s: %v", *command, err)
	}
}

func run(m *migrate.Migrate, command string, args []string) error {
	switch command {
	case "up":
		if err := m.Up(); err != nil {
			if errors.Is(err, migrate.ErrNoChange) {
				log.Println("schema already current")
				return nil
			}
			return err
		}
		log.Println("schema migrated")
		return nil

	case "down":
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return err
		}
		log.Println("schema rolled back")
		return nil

	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			return err
		}
		log.Printf("schema version %d (dirty: %v)", version, dirty)
		return nil

	case "force":
		if len(args) < 1 {
			return errors.New("force needs a version number")
		}
		version, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("bad version number %q: %w", args[0], err)
		}
		if err := m.Force(version); err != nil {
			return err
		}
		log.Printf("schema version forced to %d", version)
		return nil

	default:
		return fmt.Errorf("unknown command %q (use: up, down, version, force)", command)
	}
}
