package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"strconv"

	"github.com/examtrail/examtrail-backend/internal/config"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

func main() {
	var dir string
	var steps int
	flag.StringVar(&dir, "path", "migrations", "Path to migration files")
	flag.IntVar(&steps, "steps", 0, "Number of steps for up/down (0 = all)")
	flag.Parse()

	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	m, err := migrate.New(fmt.Sprintf("file://%s", dir), cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("migrate init: %v", err)
	}

	if flag.NArg() < 1 {
		usage()
		return
	}

	switch cmd := flag.Arg(0); cmd {
	case "up":
		err = run(m.Up, m.Steps, steps)
		report(err, "migrated up")
	case "down":
		err = run(m.Down, func(n int) error { return m.Steps(-n) }, steps)
		report(err, "migrated down")
	case "version":
		v, dirty, err := m.Version()
		if err != nil {
			log.Fatalf("version: %v", err)
		}
		fmt.Printf("version=%d dirty=%t\n", v, dirty)
	case "force":
		if flag.NArg() < 2 {
			log.Fatal("force requires a version argument")
		}
		v, err := strconv.Atoi(flag.Arg(1))
		if err != nil {
			log.Fatalf("invalid version: %v", err)
		}
		if err := m.Force(v); err != nil {
			log.Fatalf("force: %v", err)
		}
		fmt.Printf("forced version to %d\n", v)
	default:
		usage()
	}
}

// run applies all pending migrations, or exactly n when -steps is given.
func run(all func() error, stepped func(int) error, n int) error {
	if n > 0 {
		return stepped(n)
	}
	return all()
}

func report(err error, ok string) {
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatalf("migration: %v", err)
	}
	if errors.Is(err, migrate.ErrNoChange) {
		fmt.Println("no change")
		return
	}
	fmt.Println(ok)
}

func usage() {
	fmt.Println("Usage: migrate [flags] <up|down|version|force <version>>")
	flag.PrintDefaults()
}
