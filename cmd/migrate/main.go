// Package main applies, rolls back or reports the embedded database
// migrations.
//
//	migrate [-dsn postgres://...] up|down|status
//
// The DSN defaults to DATABASE_URL, which may come from a .env file.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"

	"penpal/internal/db"
)

func main() {
	_ = godotenv.Load()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, logger); err != nil {
		logger.Error("migration failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer, logger *slog.Logger) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	dsn := fs.String("dsn", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
	if err := fs.Parse(args); err != nil {
		return err
	}
	command := "up"
	if fs.NArg() > 0 {
		command = fs.Arg(0)
	}
	switch command {
	case "up", "down", "status":
	default:
		return fmt.Errorf("unknown command %q (want up, down or status)", command)
	}
	if *dsn == "" {
		return errors.New("no DSN: set DATABASE_URL or pass -dsn")
	}

	if command == "up" {
		return db.Migrate(ctx, *dsn, logger)
	}

	sqlDB, err := sql.Open("pgx", *dsn)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer sqlDB.Close()

	provider, err := goose.NewProvider(goose.DialectPostgres, sqlDB, db.Migrations())
	if err != nil {
		return fmt.Errorf("creating goose provider: %w", err)
	}

	if command == "down" {
		res, err := provider.Down(ctx)
		if err != nil {
			return fmt.Errorf("rolling back: %w", err)
		}
		if res != nil {
			logger.InfoContext(ctx, "rolled back migration", "version", res.Source.Version, "path", res.Source.Path)
		}
		return nil
	}

	statuses, err := provider.Status(ctx)
	if err != nil {
		return fmt.Errorf("reading migration status: %w", err)
	}
	for _, s := range statuses {
		applied := "pending"
		if s.State == goose.StateApplied {
			applied = "applied " + s.AppliedAt.UTC().Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(out, "%5d  %-40s %s\n", s.Source.Version, s.Source.Path, applied)
	}
	return nil
}
