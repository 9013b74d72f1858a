// Command migrator manages the TraceKit database schema. The migrations ship
// embedded in the binary, so a deployed migrator needs nothing but
// DATABASE_URL.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/tracekit-io/tracekit/internal/config"
	"github.com/tracekit-io/tracekit/migrations"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: config.GetEnvLogLevel("LOG_LEVEL", slog.LevelInfo),
	}))

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	if command == "help" || command == "--help" {
		printUsage()

		return
	}

	cfg, err := migrations.LoadConfig()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	runner, err := migrations.NewRunner(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to create migration runner", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = runner.Close()
	}()

	if err := run(command, runner); err != nil {
		logger.Error("migration failed", "command", command, "error", err)
		os.Exit(1)
	}
}

func run(command string, runner *migrations.Runner) error {
	switch command {
	case "up":
		return runner.Up()
	case "down":
		return runner.Down()
	case "status":
		return runner.Status()
	case "drop":
		if !confirm("This will drop all tables. Are you sure? (y/N): ") {
			fmt.Println("Operation cancelled.")

			return nil
		}

		return runner.Drop()
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

func confirm(prompt string) bool {
	fmt.Print(prompt)

	response, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}

	return strings.EqualFold(strings.TrimSpace(response), "y")
}

func printUsage() {
	fmt.Print(`migrator - TraceKit database migration tool

USAGE:
    migrator COMMAND

COMMANDS:
    up      Apply all pending migrations
    down    Roll back the last migration
    status  Show the current schema version
    drop    Drop all tables (requires confirmation)
    help    Show this help message

ENVIRONMENT VARIABLES:
    DATABASE_URL     PostgreSQL connection string (required)
    MIGRATION_TABLE  Migration tracking table (default: schema_migrations)
    LOG_LEVEL        debug, info, warn, or error (default: info)
`)
}
