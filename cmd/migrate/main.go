package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/infrastructure/config"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/infrastructure/logger"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/infrastructure/migration"
	"go.uber.org/zap"
)

// command is one migrate subcommand. Commands without a database only touch
// the migrations directory.
type command struct {
	name       string
	args       string
	help       string
	offline    func(dir string, args []string, log *zap.Logger) error
	withSchema func(m *migration.Migrator, args []string, log *zap.Logger) error
}

var commands = []command{
	{name: "up", help: "Apply all pending migrations",
		withSchema: func(m *migration.Migrator, _ []string, _ *zap.Logger) error { return m.Up() }},
	{name: "down", help: "Roll back all migrations",
		withSchema: func(m *migration.Migrator, _ []string, _ *zap.Logger) error { return m.Down() }},
	{name: "step", args: "<n>", help: "Apply n migrations, negative n rolls back",
		withSchema: func(m *migration.Migrator, args []string, _ *zap.Logger) error {
			n, err := intArg(args, "step count")
			if err != nil {
				return err
			}
			return m.Steps(n)
		}},
	{name: "goto", args: "<version>", help: "Migrate up or down to version",
		withSchema: func(m *migration.Migrator, args []string, _ *zap.Logger) error {
			v, err := intArg(args, "version")
			if err != nil {
				return err
			}
			if v < 0 {
				return fmt.Errorf("version must not be negative, got %d", v)
			}
			return m.GoTo(uint(v))
		}},
	{name: "version", help: "Print the applied version",
		withSchema: func(m *migration.Migrator, _ []string, log *zap.Logger) error {
			version, dirty, err := m.Version()
			if err != nil {
				return err
			}
			log.Info("Current migration version", zap.Uint("version", version), zap.Bool("dirty", dirty))
			return nil
		}},
	{name: "status", help: "Exit non-zero unless the newest migration is applied",
		withSchema: func(m *migration.Migrator, _ []string, log *zap.Logger) error {
			if err := m.RequireCurrent(); err != nil {
				return err
			}
			log.Info("Ledger schema is up to date")
			return nil
		}},
	{name: "force", args: "<version>", help: "Mark version as applied and clean",
		withSchema: func(m *migration.Migrator, args []string, log *zap.Logger) error {
			v, err := intArg(args, "version")
			if err != nil {
				return err
			}
			log.Warn("Forcing schema version", zap.Int("version", v))
			return m.Force(v)
		}},
	{name: "drop", args: "-confirm", help: "Drop every ledger table",
		withSchema: func(m *migration.Migrator, args []string, _ *zap.Logger) error {
			if !slices.Contains(args, "-confirm") && !slices.Contains(args, "--confirm") {
				return errors.New("refusing to drop without -confirm")
			}
			return m.Drop()
		}},
	{name: "create", args: "<name> [description]", help: "Write the next up/down file pair",
		offline: func(dir string, args []string, log *zap.Logger) error {
			if len(args) == 0 {
				return errors.New("migration name required")
			}
			description := ""
			if len(args) > 1 {
				description = args[1]
			}
			mf, err := migration.CreateMigration(dir, args[0], description)
			if err != nil {
				return err
			}
			log.Info("Migration created",
				zap.String("version", mf.Version),
				zap.String("up_file", mf.UpPath),
				zap.String("down_file", mf.DownPath),
			)
			return nil
		}},
	{name: "list", help: "List migrations on disk",
		offline: func(dir string, _ []string, _ *zap.Logger) error {
			files, err := migration.ListMigrations(dir)
			if err != nil {
				return err
			}
			for _, f := range files {
				fmt.Println(f)
			}
			return nil
		}},
}

func intArg(args []string, what string) (int, error) {
	if len(args) == 0 {
		return 0, fmt.Errorf("%s required", what)
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", what, args[0])
	}
	return n, nil
}

func main() {
	dir := flag.String("path", "", "migrations directory, database.migrations_path when empty")
	logLevel := flag.String("log-level", "info", "debug, info, warn or error")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}
	idx := slices.IndexFunc(commands, func(c command) bool { return c.name == flag.Arg(0) })
	if idx < 0 {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", flag.Arg(0))
		usage()
		os.Exit(2)
	}
	cmd, args := commands[idx], flag.Args()[1:]

	log, err := logger.New(&logger.Config{Level: *logLevel, Format: "console", Output: "stdout"}, "school-billing-migrate")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync(log) }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}
	if *dir == "" {
		*dir = cfg.Database.MigrationsPath
	}
	migrationsPath, err := filepath.Abs(*dir)
	if err != nil {
		log.Fatal("Invalid migrations path", zap.String("path", *dir), zap.Error(err))
	}

	if err := execute(cmd, args, cfg.Database, migrationsPath, log); err != nil {
		log.Fatal("Migration command failed", zap.String("command", cmd.name), zap.Error(err))
	}
}

func execute(cmd command, args []string, db config.DatabaseConfig, migrationsPath string, log *zap.Logger) error {
	if cmd.offline != nil {
		return cmd.offline(migrationsPath, args, log)
	}

	conn, err := sql.Open("postgres", db.DSN())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return fmt.Errorf("ping database: %w", err)
	}

	// the migrator owns conn from here on
	m, err := migration.New(conn, migrationsPath, log)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			log.Warn("Closing migrator", zap.Error(err))
		}
	}()

	log.Info("Running migration command",
		zap.String("command", cmd.name),
		zap.String("migrations_path", migrationsPath),
	)
	return cmd.withSchema(m, args, log)
}

func usage() {
	var b strings.Builder
	b.WriteString("Schema migrations for the school billing ledger\n\nUsage:\n  migrate [flags] <command> [arguments]\n\nCommands:\n")
	for _, c := range commands {
		fmt.Fprintf(&b, "  %-28s %s\n", strings.TrimSpace(c.name+" "+c.args), c.help)
	}
	b.WriteString("\nFlags:\n")
	fmt.Fprint(os.Stderr, b.String())
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\nConnection settings come from config.toml and %s_DATABASE_* variables.\n", config.EnvPrefix)
}
