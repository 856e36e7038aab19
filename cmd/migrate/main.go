package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/amerta-coffee/amerta-coffee-api/pkg/config"
	"github.com/amerta-coffee/amerta-coffee-api/pkg/db"
	"github.com/amerta-coffee/amerta-coffee-api/pkg/logger"
	"github.com/amerta-coffee/amerta-coffee-api/pkg/migrate"
)

// dbCommands run against a live connection. create and validate only touch
// migration files.
var dbCommands = map[string]func(ctx context.Context, r *migrate.Runner, version string) error{
	"up": func(ctx context.Context, r *migrate.Runner, _ string) error {
		_, err := r.Up(ctx)
		return err
	},
	"down": func(ctx context.Context, r *migrate.Runner, _ string) error {
		return r.Down(ctx)
	},
	"redo": func(ctx context.Context, r *migrate.Runner, _ string) error {
		return r.Redo(ctx)
	},
	"status": func(ctx context.Context, r *migrate.Runner, _ string) error {
		return r.Status(ctx)
	},
	"version": func(ctx context.Context, r *migrate.Runner, version string) error {
		if version == "" {
			return fmt.Errorf("missing -version for version command")
		}
		return r.To(ctx, version)
	},
}

func main() {
	logg := logger.New(logger.Options{ServiceName: "migrate"})

	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "migration command: up|down|redo|status|version|create|validate")
	dir := flag.String("dir", "", "migrations directory (defaults to the embedded set; create writes to "+migrate.DefaultDir+")")
	name := flag.String("name", "", "migration name (for create)")
	version := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	switch *cmd {
	case "create":
		if strings.TrimSpace(*name) == "" {
			fail("missing -name for create")
		}
		target := *dir
		if target == "" {
			target = migrate.DefaultDir
		}
		path, err := migrate.CreateSQLMigration(target, *name)
		if err != nil {
			fail("failed to create migration: %v", err)
		}
		fmt.Println("created migration:", path)
		return
	case "validate":
		if err := migrate.ValidateDir(*dir); err != nil {
			fail("migration validation failed: %v", err)
		}
		fmt.Println("migration validation passed")
		return
	}

	run, ok := dbCommands[*cmd]
	if !ok {
		fail("unknown -cmd value: %s", *cmd)
	}

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": *cmd,
		"dir": *dir,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	requireResource(ctx, logg, "sql database", err)

	fsys, err := migrate.Source(*dir)
	requireResource(ctx, logg, "migration source", err)
	runner, err := migrate.NewRunner(sqlDB, fsys, os.Stdout)
	requireResource(ctx, logg, "migration runner", err)

	logg.Info(ctx, "migrate ready")
	err = run(ctx, runner, *version)
	if migrate.IsNothingToDo(err) {
		logg.Info(ctx, "no migrations to apply")
		return
	}
	if err != nil {
		logg.Error(ctx, "migration command failed", err)
		os.Exit(1)
	}
	logg.Info(ctx, "migration command complete")
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
