package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/jwalitptl/labalert/internal/repository/postgres"
	"github.com/jwalitptl/labalert/internal/service/auth"
)

const migrationsDir = "migrations"

func main() {
	cmd := &cli.Command{
		Name:  "migrate",
		Usage: "manage the lab result archive schema",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "postgres connection URL",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "up",
				Usage: "apply all pending migrations",
				Action: withDB(func(ctx context.Context, db *sql.DB, _ *cli.Command) error {
					return goose.UpContext(ctx, db, migrationsDir)
				}),
			},
			{
				Name:  "down",
				Usage: "roll back the latest migration",
				Action: withDB(func(ctx context.Context, db *sql.DB, _ *cli.Command) error {
					return goose.DownContext(ctx, db, migrationsDir)
				}),
			},
			{
				Name:  "status",
				Usage: "print the state of every migration",
				Action: withDB(func(ctx context.Context, db *sql.DB, _ *cli.Command) error {
					return goose.StatusContext(ctx, db, migrationsDir)
				}),
			},
			{
				Name:  "version",
				Usage: "print the current schema version",
				Action: withDB(func(ctx context.Context, db *sql.DB, _ *cli.Command) error {
					return goose.VersionContext(ctx, db, migrationsDir)
				}),
			},
			{
				Name:      "hash-password",
				Usage:     "print the bcrypt hash for auth.operator_password_hash",
				ArgsUsage: "<password>",
				Action: func(_ context.Context, cmd *cli.Command) error {
					password := cmd.Args().First()
					if password == "" {
						return errors.New("password argument is required")
					}
					hash, err := auth.HashPassword(password)
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.Root().Writer, hash)
					return nil
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal().Err(err).Msg("migrate failed")
	}
}

func withDB(fn func(ctx context.Context, db *sql.DB, cmd *cli.Command) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		url := cmd.String("database-url")
		if url == "" {
			return errors.New("--database-url or DATABASE_URL is required")
		}

		db, err := sql.Open("postgres", url)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("failed to ping database: %w", err)
		}
		if err := postgres.PrepareGoose(); err != nil {
			return err
		}
		return fn(ctx, db, cmd)
	}
}
