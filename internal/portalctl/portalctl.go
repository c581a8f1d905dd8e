// Package portalctl implements the portal's operator commands: schema
// migration, demo seeding, maintenance mode and session cleanup.
package portalctl

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/patientportal/internal/filex"
	"github.com/dmitrijs2005/patientportal/internal/logging"
	"github.com/dmitrijs2005/patientportal/internal/server/config"
	"github.com/dmitrijs2005/patientportal/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/patientportal/internal/server/services"
)

// Env carries what the commands need. OpenDB and Repos are replaceable in
// tests.
type Env struct {
	Config *config.Config
	Out    io.Writer
	OpenDB func(ctx context.Context, dsn string) (*sql.DB, error)
	Repos  repomanager.RepositoryManager
}

// NewEnv returns an Env backed by PostgreSQL.
func NewEnv(c *config.Config, out io.Writer) *Env {
	return &Env{
		Config: c,
		Out:    out,
		OpenDB: repomanager.Open,
		Repos:  repomanager.NewPostgresRepositoryManager(),
	}
}

func NewRootCommand(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "portalctl",
		Short:         "Operator tool for the patient portal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// The JSON file is read by config.LoadConfig before cobra runs.
	cmd.PersistentFlags().StringP("config", "c", "", "path to JSON config file")

	// Overrides applied on top of the loaded config. Both the short forms
	// shared with the server and the long forms are accepted.
	overrides := []struct {
		name, short, usage string
		target             *string
	}{
		{"addr", "a", "HTTP bind address", &env.Config.HTTPAddr},
		{"dsn", "d", "database DSN", &env.Config.DatabaseDSN},
		{"log-format", "l", "log format (json|console)", &env.Config.LogFormat},
		{"uploads-dir", "u", "uploads directory", &env.Config.UploadsDir},
		{"maintenance-file", "m", "maintenance flag file", &env.Config.MaintenanceFile},
		{"demo-email", "e", "demo account email", &env.Config.DemoEmail},
	}
	values := make([]string, len(overrides))
	for i, o := range overrides {
		cmd.PersistentFlags().StringVarP(&values[i], o.name, o.short, *o.target, o.usage)
	}

	cmd.PersistentPreRunE = func(c *cobra.Command, args []string) error {
		for i, o := range overrides {
			if c.Flags().Changed(o.name) {
				*o.target = values[i]
			}
		}
		return nil
	}

	cmd.AddCommand(newMigrateCommand(env))
	cmd.AddCommand(newSeedDemoCommand(env))
	cmd.AddCommand(newMaintenanceCommand(env))
	cmd.AddCommand(newSessionsCommand(env))
	return cmd
}

// withDB opens the database, runs fn and closes it again.
func (env *Env) withDB(ctx context.Context, fn func(db *sql.DB) error) error {
	db, err := env.OpenDB(ctx, env.Config.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}
	defer db.Close()
	return fn(db)
}

func newMigrateCommand(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.withDB(cmd.Context(), func(db *sql.DB) error {
				if err := env.Repos.RunMigrations(cmd.Context(), db); err != nil {
					return fmt.Errorf("migration error: %w", err)
				}
				fmt.Fprintln(env.Out, "migrations applied")
				return nil
			})
		},
	}
}

func newSeedDemoCommand(env *Env) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "seed-demo",
		Short: "Create or refresh the demo account's patient profile and appointment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" {
				email = env.Config.DemoEmail
			}
			if email == "" {
				return fmt.Errorf("--email is required when no demo email is configured")
			}
			return env.withDB(cmd.Context(), func(db *sql.DB) error {
				id, err := services.NewDemoSeeder(db, env.Repos).SeedAccount(cmd.Context(), email)
				if err != nil {
					return err
				}
				fmt.Fprintf(env.Out, "demo data seeded for %s (user %s)\n", email, id)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email (defaults to the configured demo email)")
	return cmd
}

func newMaintenanceCommand(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:       "maintenance on|off|status",
		Short:     "Toggle maintenance mode",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"on", "off", "status"},
		RunE: func(cmd *cobra.Command, args []string) error {
			flag := env.Config.MaintenanceFile
			if flag == "" {
				return fmt.Errorf("no maintenance file configured")
			}

			switch args[0] {
			case "on":
				if err := filex.Touch(flag); err != nil {
					return err
				}
			case "off":
				if err := filex.Remove(flag); err != nil {
					return err
				}
			case "status":
			default:
				return fmt.Errorf("unknown mode %q, want on, off or status", args[0])
			}

			state := "off"
			if filex.Exists(flag) {
				state = "on"
			}
			fmt.Fprintf(env.Out, "maintenance mode is %s\n", state)
			return nil
		},
	}
	return cmd
}

func newSessionsCommand(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Session housekeeping",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "purge-expired",
		Short: "Delete sessions whose expiry has passed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.withDB(cmd.Context(), func(db *sql.DB) error {
				auth := services.NewAuthService(db, env.Repos, nil, nil, nil, logging.Nop(), services.AuthOptions{})
				n, err := auth.PurgeExpiredSessions(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(env.Out, "%d expired sessions removed\n", n)
				return nil
			})
		},
	})
	return cmd
}
