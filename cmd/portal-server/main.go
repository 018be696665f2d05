package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ehr/portal/internal/config"
	"github.com/ehr/portal/internal/domain/doctor"
	"github.com/ehr/portal/internal/domain/settings"
	"github.com/ehr/portal/internal/platform/auth"
	"github.com/ehr/portal/internal/platform/blobstore"
	"github.com/ehr/portal/internal/platform/db"
	"github.com/ehr/portal/internal/platform/media"
	"github.com/ehr/portal/migrations"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "portal-server",
		Short: "Care portal API server",
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			devUser, _ := cmd.Flags().GetString("dev-user")
			devRole, _ := cmd.Flags().GetString("dev-role")
			return runServer(devUser, devRole)
		},
	}
	serveCmd.Flags().String("dev-user", "", "sign anonymous requests in as this user id (development only)")
	serveCmd.Flags().String("dev-role", auth.RoleAdmin, "role for --dev-user")

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration commands",
	}
	migrateCmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd.Context(), "up")
		},
	})
	migrateCmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd.Context(), "status")
		},
	})

	rootCmd.AddCommand(serveCmd, migrateCmd, staffCommand(), settingsCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// setup loads configuration and opens the database pool.
func setup(ctx context.Context) (*config.Config, zerolog.Logger, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), nil, fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, logger, nil, err
	}
	pool, err := db.NewPool(ctx, db.PoolConfig{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	}, logger)
	if err != nil {
		return nil, logger, nil, fmt.Errorf("connect database: %w", err)
	}
	return cfg, logger, pool, nil
}

func runMigrate(ctx context.Context, action string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	_, logger, pool, err := setup(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	migrator := db.NewMigrator(pool, migrations.FS)
	switch action {
	case "up":
		n, err := migrator.Up(ctx)
		if err != nil {
			return fmt.Errorf("migrate up: %w", err)
		}
		logger.Info().Int("applied", n).Msg("migrations complete")
	case "status":
		statuses, err := migrator.Status(ctx)
		if err != nil {
			return fmt.Errorf("migration status: %w", err)
		}
		printStatus(os.Stdout, statuses)
	}
	return nil
}

func printStatus(out io.Writer, statuses []db.MigrationStatus) {
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Version < statuses[j].Version })
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tNAME\tAPPLIED")
	for _, s := range statuses {
		applied := "pending"
		if s.Applied && s.AppliedAt != nil {
			applied = s.AppliedAt.Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%03d\t%s\t%s\n", s.Version, s.Name, applied)
	}
	w.Flush()
}

func staffCommand() *cobra.Command {
	staffCmd := &cobra.Command{
		Use:   "staff",
		Short: "Manage doctors and nurses",
	}
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Create a doctor or nurse through the staff form",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			values := make(map[string]string)
			for _, spec := range doctor.FormSpecs() {
				if f := cmd.Flags().Lookup(spec.Name); f != nil && f.Changed {
					values[spec.Name] = f.Value.String()
				}
			}

			cfg, logger, pool, err := setup(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			images := media.NewBucket(blobstore.NewPGStore(pool), avatarBucket, blobstore.URLs{BaseURL: cfg.PublicURL})
			svc := doctor.NewService(doctor.NewRepo(pool), images, logger)
			svc.SetRegistrar(auth.NewService(auth.NewUserRepoPG(pool), auth.NewTokenIssuer([]byte(cfg.JWTSecret), cfg.SessionTTL, tokenIssuer), logger))

			return addStaff(ctx, cmd.OutOrStdout(), doctor.NewModal(svc, nil, logger), values)
		},
	}
	for _, spec := range doctor.FormSpecs() {
		addCmd.Flags().String(spec.Name, spec.Default, spec.Label)
	}
	staffCmd.AddCommand(addCmd)
	return staffCmd
}

func settingsCommand() *cobra.Command {
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Inspect user settings",
	}
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print a user's settings, creating defaults when missing",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			rawID, _ := cmd.Flags().GetString("user-id")
			role, _ := cmd.Flags().GetString("role")
			userID, err := uuid.Parse(rawID)
			if err != nil {
				return fmt.Errorf("invalid --user-id %q", rawID)
			}

			_, logger, pool, err := setup(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			res := settings.NewService(settings.NewRepo(pool), logger).FetchSettings(ctx, userID, role)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(res.Envelope()); err != nil {
				return err
			}
			if !res.Success() {
				return res.Err()
			}
			return nil
		},
	}
	showCmd.Flags().String("user-id", "", "user id")
	showCmd.Flags().String("role", auth.RolePatient, "role used when settings are created")
	showCmd.MarkFlagRequired("user-id")
	settingsCmd.AddCommand(showCmd)
	return settingsCmd
}
