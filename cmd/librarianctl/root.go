package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"bibliogoya-backend/internal/catalog"
	"bibliogoya-backend/internal/lending"
	"bibliogoya-backend/internal/members"
	"bibliogoya-backend/internal/platform/db"
	"bibliogoya-backend/internal/platform/identity"
	"bibliogoya-backend/internal/platform/logging"
)

// app holds what every subcommand needs once the database is open.
type app struct {
	configPath string
	sqlitePath string
	output     string
	actorID    int64

	in   io.Reader
	conn *sqlx.DB
	root *cobra.Command

	lending *lending.Service
	catalog *catalog.Service
	members *members.Service
}

func newApp(in io.Reader) *app {
	a := &app{in: in}

	root := &cobra.Command{
		Use:           "librarianctl",
		Short:         "Administer the Bibliogoya library database",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if a.output != "text" && a.output != "json" {
				return fmt.Errorf("--output must be text or json")
			}
			return a.open(cmd.Context())
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&a.configPath, "config", db.DefaultConfigPath, "path to config.yaml")
	f.StringVar(&a.sqlitePath, "sqlite", "", "use this SQLite file instead of the configured database")
	f.StringVarP(&a.output, "output", "o", "text", "output format: text or json")
	f.Int64Var(&a.actorID, "as", 0, "member id recorded as the operator in logs")

	root.AddCommand(
		a.migrateCmd(),
		a.booksCmd(),
		a.membersCmd(),
		a.borrowCmd(),
		a.returnCmd(),
		a.loansCmd(),
		a.reservationsCmd(),
		a.doctorCmd(),
	)
	a.root = root
	return a
}

// execute runs the command tree and closes the database on every path.
// PersistentPostRun is not used: cobra skips it once a RunE fails.
func (a *app) execute() error {
	defer a.close()
	return a.root.Execute()
}

func (a *app) close() {
	if a.conn != nil {
		_ = a.conn.Close()
	}
}

func (a *app) open(ctx context.Context) error {
	var dc db.DatabaseConfig
	logLevel, logFormat := "warn", "text"
	if a.sqlitePath != "" {
		dc = db.DatabaseConfig{Driver: db.DriverSQLite, Path: a.sqlitePath}
	} else {
		cfg, err := db.LoadConfig(a.configPath)
		if err != nil {
			return err
		}
		dc = cfg.DB
		logLevel, logFormat = cfg.Log.Level, cfg.Log.Format
	}

	conn, err := db.Connect(ctx, dc)
	if err != nil {
		return err
	}
	a.conn = conn

	log := logging.New(os.Stderr, logLevel, logFormat)
	a.lending = lending.NewService(conn, lending.WithLogger(log))
	a.catalog = catalog.NewService(conn, log)
	a.members = members.NewService(conn, log)
	return nil
}

// ctx は操作者を管理者として載せる（ログの actor 用）
func (a *app) ctx(cmd *cobra.Command) context.Context {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return identity.With(ctx, identity.Identity{MemberID: a.actorID, Role: identity.RoleAdministrator})
}

func (a *app) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := db.Migrate(a.ctx(cmd), a.conn); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			return nil
		},
	}
}
