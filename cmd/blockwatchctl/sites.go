package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/blockwatch/blockwatch/internal/database"
	"github.com/blockwatch/blockwatch/internal/services"
)

type dbFlags struct {
	driver   string
	url      string
	logLevel string
}

func (f *dbFlags) register(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&f.driver, "driver", envOr("DATABASE_DRIVER", database.DriverPostgres), "Database driver: postgres or sqlite")
	cmd.PersistentFlags().StringVar(&f.url, "database-url", os.Getenv("DATABASE_URL"), "Database DSN (postgres URL or sqlite file)")
	cmd.PersistentFlags().StringVar(&f.logLevel, "db-log-level", envOr("DATABASE_LOG_LEVEL", "warn"), "gorm log level: silent, error, warn, info")
}

// open connects and migrates so the sites table exists
func (f *dbFlags) open() (*database.Store, error) {
	if f.url == "" {
		return nil, fmt.Errorf("--database-url or DATABASE_URL is required")
	}
	if err := database.Connect(f.driver, f.url, database.ParseLogLevel(f.logLevel)); err != nil {
		return nil, err
	}
	if err := database.AutoMigrate(); err != nil {
		return nil, err
	}
	return database.NewStore(database.GetDB()), nil
}

func newSitesCmd(output *string) *cobra.Command {
	var db dbFlags

	cmd := &cobra.Command{
		Use:   "sites",
		Short: "Manage the site registry",
	}
	db.register(cmd)

	seedCmd := &cobra.Command{
		Use:   "seed <sites.yaml>",
		Short: "Create or update sites from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seeds, err := services.LoadSitesFile(args[0])
			if err != nil {
				return err
			}
			store, err := db.open()
			if err != nil {
				return err
			}
			defer database.Close()

			n, err := services.NewSiteService(store).Seed(cmd.Context(), seeds)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d sites\n", n)
			return nil
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List registered sites",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseOutputFormat(*output)
			if err != nil {
				return err
			}
			store, err := db.open()
			if err != nil {
				return err
			}
			defer database.Close()

			sites, err := store.ListSites(cmd.Context())
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(sites))
			for _, s := range sites {
				rows = append(rows, []string{s.Code, s.Name, s.Location, s.ID})
			}
			return printOutput(cmd.OutOrStdout(), format, sites, []string{"CODE", "NAME", "LOCATION", "ID"}, rows)
		},
	}

	cmd.AddCommand(seedCmd, listCmd)
	return cmd
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
