package migrate

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/tourplanner/travel-service/internal/config"
	registrymigrate "github.com/tourplanner/travel-service/internal/registry/migrate"
	"github.com/urfave/cli/v3"

	// Import plugins to trigger init() registration of their migrators.
	_ "github.com/tourplanner/travel-service/internal/plugin/store/memory"
	_ "github.com/tourplanner/travel-service/internal/plugin/store/mongo"
)

// Command returns the migrate sub-command.
func Command() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Create database indexes",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "db-url",
				Sources:  cli.EnvVars("TRAVEL_SERVICE_DB_URL"),
				Usage:    "Database connection URL",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "db-name",
				Sources: cli.EnvVars("TRAVEL_SERVICE_DB_NAME"),
				Usage:   "Database name",
				Value:   "tourplanner",
			},
			&cli.StringFlag{
				Name:    "db-kind",
				Sources: cli.EnvVars("TRAVEL_SERVICE_DB_KIND"),
				Usage:   "Store backend (mongo|memory)",
				Value:   "mongo",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := config.DefaultConfig()
			cfg.DBURL = cmd.String("db-url")
			cfg.DBName = cmd.String("db-name")
			cfg.DatastoreType = cmd.String("db-kind")
			ctx = config.WithContext(ctx, &cfg)

			log.Info("Running migrations...")
			if err := registrymigrate.RunAll(ctx); err != nil {
				return err
			}
			log.Info("All migrations completed successfully")
			return nil
		},
	}
}
