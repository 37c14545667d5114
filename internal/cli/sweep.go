package cli

import (
	"contest-service/internal/app"
	"contest-service/internal/infra/postgres"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// NewSweepCmd runs one contest status sweep against Postgres and exits.
func NewSweepCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Advance contest statuses once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if err := runMigrationsWithConfig(cmd.Context(), cfg, log); err != nil {
				return err
			}
			db := openDB(cfg.Postgres.URL)
			defer db.Close()

			sweeper := app.NewStatusSweeper(postgres.NewStore(db), app.WithLogger(log))
			started, finished, err := sweeper.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			cmd.Printf("started=%d finished=%d\n", started, finished)
			log.WithFields(logrus.Fields{"started": started, "finished": finished}).Debug("sweep command done")
			return nil
		},
	}
}
