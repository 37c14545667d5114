package cli

import (
	"time"

	"contest-service/internal/app"
	"contest-service/internal/domain"
	"contest-service/internal/infra/memory"
	"contest-service/internal/infra/postgres"
	transport "contest-service/internal/transport/http"
	"github.com/spf13/cobra"
)

// NewUserCmd groups account maintenance commands.
func NewUserCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts",
	}
	cmd.AddCommand(newUserCreateCmd(configPath))
	return cmd
}

func newUserCreateCmd(configPath *string) *cobra.Command {
	var (
		fullName string
		admin    bool
		tokenTTL time.Duration
	)
	cmd := &cobra.Command{
		Use:   "create <username>",
		Short: "Create an account in Postgres and print a bearer token for it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := runMigrationsWithConfig(cmd.Context(), cfg, log); err != nil {
				return err
			}
			db := openDB(cfg.Postgres.URL)
			defer db.Close()

			// Account commands never read contest papers.
			store := postgres.NewStore(db)
			papers := memory.NewPaperRepository(nil, 0)
			catalog := app.NewCatalogService(store, papers, app.WithLogger(log))
			role := domain.RoleUser
			if admin {
				role = domain.RoleAdmin
			}
			user, err := catalog.CreateUser(cmd.Context(), app.UserInput{Username: args[0], FullName: fullName, Role: role})
			if err != nil {
				return err
			}
			token, err := transport.IssueToken(cfg.Auth.JWTSecret, user, tokenTTL)
			if err != nil {
				return err
			}
			cmd.Printf("id=%s role=%s\ntoken=%s\n", user.ID, user.Role, token)
			return nil
		},
	}
	cmd.Flags().StringVar(&fullName, "fullname", "", "display name")
	cmd.Flags().BoolVar(&admin, "admin", false, "grant the admin role")
	cmd.Flags().DurationVar(&tokenTTL, "token-ttl", 24*time.Hour, "lifetime of the printed token")
	return cmd
}
