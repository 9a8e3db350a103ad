package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/noah-isme/campus-api/internal/database"
	"github.com/noah-isme/campus-api/internal/dto"
	"github.com/noah-isme/campus-api/internal/models"
	"github.com/noah-isme/campus-api/internal/service"
)

type opener func() (*env, error)

func newMigrateCommand(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := open()
			if err != nil {
				return err
			}
			if err := database.Migrate(e.db); err != nil {
				return err
			}
			e.logger.Info().Msg("schema migrated")
			return nil
		},
	}
}

func newAuditCommand(open opener) *cobra.Command {
	audit := &cobra.Command{
		Use:   "audit",
		Short: "Audit trail maintenance",
	}

	var days int
	purge := &cobra.Command{
		Use:   "purge",
		Short: "Delete activity logs older than --days (0 uses the configured retention)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := open()
			if err != nil {
				return err
			}
			result, err := e.activity.PurgeOlderThan(cmd.Context(), days)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d activity logs older than %s\n",
				result.DeletedCount, result.Cutoff.Format("2006-01-02 15:04:05"))
			return nil
		},
	}
	purge.Flags().IntVar(&days, "days", 0, "retention in days")

	audit.AddCommand(purge)
	return audit
}

func newUsersCommand(open opener) *cobra.Command {
	users := &cobra.Command{
		Use:   "users",
		Short: "Account administration",
	}

	var req dto.RegisterRequest
	createAdmin := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := open()
			if err != nil {
				return err
			}
			req.Role = models.RoleAdmin
			user, err := e.auth.Register(cmd.Context(), req, service.Caller{UserAgent: "campusctl"})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (id %d)\n", user.Email, user.ID)
			return nil
		},
	}
	createAdmin.Flags().StringVar(&req.Username, "username", "", "account username")
	createAdmin.Flags().StringVar(&req.Email, "email", "", "account email")
	createAdmin.Flags().StringVar(&req.Password, "password", "", "initial password")
	_ = createAdmin.MarkFlagRequired("username")
	_ = createAdmin.MarkFlagRequired("email")
	_ = createAdmin.MarkFlagRequired("password")

	users.AddCommand(createAdmin)
	return users
}
