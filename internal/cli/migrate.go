package cli

import (
	"bigbrain-client/internal/infra/postgres"
	"github.com/spf13/cobra"
)

// newMigrateCmd applies the Postgres store schema.
func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the Postgres store schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return postgres.Migrate(cmd.Context(), cfg.Postgres.URL)
		},
	}
}
