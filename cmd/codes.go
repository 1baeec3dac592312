package cmd

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/vibast-solutions/ms-go-accounts/app/repository"

	"github.com/spf13/cobra"
)

var codesCmd = &cobra.Command{
	Use:   "codes",
	Short: "Manage email verification codes",
}

var codesPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete verification codes that have already expired",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withDatabase(cmd, func(db *sql.DB) error {
			count, err := repository.NewVerificationCodeRepository(db).DeleteExpired(cmd.Context(), time.Now())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d expired verification code(s)\n", count)
			return nil
		})
	},
}

func init() {
	codesCmd.AddCommand(codesPruneCmd)
	rootCmd.AddCommand(codesCmd)
}
