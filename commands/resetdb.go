package commands

import (
	"f0oster/adexpiry/database"

	"github.com/spf13/cobra"
)

var resetDBCmd = &cobra.Command{
	Use:   "reset-db",
	Short: "Drop and recreate the run history database",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.ValidateDatabase(true); err != nil {
			return err
		}
		db := database.NewDatabase(cfg.Dsn, cfg.ManagementDsn, logger)
		if err := db.Reset(cmd.Context()); err != nil {
			return err
		}
		logger.Info("database reset")
		return nil
	},
}
