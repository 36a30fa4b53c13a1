package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"f0oster/adexpiry/database"
	"f0oster/adexpiry/web"

	"github.com/spf13/cobra"
)

var listenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the latest persisted run over a JSON API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.ValidateDatabase(false); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		db := database.NewDatabase(cfg.Dsn, cfg.ManagementDsn, logger)
		if err := db.Connect(ctx); err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()

		return web.NewServer(database.NewDBClient(db.Pool()), listenAddr, logger).Start(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "addr", ":8080", "Listen address for web server (e.g., :8080)")
}
