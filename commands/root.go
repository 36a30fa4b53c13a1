package commands

import (
	"fmt"
	"os"

	"f0oster/adexpiry/config"
	"f0oster/adexpiry/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	envFile string
	cfg     config.Configuration
	logger  = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "adexpiry",
	Short: "Resolve password expiry and manager state for Active Directory accounts",
	Long: `adexpiry walks every domain in an Active Directory forest and reports,
for each user and contact, when its password expires and who its manager is.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := logging.FromEnv()
		if err != nil {
			return err
		}
		logger = l

		loaded, err := config.LoadEnvConfig(envFile)
		if err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		cfg = loaded
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "settings.env", "Path to the env file holding connection settings")

	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(resetDBCmd)
	rootCmd.AddCommand(serveCmd)
}

// ExecuteWith runs the root command with args in place of os.Args.
func ExecuteWith(args []string) {
	rootCmd.SetArgs(args)
	Execute()
}
