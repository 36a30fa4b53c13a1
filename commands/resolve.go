package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"f0oster/adexpiry/activedirectory"
	"f0oster/adexpiry/config"
	"f0oster/adexpiry/database"
	"f0oster/adexpiry/history"
	"f0oster/adexpiry/resolver"
	"f0oster/adexpiry/snapshot"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	outputPath string
	listOutput bool
	persistRun bool
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Fetch the forest and print resolved records as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := applyFlagOverrides(cmd, &cfg); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		if persistRun {
			if err := cfg.ValidateDatabase(false); err != nil {
				return err
			}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		in, err := fetchForest(ctx, cfg)
		if err != nil {
			return err
		}

		opts, err := cfg.ResolverOptions()
		if err != nil {
			return err
		}
		out := resolver.New(opts, logger).Resolve(in)

		if err := writeResult(out); err != nil {
			return err
		}

		if persistRun {
			summary, err := persist(ctx, cfg, out)
			if err != nil {
				return err
			}
			logger.Info("run persisted",
				zap.String("run_id", summary.RunID.String()),
				zap.Int("added", summary.Added),
				zap.Int("removed", summary.Removed),
				zap.Int("changed", summary.Changed),
			)
		}
		return nil
	},
}

func init() {
	resolveCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write JSON to this file instead of stdout")
	resolveCmd.Flags().BoolVar(&listOutput, "list", false, "Write a bare list of records instead of the keyed map")
	resolveCmd.Flags().BoolVar(&persistRun, "persist", false, "Store the run and its changes in the database")
	resolveCmd.Flags().String("key-field", "", "Field the output is keyed by (overrides ADEXPIRY_KEY_FIELD)")
	resolveCmd.Flags().Bool("include-contacts", true, "Include contact objects (overrides ADEXPIRY_INCLUDE_CONTACTS)")
	resolveCmd.Flags().StringSlice("domains", nil, "Restrict the run to these domains (overrides LDAP_DOMAINS)")
}

// applyFlagOverrides copies explicitly set flags over the env configuration.
func applyFlagOverrides(cmd *cobra.Command, c *config.Configuration) error {
	flags := cmd.Flags()
	if flags.Changed("key-field") {
		v, err := flags.GetString("key-field")
		if err != nil {
			return err
		}
		c.KeyField = v
	}
	if flags.Changed("include-contacts") {
		v, err := flags.GetBool("include-contacts")
		if err != nil {
			return err
		}
		c.IncludeContacts = v
	}
	if flags.Changed("domains") {
		v, err := flags.GetStringSlice("domains")
		if err != nil {
			return err
		}
		c.Domains = v
	}
	return nil
}

func fetchForest(ctx context.Context, c config.Configuration) (resolver.Input, error) {
	root := activedirectory.NewActiveDirectoryInstance(c.ForestRoot, c.DcFQDN, c.PageSize, c.UseTLS, logger)
	if err := root.Connect(c.Username, c.Password); err != nil {
		return resolver.Input{}, fmt.Errorf("connect to %s: %w", c.DcFQDN, err)
	}
	defer root.Close()

	domains, err := root.DiscoverDomains(ctx, c.Domains)
	if err != nil {
		return resolver.Input{}, err
	}

	names := make([]string, len(domains))
	for i, d := range domains {
		names[i] = d.String()
	}
	logger.Info("discovered domains", zap.Strings("domains", names))

	fetcher := activedirectory.NewFetcher(
		activedirectory.DialDomain(c.Username, c.Password, c.PageSize, c.UseTLS, logger),
		c.FetchAttributes(),
		logger,
	)
	return fetcher.FetchForest(ctx, domains)
}

func writeResult(out *resolver.OutputMap) error {
	if outputPath == "" {
		return writeOutput(os.Stdout, out, listOutput)
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	if err := writeOutput(f, out, listOutput); err != nil {
		f.Close()
		return err
	}
	logger.Info("wrote output", zap.String("path", outputPath), zap.Int("records", out.Len()))
	return f.Close()
}

// writeOutput encodes the keyed map, or the bare record list when asList is set.
func writeOutput(w io.Writer, out *resolver.OutputMap, asList bool) error {
	var v any = out
	if asList {
		v = out.Values()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func persist(ctx context.Context, c config.Configuration, out *resolver.OutputMap) (history.RunSummary, error) {
	db := database.NewDatabase(c.Dsn, c.ManagementDsn, logger)
	if err := db.Connect(ctx); err != nil {
		return history.RunSummary{}, fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	svc := history.NewService(database.NewDBClient(db.Pool()), snapshot.NewService(), logger)
	return svc.ProcessRun(ctx, out)
}
