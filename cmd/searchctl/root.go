package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"storefront-search/internal/config"
	"storefront-search/internal/logging"
	"storefront-search/internal/services"
	"storefront-search/pkg/transport"
)

type rootOptions struct {
	envFile string
	verbose bool
	asJSON  bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:          "searchctl",
		Short:        "Resolve storefront searches from the command line",
		Long:         `Runs the same search resolution and product detail lookups as the storefront API, using the service's environment configuration.`,
		SilenceUsage: true,
	}
	cmd.SetOut(os.Stdout)
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log resolver attempts to stderr")
	cmd.PersistentFlags().BoolVar(&opts.asJSON, "json", false, "output results as JSON")

	cmd.AddCommand(newSearchCmd(opts))
	cmd.AddCommand(newDetailsCmd(opts))
	return cmd
}

// deps holds the collaborators shared by the subcommands.
type deps struct {
	logger   *zap.Logger
	resolver *services.Resolver
	details  *services.DetailFetcher
}

func (o *rootOptions) load() (*deps, error) {
	cfg, err := config.Load(o.envFile)
	if err != nil {
		return nil, err
	}

	level := "error"
	if o.verbose {
		level = "debug"
	}
	logger, err := logging.New(level, "console")
	if err != nil {
		return nil, err
	}

	client := transport.NewClient(transport.WithLogger(logger.Named("transport")))
	resolver := services.NewResolver(client, services.ResolverConfig{
		Endpoint: services.Endpoint{
			Host:    cfg.Search.Host,
			Port:    cfg.Search.Port,
			Path:    cfg.Search.Path,
			Timeout: cfg.Search.Timeout,
			Headers: cfg.AuthHeaders(),
		},
		Retry: services.RetryPolicy{
			Attempts: cfg.Search.RetryAttempts,
			Delay:    cfg.Search.RetryDelay,
		},
		IsProduction: cfg.IsProduction(),
	},
		services.WithObserver(services.NewLogObserver(logger)),
		services.WithResolverLogger(logger),
	)
	details := services.NewDetailFetcher(client, cfg.Products.URL, transport.Options{
		Timeout: cfg.Products.Timeout,
		Headers: cfg.AuthHeaders(),
	}, services.WithDetailLogger(logger))

	return &deps{logger: logger, resolver: resolver, details: details}, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
