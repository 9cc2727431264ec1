package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"DevelopmentScanner/internal/app"
	"DevelopmentScanner/internal/config"
	"DevelopmentScanner/internal/logging"
)

const configPathEnv = "DEVSCANNER_CONFIG"

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:          "devscanner",
		Short:        "Turns local news into development records for residential areas",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to the YAML config (overrides "+configPathEnv+")")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error")

	cmd.AddCommand(
		newServeCommand(opts),
		newCrawlCommand(opts),
		newStatsCommand(opts),
		newImportCommand(opts),
	)
	return cmd
}

// open loads configuration and builds the application for a command.
func (o *rootOptions) open(cmd *cobra.Command) (*app.Application, error) {
	if o.configPath != "" {
		if err := os.Setenv(configPathEnv, o.configPath); err != nil {
			return nil, fmt.Errorf("set config path: %w", err)
		}
	}
	cfg := config.Load()
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	logger := logging.NewWithWriter(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)
	return app.New(cmd.Context(), cfg, logger)
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the job queue, the daily trigger and the metrics endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer application.Close()
			return application.Serve(cmd.Context())
		},
	}
}

func newCrawlCommand(opts *rootOptions) *cobra.Command {
	var areaID, areaName, query string
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl every source for one area and print the processing result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if areaID == "" || areaName == "" {
				return errors.New("--area-id and --area-name are required")
			}
			application, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer application.Close()

			out, err := application.Crawl(cmd.Context(), areaID, areaName, query)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVar(&areaID, "area-id", "", "area identifier")
	cmd.Flags().StringVar(&areaName, "area-name", "", "human-readable area name")
	cmd.Flags().StringVar(&query, "query", "", `search query (default "<area-name> development")`)
	return cmd
}

func newStatsCommand(opts *rootOptions) *cobra.Command {
	var areaID string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print aggregate statistics of stored developments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer application.Close()

			stats, err := application.Service().GetProcessingStatistics(cmd.Context(), areaID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), stats)
		},
	}
	cmd.Flags().StringVar(&areaID, "area-id", "", "restrict to one area")
	return cmd
}

func newImportCommand(opts *rootOptions) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Bulk upsert developments from a YAML or JSON file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer application.Close()

			n, err := application.Import(cmd.Context(), file)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "imported %d developments\n", n)
			return err
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "developments file (.yaml or .json)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
