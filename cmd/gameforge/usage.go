package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"gameforge/pkg/metrics"
)

func newUsageCmd() *cobra.Command {
	var prometheusURL string
	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Show per-model token and request totals from Prometheus",
		Long: `Query a Prometheus server that scrapes "gameforge serve" /metrics and
print token and request totals per model, after the number of results in
the local fingerprint cache.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if prometheusURL == "" {
				return errors.New("--prometheus-url is required")
			}

			a, err := openApp()
			if err != nil {
				return err
			}
			entries, err := a.store.CacheSize(cmd.Context())
			a.Close()
			if err != nil {
				return err //nolint:wrapcheck
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cached results: %d\n\n", entries)

			q, err := metrics.NewQueryService(prometheusURL)
			if err != nil {
				return err //nolint:wrapcheck
			}
			usage, err := q.Usage(cmd.Context())
			if err != nil {
				return err //nolint:wrapcheck
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', tabwriter.AlignRight)
			fmt.Fprintln(tw, "MODEL\tPROMPT\tCOMPLETION\tREQUESTS\tERRORS\t")
			for _, u := range usage {
				fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t\n", u.Model, u.PromptTokens, u.CompletionTokens, u.Requests, u.Errors)
			}
			return tw.Flush() //nolint:wrapcheck
		},
	}
	cmd.Flags().StringVar(&prometheusURL, "prometheus-url", "http://localhost:9090", "Prometheus base URL")
	return cmd
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(cfg) //nolint:wrapcheck
		},
	}
}
