package main

import (
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/linkage-cli/internal/resilience"
	"github.com/sells-group/linkage-cli/internal/standardize"
	"github.com/sells-group/linkage-cli/pkg/geocode"
)

var geocodeNoCache bool

var geocodeCmd = &cobra.Command{
	Use:   "geocode ADDRESS",
	Short: "Resolve a single address to coordinates",
	Long:  "Standardizes the address, runs it through the configured provider cascade, and prints the result as JSON. Useful for checking why a record did or did not geocode.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		providers, err := buildProviders(cfg.Geocode)
		if err != nil {
			return err
		}

		opts := []geocode.CascadeOption{
			geocode.WithRetry(resilience.RetryConfig{MaxAttempts: cfg.Geocode.MaxRetries + 1}),
		}
		if cfg.Geocode.CacheEnabled && !geocodeNoCache {
			cache, err := geocode.OpenCache(cfg.Geocode.CachePath)
			if err != nil {
				return eris.Wrap(err, "geocode: open cache")
			}
			defer cache.Close() //nolint:errcheck
			opts = append(opts, geocode.WithCache(cache))
		}

		client := geocode.NewCascadeClient(providers, opts...)

		address := standardize.Standardize(args[0])
		result, err := client.Geocode(cmd.Context(), address)
		if err != nil {
			return eris.Wrap(err, "geocode: lookup")
		}

		out, err := json.MarshalIndent(struct {
			Address string `json:"address"`
			*geocode.Result
		}{Address: address, Result: result}, "", "  ")
		if err != nil {
			return eris.Wrap(err, "geocode: marshal result")
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	geocodeCmd.Flags().BoolVar(&geocodeNoCache, "no-cache", false, "bypass the geocode cache")
	rootCmd.AddCommand(geocodeCmd)
}
