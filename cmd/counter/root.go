package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kiranshivaraju/objcounter/internal/client"
	"github.com/kiranshivaraju/objcounter/internal/config"
)

const version = "0.1.0"

// app carries what every subcommand needs. Tests set both fields up front;
// otherwise they are resolved from the environment before the command runs.
type app struct {
	cfg *config.ClientConfig
	api client.Client
}

func newRootCmd(a *app) *cobra.Command {
	var apiURL string

	root := &cobra.Command{
		Use:           "counter",
		Short:         "Count objects in images with the object counter API",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if a.api != nil {
				return nil
			}
			cfg, err := config.LoadClient()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if apiURL != "" {
				cfg.APIURL = strings.TrimRight(apiURL, "/")
			}
			a.cfg = cfg
			a.api = client.NewHTTPClient(cfg.APIURL, cfg.RequestTimeout)
			return nil
		},
	}
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
	root.PersistentFlags().StringVar(&apiURL, "api-url", "", "backend base URL (default $COUNTER_API_URL or http://127.0.0.1:5000)")

	root.AddCommand(
		newRunCmd(a),
		newCountCmd(a),
		newHealthCmd(a),
		newTypesCmd(a),
		newResultsCmd(a),
		newCorrectCmd(a),
	)
	return root
}
