package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newHealthCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the backend and its database are reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			h, err := a.api.Health(cmd.Context())
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "status:       %s\n", h.Status)
			fmt.Fprintf(out, "message:      %s\n", h.Message)
			fmt.Fprintf(out, "database:     %s\n", h.Database)
			fmt.Fprintf(out, "object types: %d\n", h.ObjectTypes)
			fmt.Fprintf(out, "detector:     %s\n", h.Detector)
			return nil
		},
	}
}

func newTypesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List the object types the backend can count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			types, err := a.api.ObjectTypes(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing object types: %w", err)
			}

			if len(types) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No object types configured.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tDESCRIPTION")
			for _, t := range types {
				fmt.Fprintf(w, "%d\t%s\t%s\n", t.ID, t.Name, t.Description)
			}
			return w.Flush()
		},
	}
}
