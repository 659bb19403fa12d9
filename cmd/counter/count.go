package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

func newCountCmd(a *app) *cobra.Command {
	var objectType, description string

	cmd := &cobra.Command{
		Use:   "count IMAGE",
		Short: "Count a single object type in one image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if objectType == "" {
				return fmt.Errorf("--type is required")
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read image: %w", err)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.JobTimeout)
			defer cancel()
			res, err := a.api.Count(ctx, filepath.Base(args[0]), data, objectType, description)
			if err != nil {
				return fmt.Errorf("counting %s: %w", filepath.Base(args[0]), err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "result %d: %d %s (%d segments, %.1fs)\n",
				res.ResultID, res.PredictedCount, res.ObjectType, res.TotalSegments, res.ProcessingTime)
			return nil
		},
	}
	cmd.Flags().StringVarP(&objectType, "type", "t", "", "object type to count")
	cmd.Flags().StringVarP(&description, "description", "d", "", "free-text description stored with the result")
	return cmd
}
