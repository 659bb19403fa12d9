package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kiranshivaraju/objcounter/internal/analysis"
	"github.com/kiranshivaraju/objcounter/internal/orchestrator"
	"github.com/kiranshivaraju/objcounter/pkg/models"
)

func newRunCmd(a *app) *cobra.Command {
	var (
		prompt     string
		jobTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run IMAGE...",
		Short: "Count objects in each image, one at a time, while sampling backend telemetry",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if prompt == "" {
				prompt = a.cfg.Prompt
			}
			jobs, err := loadJobs(args, prompt)
			if err != nil {
				return err
			}

			opts := orchestrator.DefaultOptions()
			opts.JobTimeout = a.cfg.JobTimeout
			opts.PollInterval = a.cfg.PollInterval
			opts.TickInterval = a.cfg.TickInterval
			if jobTimeout > 0 {
				opts.JobTimeout = jobTimeout
			}
			orch := orchestrator.New(a.api, opts)

			bar := progressbar.NewOptions(len(jobs),
				progressbar.OptionSetWriter(cmd.ErrOrStderr()),
				progressbar.OptionSetDescription("Counting"),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)

			var processed, successful []models.ProcessedResult
			err = orch.Run(cmd.Context(), jobs, orchestrator.Callbacks{
				OnProgress: func(results []models.ProcessedResult) {
					processed = results
					bar.Describe(results[len(results)-1].Filename)
					_ = bar.Set(len(results))
				},
				OnComplete: func(results []models.ProcessedResult) {
					successful = results
				},
			})
			_ = bar.Finish()
			if err != nil {
				return fmt.Errorf("processing failed: %w", err)
			}

			printBatch(cmd.OutOrStdout(), processed, successful, orch.Session().Snapshot())
			return nil
		},
	}

	cmd.Flags().StringVarP(&prompt, "prompt", "p", "", "detection prompt sent with every image (default $COUNTER_PROMPT or the built-in prompt)")
	cmd.Flags().DurationVar(&jobTimeout, "job-timeout", 0, "per-image timeout (default $COUNTER_JOB_TIMEOUT_SECS or 120s)")
	return cmd
}

func loadJobs(paths []string, prompt string) ([]models.ImageJob, error) {
	jobs := make([]models.ImageJob, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read image: %w", err)
		}
		jobs = append(jobs, models.ImageJob{
			Filename: filepath.Base(p),
			Data:     data,
			Prompt:   prompt,
		})
	}
	return jobs, nil
}

func printBatch(w io.Writer, processed, successful []models.ProcessedResult, snap orchestrator.SessionSnapshot) {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "FILE\tRESULT\tOBJECTS\tSEGMENTS\tTIME")
	for _, r := range processed {
		if r.Failed() {
			fmt.Fprintf(tw, "%s\t-\terror: %s\t-\t-\n", r.Filename, r.Error)
			continue
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%d\t%.2fs\n", r.Filename, *r.ResultID, formatObjects(r.Objects), r.TotalSegments, r.ProcessingTime)
	}
	tw.Flush()

	fmt.Fprintf(w, "\nProcessed %d of %d images successfully in %s\n",
		len(successful), snap.TotalJobs, snap.Elapsed.Round(100*time.Millisecond))

	if totals := analysis.Tally(successful); len(totals) > 0 {
		fmt.Fprintf(w, "Totals: %s\n", formatObjects(totals))
	}

	if s := snap.Summary; s != nil && s.Available {
		fmt.Fprintf(w, "CPU avg %.1f%% peak %.1f%%, memory avg %.1f%% peak %.1f%% over %d readings\n",
			s.CPU.AvgUsage, s.CPU.PeakUsage, s.Memory.AvgUsage, s.Memory.PeakUsage, s.TotalReadings)
	}
}

func formatObjects(objects []models.ObjectCount) string {
	if len(objects) == 0 {
		return "none"
	}
	parts := make([]string, len(objects))
	for i, o := range objects {
		parts[i] = fmt.Sprintf("%s=%d", o.Type, o.Count)
	}
	return strings.Join(parts, ", ")
}
