package main

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kiranshivaraju/objcounter/internal/client"
	"github.com/kiranshivaraju/objcounter/pkg/models"
)

func newResultsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "results",
		Short: "Browse and manage stored counting results",
	}
	cmd.AddCommand(newResultsListCmd(a), newResultsShowCmd(a), newResultsDeleteCmd(a))
	return cmd
}

func newResultsListCmd(a *app) *cobra.Command {
	var q client.ResultsQuery

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored results, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			page, err := a.api.Results(cmd.Context(), q)
			if err != nil {
				return fmt.Errorf("listing results: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(page.Results) == 0 {
				fmt.Fprintln(out, "No results found.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tTYPE\tPREDICTED\tCORRECTED\tIMAGE\tCREATED")
			for _, r := range page.Results {
				fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\t%s\n",
					r.ID, r.ObjectType, r.PredictedCount, formatCorrected(r.CorrectedCount),
					r.ImagePath, r.CreatedAt.Local().Format("2006-01-02 15:04"))
			}
			if err := w.Flush(); err != nil {
				return err
			}

			p := page.Pagination
			fmt.Fprintf(out, "\nPage %d of %d (%d results)\n", p.Page, p.Pages, p.Total)
			return nil
		},
	}

	cmd.Flags().IntVar(&q.Page, "page", 1, "page number")
	cmd.Flags().IntVar(&q.PerPage, "per-page", 10, "results per page (max 100)")
	cmd.Flags().StringVarP(&q.ObjectType, "type", "t", "", "only show results of this object type")
	return cmd
}

func newResultsShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show one result with its accuracy metrics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			detail, err := a.api.Result(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("fetching result %d: %w", id, err)
			}
			printDetail(cmd.OutOrStdout(), detail)
			return nil
		},
	}
}

func newResultsDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID...",
		Short: "Delete results and their stored images",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := parseID(arg)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}

			out := cmd.OutOrStdout()
			if len(ids) == 1 {
				if err := a.api.DeleteResult(cmd.Context(), ids[0]); err != nil {
					return fmt.Errorf("deleting result %d: %w", ids[0], err)
				}
				fmt.Fprintf(out, "Deleted result %d\n", ids[0])
				return nil
			}

			resp, err := a.api.BulkDelete(cmd.Context(), ids)
			if err != nil {
				return fmt.Errorf("deleting results: %w", err)
			}
			fmt.Fprintln(out, resp.Message)
			for _, f := range resp.Failures {
				fmt.Fprintf(out, "  %d: %s\n", f.ID, f.Reason)
			}
			return nil
		},
	}
}

func newCorrectCmd(a *app) *cobra.Command {
	var objectType string

	cmd := &cobra.Command{
		Use:   "correct ID COUNT",
		Short: "Record the true object count for a result",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			count, err := strconv.Atoi(args[1])
			if err != nil || count < 0 {
				return fmt.Errorf("count must be a non-negative integer, got %q", args[1])
			}

			resp, err := a.api.Correct(cmd.Context(), models.CorrectionRequest{
				ResultID:       id,
				CorrectedCount: count,
				ObjectType:     objectType,
			})
			if err != nil {
				return fmt.Errorf("saving correction: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Result %d (%s): predicted %d, corrected %d\n",
				resp.ResultID, resp.ObjectType, resp.PredictedCount, resp.CorrectedCount)
			return nil
		},
	}

	cmd.Flags().StringVarP(&objectType, "type", "t", "", "also reassign the result to this object type")
	return cmd
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid result id %q", s)
	}
	return id, nil
}

func formatCorrected(c *int) string {
	if c == nil {
		return "-"
	}
	return strconv.Itoa(*c)
}

func printDetail(w io.Writer, d *models.ResultDetail) {
	fmt.Fprintf(w, "id:          %d\n", d.ID)
	fmt.Fprintf(w, "object type: %s\n", d.ObjectType)
	fmt.Fprintf(w, "predicted:   %d\n", d.PredictedCount)
	fmt.Fprintf(w, "corrected:   %s\n", formatCorrected(d.CorrectedCount))
	fmt.Fprintf(w, "image:       %s\n", d.ImagePath)
	fmt.Fprintf(w, "segments:    %d\n", d.TotalSegments)
	fmt.Fprintf(w, "time:        %.2fs\n", d.ProcessingTime)

	if !d.HasFeedback || d.PerformanceMetrics == nil {
		return
	}
	m := d.PerformanceMetrics
	fmt.Fprintf(w, "f1 score:    %.1f%%\n", m.F1Score)
	fmt.Fprintf(w, "precision:   %.1f%%\n", m.Precision)
	fmt.Fprintf(w, "recall:      %.1f%%\n", m.Recall)
	fmt.Fprintf(w, "\n%s\n", m.Explanation)
}
