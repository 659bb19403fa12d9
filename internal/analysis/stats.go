package analysis

import (
	"sort"

	"github.com/kiranshivaraju/objcounter/pkg/models"
)

// Usage computes avg/peak/min over a series of utilization samples.
// Returns the zero value for an empty series.
func Usage(samples []float64) models.UsageStats {
	if len(samples) == 0 {
		return models.UsageStats{}
	}
	sum := 0.0
	peak, low := samples[0], samples[0]
	for _, v := range samples {
		sum += v
		peak = max(peak, v)
		low = min(low, v)
	}
	return models.UsageStats{
		AvgUsage:  sum / float64(len(samples)),
		PeakUsage: peak,
		MinUsage:  low,
	}
}

// Tally merges the object counts of every successful result into one list,
// sorted by count descending then type name. Error-variant results are skipped.
// Returns an empty slice (never nil) when there is nothing to tally.
func Tally(results []models.ProcessedResult) []models.ObjectCount {
	totals := make(map[string]int)
	for _, r := range results {
		if r.Failed() {
			continue
		}
		for _, o := range r.Objects {
			totals[o.Type] += o.Count
		}
	}

	out := make([]models.ObjectCount, 0, len(totals))
	for typ, n := range totals {
		out = append(out, models.ObjectCount{Type: typ, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Type < out[j].Type
	})
	return out
}
