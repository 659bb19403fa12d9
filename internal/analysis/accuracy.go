package analysis

import (
	"fmt"
	"math"
	"strings"

	"github.com/kiranshivaraju/objcounter/pkg/models"
)

// Score computes counting precision/recall/F1.
// TP = min(predicted, corrected), FP = over-detection, FN = missed objects.
func Score(predicted, corrected int) models.AccuracyMetrics {
	tp := min(predicted, corrected)
	fp := max(0, predicted-corrected)
	fn := max(0, corrected-predicted)

	var precision, recall float64
	switch {
	case predicted > 0:
		precision = float64(tp) / float64(predicted)
	case corrected == 0:
		precision = 1
	}
	switch {
	case corrected > 0:
		recall = float64(tp) / float64(corrected)
	case predicted == 0:
		recall = 1
	}

	var f1 float64
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}

	m := models.AccuracyMetrics{
		F1Score:        f1 * 100,
		Precision:      precision * 100,
		Recall:         recall * 100,
		TruePositives:  tp,
		FalsePositives: fp,
		FalseNegatives: fn,
	}
	m.Explanation = explain(m, predicted, corrected)
	return m
}

// LegacyAccuracy is the pre-F1 metric: 100 minus the relative error, floored at 0.
func LegacyAccuracy(predicted, corrected int) float64 {
	if corrected == 0 {
		if predicted == 0 {
			return 100
		}
		return 0
	}
	diff := math.Abs(float64(predicted - corrected))
	return math.Max(0, 100-diff/float64(corrected)*100)
}

// band is one rating step: results with F1 at or above min get its label.
type band struct {
	min     float64
	label   string
	insight string
}

var bands = []band{
	{95, "Excellent", "Near-perfect object counting performance!"},
	{85, "Very Good", "Strong performance with minor counting variations."},
	{70, "Good", "Solid performance, some room for improvement."},
	{50, "Fair", "Moderate performance, significant counting differences detected."},
	{0, "Needs Improvement", "Large counting discrepancies, model may need retraining."},
}

func bandFor(f1 float64) band {
	for _, b := range bands[:len(bands)-1] {
		if f1 >= b.min {
			return b
		}
	}
	return bands[len(bands)-1]
}

// Level maps an F1 percentage onto a coarse rating band.
func Level(f1 float64) string {
	return bandFor(f1).label
}

func explain(m models.AccuracyMetrics, predicted, corrected int) string {
	var balance string
	switch {
	case m.Precision > m.Recall+15:
		balance = "Model tends to be conservative (misses some objects)."
	case m.Recall > m.Precision+15:
		balance = "Model tends to over-detect (finds extra objects)."
	default:
		balance = "Good balance between precision and recall."
	}

	parts := []string{fmt.Sprintf("Predicted: %d, Actual: %d", predicted, corrected)}
	if m.TruePositives > 0 {
		parts = append(parts, fmt.Sprintf("Correctly detected: %d", m.TruePositives))
	}
	if m.FalsePositives > 0 {
		parts = append(parts, fmt.Sprintf("Over-detected: %d", m.FalsePositives))
	}
	if m.FalseNegatives > 0 {
		parts = append(parts, fmt.Sprintf("Missed: %d", m.FalseNegatives))
	}

	b := bandFor(m.F1Score)
	return fmt.Sprintf("%s (F1: %.1f%%) - %s %s [%s]",
		b.label, m.F1Score, b.insight, balance, strings.Join(parts, " | "))
}
