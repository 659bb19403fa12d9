package analysis

import (
	"math"
	"strings"
	"testing"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestScore(t *testing.T) {
	tests := []struct {
		name              string
		predicted         int
		corrected         int
		wantF1            float64
		wantPrecision     float64
		wantRecall        float64
		wantTP, wantFP, wantFN int
	}{
		{"exact match", 5, 5, 100, 100, 100, 5, 0, 0},
		{"over-detection", 6, 4, 80, 4.0 / 6 * 100, 100, 4, 2, 0},
		{"under-detection", 2, 4, 4.0 / 6 * 100, 100, 50, 2, 0, 2},
		{"both zero", 0, 0, 100, 100, 100, 0, 0, 0},
		{"predicted nothing", 0, 3, 0, 0, 0, 0, 0, 3},
		{"nothing there", 3, 0, 0, 0, 0, 0, 3, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Score(tt.predicted, tt.corrected)
			if !approx(m.F1Score, tt.wantF1) {
				t.Errorf("F1 = %v, want %v", m.F1Score, tt.wantF1)
			}
			if !approx(m.Precision, tt.wantPrecision) {
				t.Errorf("precision = %v, want %v", m.Precision, tt.wantPrecision)
			}
			if !approx(m.Recall, tt.wantRecall) {
				t.Errorf("recall = %v, want %v", m.Recall, tt.wantRecall)
			}
			if m.TruePositives != tt.wantTP || m.FalsePositives != tt.wantFP || m.FalseNegatives != tt.wantFN {
				t.Errorf("confusion = (%d,%d,%d), want (%d,%d,%d)",
					m.TruePositives, m.FalsePositives, m.FalseNegatives, tt.wantTP, tt.wantFP, tt.wantFN)
			}
		})
	}
}

func TestScore_Explanation(t *testing.T) {
	m := Score(6, 4)
	if !strings.HasPrefix(m.Explanation, "Fair") && !strings.HasPrefix(m.Explanation, "Good") {
		t.Errorf("unexpected level in explanation: %q", m.Explanation)
	}
	if !strings.Contains(m.Explanation, "Over-detected: 2") {
		t.Errorf("explanation missing over-detection breakdown: %q", m.Explanation)
	}
	if !strings.Contains(m.Explanation, "over-detect") {
		t.Errorf("explanation missing balance insight: %q", m.Explanation)
	}

	m = Score(2, 4)
	if !strings.Contains(m.Explanation, "Missed: 2") {
		t.Errorf("explanation missing missed breakdown: %q", m.Explanation)
	}
	if !strings.Contains(m.Explanation, "conservative") {
		t.Errorf("explanation missing conservative insight: %q", m.Explanation)
	}
}

func TestScore_ExplanationInsight(t *testing.T) {
	tests := []struct {
		predicted, corrected int
		want                 string
	}{
		{5, 5, "Excellent (F1: 100.0%) - Near-perfect object counting performance! Good balance between precision and recall. [Predicted: 5, Actual: 5 | Correctly detected: 5]"},
		{9, 10, "Very Good (F1: 94.7%) - Strong performance with minor counting variations."},
		{6, 4, "Good (F1: 80.0%) - Solid performance, some room for improvement."},
		{2, 4, "Fair (F1: 66.7%) - Moderate performance, significant counting differences detected."},
		{0, 3, "Needs Improvement (F1: 0.0%) - Large counting discrepancies, model may need retraining."},
	}

	for _, tt := range tests {
		m := Score(tt.predicted, tt.corrected)
		if !strings.HasPrefix(m.Explanation, tt.want) {
			t.Errorf("Score(%d, %d).Explanation = %q, want prefix %q", tt.predicted, tt.corrected, m.Explanation, tt.want)
		}
	}
}

func TestLevel(t *testing.T) {
	tests := []struct {
		f1   float64
		want string
	}{
		{100, "Excellent"},
		{95, "Excellent"},
		{94.9, "Very Good"},
		{85, "Very Good"},
		{70, "Good"},
		{50, "Fair"},
		{49.9, "Needs Improvement"},
		{0, "Needs Improvement"},
	}
	for _, tt := range tests {
		if got := Level(tt.f1); got != tt.want {
			t.Errorf("Level(%v) = %q, want %q", tt.f1, got, tt.want)
		}
	}
}

func TestLegacyAccuracy(t *testing.T) {
	tests := []struct {
		predicted, corrected int
		want                 float64
	}{
		{0, 0, 100},
		{1, 0, 0},
		{4, 4, 100},
		{3, 4, 75},
		{5, 4, 75},
		{12, 4, 0},
	}
	for _, tt := range tests {
		if got := LegacyAccuracy(tt.predicted, tt.corrected); !approx(got, tt.want) {
			t.Errorf("LegacyAccuracy(%d, %d) = %v, want %v", tt.predicted, tt.corrected, got, tt.want)
		}
	}
}
