package models

import "time"

// Result is a stored prediction joined with its input image and object type.
// CorrectedCount is nil until a user submits feedback.
type Result struct {
	ID             int64     `db:"id"              json:"id"`
	InputID        int64     `db:"input_id"        json:"input_id"`
	ObjectTypeID   int64     `db:"object_type_id"  json:"object_type_id"`
	ObjectType     string    `db:"object_type"     json:"object_type"`
	PredictedCount int       `db:"predicted_count" json:"predicted_count"`
	CorrectedCount *int      `db:"corrected_count" json:"corrected_count"`
	ImagePath      string    `db:"image_path"      json:"image_path"`
	Description    string    `db:"description"     json:"description"`
	TotalSegments  int       `db:"total_segments"  json:"total_segments"`
	ProcessingTime float64   `db:"processing_time" json:"processing_time"`
	CreatedAt      time.Time `db:"created_at"      json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"      json:"updated_at"`
}

// HasFeedback reports whether a correction has been recorded.
func (r *Result) HasFeedback() bool {
	return r.CorrectedCount != nil
}

// NewResult is the input to persisting one detection run.
type NewResult struct {
	ImagePath      string
	Description    string
	ObjectType     string
	PredictedCount int
	TotalSegments  int
	ProcessingTime float64
}

// AccuracyMetrics scores a predicted count against a user-corrected count.
// Percentages are in [0, 100].
type AccuracyMetrics struct {
	F1Score        float64 `json:"f1_score"`
	Precision      float64 `json:"precision"`
	Recall         float64 `json:"recall"`
	TruePositives  int     `json:"true_positives"`
	FalsePositives int     `json:"false_positives"`
	FalseNegatives int     `json:"false_negatives"`
	Explanation    string  `json:"explanation"`
}
