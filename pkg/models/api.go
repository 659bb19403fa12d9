package models

// Request and response bodies of the backend HTTP API, shared by the
// handlers and the client.

type HealthResponse struct {
	Status            string `json:"status"`
	Message           string `json:"message"`
	Database          string `json:"database,omitempty"`
	ObjectTypes       int    `json:"object_types"`
	PipelineAvailable bool   `json:"pipeline_available"`
	Detector          string `json:"detector,omitempty"`
	Error             string `json:"error,omitempty"`
}

type ObjectTypesResponse struct {
	Success     bool          `json:"success"`
	ObjectTypes []*ObjectType `json:"object_types"`
}

type CorrectionRequest struct {
	ResultID       int64  `json:"result_id"`
	CorrectedCount int    `json:"corrected_count"`
	ObjectType     string `json:"object_type,omitempty"`
}

type CorrectionResponse struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	ResultID       int64  `json:"result_id"`
	ObjectType     string `json:"object_type"`
	PredictedCount int    `json:"predicted_count"`
	CorrectedCount int    `json:"corrected_count"`
	UpdatedAt      string `json:"updated_at"`
}

type Pagination struct {
	Page    int  `json:"page"`
	PerPage int  `json:"per_page"`
	Total   int  `json:"total"`
	Pages   int  `json:"pages"`
	HasNext bool `json:"has_next"`
	HasPrev bool `json:"has_prev"`
}

type ResultsPage struct {
	Success    bool       `json:"success"`
	Results    []*Result  `json:"results"`
	Pagination Pagination `json:"pagination"`
}

// ResultDetail is one result with its accuracy scoring. Every score field is
// nil until feedback exists.
type ResultDetail struct {
	*Result
	F1Score                *float64         `json:"f1_score"`
	Precision              *float64         `json:"precision"`
	Recall                 *float64         `json:"recall"`
	PerformanceExplanation *string          `json:"performance_explanation"`
	PerformanceMetrics     *AccuracyMetrics `json:"performance_metrics"`
	Accuracy               *float64         `json:"accuracy"`
	Difference             *int             `json:"difference"`
	HasFeedback            bool             `json:"has_feedback"`
}

type ResultDetailResponse struct {
	Success bool          `json:"success"`
	Result  *ResultDetail `json:"result"`
}

type BulkDeleteRequest struct {
	ResultIDs []int64 `json:"result_ids"`
}

type BulkDeleteFailure struct {
	ID     int64  `json:"id"`
	Reason string `json:"reason"`
}

type BulkDeleteResponse struct {
	Success          bool                `json:"success"`
	Message          string              `json:"message"`
	DeletedCount     int                 `json:"deleted_count"`
	DeletedResultIDs []int64             `json:"deleted_result_ids"`
	DeletedFiles     []string            `json:"deleted_files"`
	FailedCount      int                 `json:"failed_count"`
	Failures         []BulkDeleteFailure `json:"failures"`
}

type StartMonitoringRequest struct {
	TotalImages int `json:"total_images"`
}

type StartMonitoringResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	TotalImages int    `json:"total_images"`
	SessionID   string `json:"session_id"`
}

type StopMonitoringResponse struct {
	Success bool               `json:"success"`
	Message string             `json:"message"`
	Summary PerformanceSummary `json:"summary"`
}

// UpdateStageRequest reports the orchestrator's stage. ImageIndex is the
// zero-based index of the image being processed, if any.
type UpdateStageRequest struct {
	Stage      string `json:"stage"`
	ImageIndex *int   `json:"image_index"`
}

type UpdateStageResponse struct {
	Success    bool   `json:"success"`
	Stage      string `json:"stage"`
	ImageIndex *int   `json:"image_index"`
}
