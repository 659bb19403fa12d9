// Package client is a typed HTTP client for the object counter backend.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/kiranshivaraju/objcounter/pkg/models"
)

// Sentinel errors for transport failures. Backend error responses are
// reported as *APIError instead.
var (
	ErrBackendUnreachable = errors.New("backend unreachable")
	ErrBackendTimeout     = errors.New("backend request timeout")
)

// APIError is a non-2xx response. Message carries the body's "error" field,
// or the HTTP status text when the body has none.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
}

// Client is the interface for talking to the backend.
type Client interface {
	Health(ctx context.Context) (*models.HealthResponse, error)
	ObjectTypes(ctx context.Context) ([]*models.ObjectType, error)
	CountAll(ctx context.Context, filename string, image []byte, prompt string) (*models.CountResponse, error)
	Count(ctx context.Context, filename string, image []byte, objectType, description string) (*models.TypeCountResponse, error)
	Correct(ctx context.Context, req models.CorrectionRequest) (*models.CorrectionResponse, error)
	Results(ctx context.Context, q ResultsQuery) (*models.ResultsPage, error)
	Result(ctx context.Context, id int64) (*models.ResultDetail, error)
	DeleteResult(ctx context.Context, id int64) error
	BulkDelete(ctx context.Context, ids []int64) (*models.BulkDeleteResponse, error)

	StartMonitoring(ctx context.Context, totalImages int) (*models.StartMonitoringResponse, error)
	StopMonitoring(ctx context.Context) (models.PerformanceSummary, error)
	Metrics(ctx context.Context) (models.PerformanceMetrics, error)
	UpdateStage(ctx context.Context, stage string, imageIndex *int) error
	Summary(ctx context.Context) (models.PerformanceSummary, error)
}

// ResultsQuery selects a page of stored results. Zero values use the
// backend defaults.
type ResultsQuery struct {
	Page       int
	PerPage    int
	ObjectType string
}

// HTTPClient implements Client over the backend's JSON API.
type HTTPClient struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
}

// NewHTTPClient creates a new backend client. timeout bounds every request
// except image submission, whose deadline is left to the caller's context.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		timeout: timeout,
		client:  &http.Client{},
	}
}

func (c *HTTPClient) Health(ctx context.Context) (*models.HealthResponse, error) {
	var out models.HealthResponse
	if err := c.doJSON(ctx, http.MethodGet, "/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) ObjectTypes(ctx context.Context) ([]*models.ObjectType, error) {
	var out models.ObjectTypesResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/object-types", nil, &out); err != nil {
		return nil, err
	}
	return out.ObjectTypes, nil
}

// CountAll submits one image to POST /api/count-all as multipart form data.
func (c *HTTPClient) CountAll(ctx context.Context, filename string, image []byte, prompt string) (*models.CountResponse, error) {
	req, err := c.uploadRequest(ctx, "/api/count-all", filename, image, map[string]string{"prompt": prompt})
	if err != nil {
		return nil, err
	}

	var out models.CountResponse
	if err := c.send(req, &out); err != nil {
		return nil, err
	}
	if out.Objects == nil {
		out.Objects = []models.ObjectCount{}
	}
	return &out, nil
}

// Count submits one image to POST /api/count, counting only objectType.
func (c *HTTPClient) Count(ctx context.Context, filename string, image []byte, objectType, description string) (*models.TypeCountResponse, error) {
	req, err := c.uploadRequest(ctx, "/api/count", filename, image, map[string]string{
		"object_type": objectType,
		"description": description,
	})
	if err != nil {
		return nil, err
	}

	var out models.TypeCountResponse
	if err := c.send(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// uploadRequest builds a multipart POST carrying the image part and every
// non-empty field.
func (c *HTTPClient) uploadRequest(ctx context.Context, path, filename string, image []byte, fields map[string]string) (*http.Request, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", filename)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	for name, value := range fields {
		if value == "" {
			continue
		}
		if err := mw.WriteField(name, value); err != nil {
			return nil, fmt.Errorf("building request: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req, nil
}

func (c *HTTPClient) Correct(ctx context.Context, in models.CorrectionRequest) (*models.CorrectionResponse, error) {
	var out models.CorrectionResponse
	if err := c.doJSON(ctx, http.MethodPut, "/api/correct", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) Results(ctx context.Context, q ResultsQuery) (*models.ResultsPage, error) {
	params := url.Values{}
	if q.Page > 0 {
		params.Set("page", strconv.Itoa(q.Page))
	}
	if q.PerPage > 0 {
		params.Set("per_page", strconv.Itoa(q.PerPage))
	}
	if q.ObjectType != "" {
		params.Set("object_type", q.ObjectType)
	}
	path := "/api/results"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var out models.ResultsPage
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) Result(ctx context.Context, id int64) (*models.ResultDetail, error) {
	var out models.ResultDetailResponse
	if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/api/results/%d", id), nil, &out); err != nil {
		return nil, err
	}
	return out.Result, nil
}

func (c *HTTPClient) DeleteResult(ctx context.Context, id int64) error {
	return c.doJSON(ctx, http.MethodDelete, fmt.Sprintf("/api/results/%d", id), nil, nil)
}

func (c *HTTPClient) BulkDelete(ctx context.Context, ids []int64) (*models.BulkDeleteResponse, error) {
	var out models.BulkDeleteResponse
	if err := c.doJSON(ctx, http.MethodDelete, "/api/results/bulk-delete", models.BulkDeleteRequest{ResultIDs: ids}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) StartMonitoring(ctx context.Context, totalImages int) (*models.StartMonitoringResponse, error) {
	var out models.StartMonitoringResponse
	in := models.StartMonitoringRequest{TotalImages: totalImages}
	if err := c.doJSON(ctx, http.MethodPost, "/api/performance/start", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StopMonitoring ends the backend session and returns its final summary.
func (c *HTTPClient) StopMonitoring(ctx context.Context) (models.PerformanceSummary, error) {
	var out models.StopMonitoringResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/performance/stop", struct{}{}, &out); err != nil {
		return models.PerformanceSummary{}, err
	}
	return out.Summary, nil
}

func (c *HTTPClient) Metrics(ctx context.Context) (models.PerformanceMetrics, error) {
	var out models.PerformanceMetrics
	err := c.doJSON(ctx, http.MethodGet, "/api/performance/metrics", nil, &out)
	return out, err
}

func (c *HTTPClient) UpdateStage(ctx context.Context, stage string, imageIndex *int) error {
	in := models.UpdateStageRequest{Stage: stage, ImageIndex: imageIndex}
	return c.doJSON(ctx, http.MethodPost, "/api/performance/update-stage", in, nil)
}

func (c *HTTPClient) Summary(ctx context.Context) (models.PerformanceSummary, error) {
	var out models.PerformanceSummary
	err := c.doJSON(ctx, http.MethodGet, "/api/performance/summary", nil, &out)
	return out, err
}

// doJSON sends in (if non-nil) as a JSON body under the client timeout and
// decodes the response into out (if non-nil).
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, in, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *HTTPClient) send(req *http.Request, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", req.Method, req.URL.Path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) *APIError {
	apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	var body struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body); err == nil {
		if body.Error != "" {
			apiErr.Message = body.Error
		}
		apiErr.Code = body.Code
	}
	return apiErr
}

// classifyError maps transport-level errors to sentinel errors. A cancelled
// context is returned wrapped so callers can still match context.Canceled.
func classifyError(err error) error {
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("request cancelled: %w", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrBackendTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrBackendTimeout, err)
	}

	return fmt.Errorf("%w: %v", ErrBackendUnreachable, err)
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
