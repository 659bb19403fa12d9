package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/kiranshivaraju/objcounter/pkg/models"
)

// --- helpers ---

func backendServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return ts
}

func newTestClient(t *testing.T, baseURL string) *HTTPClient {
	t.Helper()
	return NewHTTPClient(baseURL, 5*time.Second)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// --- CountAll ---

func TestCountAll_SendsMultipart(t *testing.T) {
	ts := backendServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/count-all" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		file, header, err := r.FormFile("image")
		if err != nil {
			t.Errorf("missing image part: %v", err)
			return
		}
		data, _ := io.ReadAll(file)
		if header.Filename != "street.png" || string(data) != "img" {
			t.Errorf("unexpected upload: %s %q", header.Filename, data)
		}
		if r.FormValue("prompt") != "count cars" {
			t.Errorf("unexpected prompt: %q", r.FormValue("prompt"))
		}
		writeJSON(w, http.StatusOK, models.CountResponse{
			Success:        true,
			ResultID:       12,
			Objects:        []models.ObjectCount{{Type: "car", Count: 2}},
			TotalObjects:   2,
			TotalSegments:  9,
			ProcessingTime: 3.5,
		})
	})

	resp, err := newTestClient(t, ts.URL).CountAll(context.Background(), "street.png", []byte("img"), "count cars")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.ResultID != 12 || len(resp.Objects) != 1 || resp.TotalSegments != 9 {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestCountAll_NilObjectsBecomesEmpty(t *testing.T) {
	ts := backendServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": true, "result_id": 1}`))
	})

	resp, err := newTestClient(t, ts.URL).CountAll(context.Background(), "a.png", []byte("x"), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Objects == nil {
		t.Error("expected non-nil objects")
	}
}

func TestCountAll_NotBoundByClientTimeout(t *testing.T) {
	ts := backendServer(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		writeJSON(w, http.StatusOK, models.CountResponse{Success: true})
	})

	c := NewHTTPClient(ts.URL, 20*time.Millisecond)
	if _, err := c.CountAll(context.Background(), "a.png", []byte("x"), ""); err != nil {
		t.Fatalf("upload should only be bounded by ctx, got %v", err)
	}
}

// --- error handling ---

// --- Count ---

func TestCount_SendsObjectType(t *testing.T) {
	ts := backendServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/count" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if _, _, err := r.FormFile("image"); err != nil {
			t.Errorf("missing image part: %v", err)
		}
		if r.FormValue("object_type") != "car" || r.FormValue("description") != "lot" {
			t.Errorf("unexpected fields: %q %q", r.FormValue("object_type"), r.FormValue("description"))
		}
		if _, ok := r.MultipartForm.Value["prompt"]; ok {
			t.Error("prompt should not be sent")
		}
		writeJSON(w, http.StatusOK, models.TypeCountResponse{
			Success: true, ResultID: 4, ObjectType: "car", PredictedCount: 3, TotalSegments: 12,
		})
	})

	resp, err := newTestClient(t, ts.URL).Count(context.Background(), "lot.jpg", []byte("img"), "car", "lot")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.ResultID != 4 || resp.ObjectType != "car" || resp.PredictedCount != 3 {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestCount_InvalidObjectType(t *testing.T) {
	ts := backendServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":   "Invalid object type: unicorn",
			"code":    "INVALID_OBJECT_TYPE",
			"details": map[string]any{"available_types": []string{"car"}},
		})
	})

	_, err := newTestClient(t, ts.URL).Count(context.Background(), "a.png", []byte("x"), "unicorn", "")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != "INVALID_OBJECT_TYPE" || apiErr.Message != "Invalid object type: unicorn" {
		t.Errorf("unexpected error: %+v", apiErr)
	}
}

func TestDeleteResult_DrainsBody(t *testing.T) {
	ts := backendServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/api/results/9" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Result deleted successfully"})
	})

	if err := newTestClient(t, ts.URL).DeleteResult(context.Background(), 9); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAPIError_UsesBodyMessage(t *testing.T) {
	ts := backendServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Result not found", "code": "NOT_FOUND"})
	})

	_, err := newTestClient(t, ts.URL).Result(context.Background(), 5)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != 404 || apiErr.Message != "Result not found" || apiErr.Code != "NOT_FOUND" {
		t.Errorf("unexpected error: %+v", apiErr)
	}
}

func TestAPIError_DefaultsToStatusText(t *testing.T) {
	ts := backendServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("<html>upstream down</html>"))
	})

	err := newTestClient(t, ts.URL).UpdateStage(context.Background(), "completed", nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Message != "Bad Gateway" {
		t.Errorf("expected status text, got %q", apiErr.Message)
	}
}

func TestUnreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	_, err := newTestClient(t, url).Metrics(context.Background())
	if !errors.Is(err, ErrBackendUnreachable) {
		t.Errorf("expected ErrBackendUnreachable, got %v", err)
	}
}

func TestTimeout(t *testing.T) {
	ts := backendServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	})

	c := NewHTTPClient(ts.URL, 20*time.Millisecond)
	_, err := c.Summary(context.Background())
	if !errors.Is(err, ErrBackendTimeout) {
		t.Errorf("expected ErrBackendTimeout, got %v", err)
	}
}

func TestCancelledContext(t *testing.T) {
	ts := backendServer(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := newTestClient(t, ts.URL).CountAll(ctx, "a.png", []byte("x"), "")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestDecodeError(t *testing.T) {
	ts := backendServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	})

	_, err := newTestClient(t, ts.URL).Health(context.Background())
	if err == nil {
		t.Fatal("expected decode error")
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		t.Errorf("decode failure should not be an APIError")
	}
}

// --- telemetry ---

func TestMonitoringCalls(t *testing.T) {
	var mu sync.Mutex
	var paths []string
	ts := backendServer(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.Method+" "+r.URL.Path)
		mu.Unlock()
		switch r.URL.Path {
		case "/api/performance/start":
			var in models.StartMonitoringRequest
			json.NewDecoder(r.Body).Decode(&in)
			if in.TotalImages != 3 {
				t.Errorf("unexpected total_images: %d", in.TotalImages)
			}
			writeJSON(w, http.StatusOK, models.StartMonitoringResponse{Success: true, TotalImages: 3, SessionID: "s-1"})
		case "/api/performance/update-stage":
			var in models.UpdateStageRequest
			json.NewDecoder(r.Body).Decode(&in)
			if in.Stage != "processing_image" || in.ImageIndex == nil || *in.ImageIndex != 1 {
				t.Errorf("unexpected stage update: %+v", in)
			}
			writeJSON(w, http.StatusOK, models.UpdateStageResponse{Success: true})
		case "/api/performance/metrics":
			writeJSON(w, http.StatusOK, models.PerformanceMetrics{
				Monitoring: true,
				CPU:        models.CPUMetrics{UsagePercent: 33},
			})
		case "/api/performance/stop":
			writeJSON(w, http.StatusOK, models.StopMonitoringResponse{
				Success: true,
				Summary: models.PerformanceSummary{Available: true, TotalReadings: 7},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	c := newTestClient(t, ts.URL)
	ctx := context.Background()

	started, err := c.StartMonitoring(ctx, 3)
	if err != nil || started.SessionID != "s-1" {
		t.Fatalf("start: %v %+v", err, started)
	}
	idx := 1
	if err := c.UpdateStage(ctx, models.StageProcessingImage, &idx); err != nil {
		t.Fatalf("update stage: %v", err)
	}
	m, err := c.Metrics(ctx)
	if err != nil || !m.Monitoring || m.CPU.UsagePercent != 33 {
		t.Fatalf("metrics: %v %+v", err, m)
	}
	summary, err := c.StopMonitoring(ctx)
	if err != nil || summary.TotalReadings != 7 {
		t.Fatalf("stop: %v %+v", err, summary)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(paths) != 4 {
		t.Errorf("unexpected calls: %v", paths)
	}
}

// --- results ---

func TestResults_QueryParams(t *testing.T) {
	ts := backendServer(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("page") != "2" || q.Get("per_page") != "5" || q.Get("object_type") != "car" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		writeJSON(w, http.StatusOK, models.ResultsPage{
			Success:    true,
			Results:    []*models.Result{{ID: 4, ObjectType: "car"}},
			Pagination: models.Pagination{Page: 2, PerPage: 5, Total: 6, Pages: 2, HasPrev: true},
		})
	})

	page, err := newTestClient(t, ts.URL).Results(context.Background(), ResultsQuery{Page: 2, PerPage: 5, ObjectType: "car"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Results) != 1 || !page.Pagination.HasPrev {
		t.Errorf("unexpected page: %+v", page)
	}
}

func TestResults_NoQueryWhenDefaults(t *testing.T) {
	ts := backendServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.RawQuery != "" {
			t.Errorf("expected no query, got %s", r.URL.RawQuery)
		}
		writeJSON(w, http.StatusOK, models.ResultsPage{Success: true})
	})

	if _, err := newTestClient(t, ts.URL).Results(context.Background(), ResultsQuery{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCorrect(t *testing.T) {
	ts := backendServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/api/correct" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var in models.CorrectionRequest
		json.NewDecoder(r.Body).Decode(&in)
		writeJSON(w, http.StatusOK, models.CorrectionResponse{
			Success: true, ResultID: in.ResultID, PredictedCount: 5, CorrectedCount: in.CorrectedCount,
		})
	})

	resp, err := newTestClient(t, ts.URL).Correct(context.Background(), models.CorrectionRequest{ResultID: 3, CorrectedCount: 4})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.ResultID != 3 || resp.CorrectedCount != 4 {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestBulkDelete(t *testing.T) {
	ts := backendServer(t, func(w http.ResponseWriter, r *http.Request) {
		var in models.BulkDeleteRequest
		json.NewDecoder(r.Body).Decode(&in)
		if len(in.ResultIDs) != 2 {
			t.Errorf("unexpected ids: %v", in.ResultIDs)
		}
		writeJSON(w, http.StatusOK, models.BulkDeleteResponse{
			Success: true, DeletedCount: 1, DeletedResultIDs: []int64{1},
			FailedCount: 1, Failures: []models.BulkDeleteFailure{{ID: 2, Reason: "Result not found"}},
		})
	})

	resp, err := newTestClient(t, ts.URL).BulkDelete(context.Background(), []int64{1, 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.DeletedCount != 1 || resp.Failures[0].Reason != "Result not found" {
		t.Errorf("unexpected response: %+v", resp)
	}
}
