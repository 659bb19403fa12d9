package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net"
	"net/http"
	"time"

	"github.com/kiranshivaraju/objcounter/pkg/models"
)

// Remote implements models.Detector by forwarding the image to an external
// inference service that answers with the DetectionResult JSON shape.
type Remote struct {
	url    string
	client *http.Client
}

func NewRemote(url string, timeout time.Duration) *Remote {
	return &Remote{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (r *Remote) Name() string { return "remote" }

func (r *Remote) CountAll(ctx context.Context, req models.DetectionRequest) (models.DetectionResult, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("image", req.Filename)
	if err != nil {
		return models.DetectionResult{}, fmt.Errorf("building multipart body: %w", err)
	}
	if _, err := fw.Write(req.Image); err != nil {
		return models.DetectionResult{}, fmt.Errorf("writing image part: %w", err)
	}
	if req.Prompt != "" {
		if err := mw.WriteField("prompt", req.Prompt); err != nil {
			return models.DetectionResult{}, fmt.Errorf("writing prompt field: %w", err)
		}
	}
	if req.ObjectType != "" {
		if err := mw.WriteField("object_type", req.ObjectType); err != nil {
			return models.DetectionResult{}, fmt.Errorf("writing object_type field: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return models.DetectionResult{}, fmt.Errorf("closing multipart body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, &body)
	if err != nil {
		return models.DetectionResult{}, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return models.DetectionResult{}, classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.DetectionResult{}, fmt.Errorf("%w: status %d", ErrDetectorUnavailable, resp.StatusCode)
	}

	var result models.DetectionResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return models.DetectionResult{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	for _, o := range result.Objects {
		if o.Type == "" || o.Count < 0 {
			return models.DetectionResult{}, fmt.Errorf("%w: bad object entry %+v", ErrInvalidResponse, o)
		}
	}
	if result.Objects == nil {
		result.Objects = []models.ObjectCount{}
	}

	return result, nil
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrDetectionTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrDetectionTimeout, err)
	}

	return fmt.Errorf("%w: %v", ErrDetectorUnavailable, err)
}

var _ models.Detector = (*Remote)(nil)
