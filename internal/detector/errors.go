package detector

import "errors"

var (
	ErrDetectorUnavailable = errors.New("detector unavailable")
	ErrDetectionTimeout    = errors.New("detection timeout")
	ErrInvalidResponse     = errors.New("detector returned invalid response")
)
