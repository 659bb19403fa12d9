package detector

import (
	"fmt"

	"github.com/kiranshivaraju/objcounter/internal/config"
	"github.com/kiranshivaraju/objcounter/pkg/models"
)

// New constructs the detector selected by config.
// Called once at server startup.
func New(cfg config.DetectorConfig) (models.Detector, error) {
	switch cfg.Provider {
	case "mock":
		return NewSimulated(cfg.Mock.Delay), nil
	case "remote":
		return NewRemote(cfg.Remote.URL, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown detector provider %q: must be one of mock, remote", cfg.Provider)
	}
}
