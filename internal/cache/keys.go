package cache

import (
	"fmt"

	"github.com/google/uuid"
)

func ObjectTypesKey() string {
	return "objcounter:object-types"
}

// PerformanceSnapshotKey holds the latest telemetry sample as JSON.
func PerformanceSnapshotKey() string {
	return "objcounter:performance:latest"
}

func SessionStageKey(sessionID uuid.UUID) string {
	return fmt.Sprintf("objcounter:session:%s:stage", sessionID)
}

func RateLimitKey(client string) string {
	return fmt.Sprintf("ratelimit:%s", client)
}
