package aggregation

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
)

// Lock elects a single active scheduler among redundant instances. It is
// cooperative and TTL-based: Acquire never blocks, Release is a no-op for
// stale owners. A stall past the TTL can briefly yield two owners; the
// guarded work is idempotent per window, so that only repeats work.
type Lock interface {
	Acquire(ctx context.Context, ownerID string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, ownerID string) error
}

// NewOwnerID builds a process-instance-unique lock owner token,
// regenerated on every process start.
func NewOwnerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return host + "-" + uuid.NewString()
}
