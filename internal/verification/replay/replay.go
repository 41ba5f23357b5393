// Package replay deduplicates webhook deliveries. The provider delivers
// at-least-once; a second delivery of the same completion must be
// acknowledged without reprocessing.
package replay

import (
	"context"
	"fmt"
	"time"
)

// Store records processed webhook deliveries for a retention window. Seen is
// checked before processing; MarkProcessed runs only after processing
// succeeds, so a delivery that failed halfway is retried, not swallowed.
type Store interface {
	Seen(ctx context.Context, providerID, runID string, completedAt time.Time) (bool, error)
	MarkProcessed(ctx context.Context, providerID, runID string, completedAt time.Time) error
}

func deliveryKey(providerID, runID string, completedAt time.Time) string {
	return fmt.Sprintf("idv:webhook:%s:%s:%d", providerID, runID, completedAt.UTC().Unix())
}
