package repository

import "context"

// ExposureRepository holds process-wide (or cluster-wide) item exposure counters.
// The counters are shared by all sessions drawing from the same pool.
type ExposureRepository interface {
	// Increment adds one administration of the item and returns the new count
	Increment(ctx context.Context, itemID string) (int64, error)
	// IncrementSessions counts a started session, the exposure rate denominator
	IncrementSessions(ctx context.Context) (int64, error)
	// Counts returns a snapshot of all item counters
	Counts(ctx context.Context) (map[string]int64, error)
	// Sessions returns the number of started sessions since the last reset
	Sessions(ctx context.Context) (int64, error)
	// Reset clears every counter
	Reset(ctx context.Context) error
}
