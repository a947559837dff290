package attendance

import (
	"context"
	"time"
)

type RecordRepository interface {
	// EnsureAndLock returns the record for key, creating a placeholder row if
	// none exists, and holds a row lock for the rest of the transaction.
	EnsureAndLock(ctx context.Context, key Key, timezone string, isWorkday bool) (Record, error)
	Upsert(ctx context.Context, record Record) (Record, error)
	Get(ctx context.Context, key Key) (Record, error)
	List(ctx context.Context, filter RecordFilter) ([]Record, error)
}

type EventRepository interface {
	Append(ctx context.Context, event Event) error
	// LastPunch returns the user's most recent check-in or check-out, or nil.
	LastPunch(ctx context.Context, orgID, userID string) (*Event, error)
	ListByDay(ctx context.Context, key Key) ([]Event, error)
}

// ApprovedMinutesSource sums approved leave and overtime for a day.
type ApprovedMinutesSource interface {
	SumApprovedMinutes(ctx context.Context, orgID, userID string, workDate time.Time) (leave, overtime int, err error)
}
