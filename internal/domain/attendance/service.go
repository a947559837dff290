package attendance

import (
	"context"
	"time"

	"github.com/cmlabs-hris/attendance-core/internal/domain/user"
)

// Service is the punch and record query surface.
type Service interface {
	Punch(ctx context.Context, actor user.Actor, req PunchRequest) (Record, error)
	ListRecords(ctx context.Context, actor user.Actor, filter RecordFilter) ([]Record, error)
}

// MetricsCalculator classifies a day's punches. Implementations are pure.
type MetricsCalculator interface {
	Calculate(in MetricsInput) Metrics
	RoundOvertime(minutes int, rounding OvertimeRounding) int
}

// Reconciler merges new data into the persisted daily record.
type Reconciler interface {
	Reconcile(ctx context.Context, in ReconcileInput) (Record, error)
}

// Adjuster applies configured rule layers to calculated metrics.
type Adjuster interface {
	Adjust(ctx context.Context, in AdjustInput) (Adjustment, error)
}

// ConstraintGate checks live punches against org settings.
type ConstraintGate interface {
	Check(ctx context.Context, orgID, userID string, at time.Time, ip string, loc *Location, c PunchConstraints) error
}

// Importer loads bulk attendance files.
type Importer interface {
	Import(ctx context.Context, actor user.Actor, req ImportRequest) (ImportResult, error)
}
