package schedule

import (
	"context"
	"time"
)

type ShiftRepository interface {
	Create(ctx context.Context, shift Shift) (Shift, error)
	GetByID(ctx context.Context, orgID, id string) (Shift, error)
}

type ShiftAssignmentRepository interface {
	Create(ctx context.Context, assignment ShiftAssignment) (ShiftAssignment, error)
	// FindActive returns the most recently started active assignment covering
	// date, or nil.
	FindActive(ctx context.Context, orgID, userID string, date time.Time) (*ShiftAssignment, error)
}

type RotationRepository interface {
	CreateRule(ctx context.Context, rule RotationRule) (RotationRule, error)
	GetRule(ctx context.Context, orgID, id string) (RotationRule, error)
	CreateAssignment(ctx context.Context, assignment RotationAssignment) (RotationAssignment, error)
	FindActiveAssignment(ctx context.Context, orgID, userID string, date time.Time) (*RotationAssignment, error)
}

type HolidayRepository interface {
	Upsert(ctx context.Context, holiday Holiday) error
	Get(ctx context.Context, orgID string, date time.Time) (*Holiday, error)
	List(ctx context.Context, orgID string, from, to time.Time) ([]Holiday, error)
}
