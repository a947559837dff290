package approval

import (
	"context"
	"time"
)

type RequestRepository interface {
	Create(ctx context.Context, req Request) error
	Get(ctx context.Context, orgID, id string) (Request, error)
	// GetForUpdate reads and row-locks the request.
	GetForUpdate(ctx context.Context, orgID, id string) (Request, error)
	Update(ctx context.Context, req Request) error
	List(ctx context.Context, filter RequestFilter) ([]Request, error)
	SumApprovedMinutes(ctx context.Context, orgID, userID string, workDate time.Time) (leave, overtime int, err error)
}

type InstanceRepository interface {
	Create(ctx context.Context, inst Instance) error
	GetForUpdate(ctx context.Context, id string) (Instance, error)
	// Transition moves the instance to status only when its version still
	// equals expectedVersion, returning ErrVersionConflict otherwise.
	Transition(ctx context.Context, id string, expectedVersion int, status Status) (Instance, error)
}

type AuditRepository interface {
	Append(ctx context.Context, audit Audit) error
	ListByInstance(ctx context.Context, instanceID string) ([]Audit, error)
}

type FlowRepository interface {
	Save(ctx context.Context, flow Flow) (Flow, error)
	// FindActive prefers a flow bound to t over a generic one; nil when none.
	FindActive(ctx context.Context, orgID string, t RequestType) (*Flow, error)
}
