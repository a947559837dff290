package approval

import (
	"context"

	"github.com/cmlabs-hris/attendance-core/internal/domain/user"
)

type Service interface {
	CreateRequest(ctx context.Context, actor user.Actor, req CreateRequestRequest) (Request, error)
	Approve(ctx context.Context, actor user.Actor, req ResolveRequest) (Request, error)
	Reject(ctx context.Context, actor user.Actor, req ResolveRequest) (Request, error)
	Cancel(ctx context.Context, actor user.Actor, req ResolveRequest) (Request, error)
	GetRequest(ctx context.Context, actor user.Actor, id string) (Request, error)
	ListRequests(ctx context.Context, actor user.Actor, filter RequestFilter) ([]Request, error)
	ListAudit(ctx context.Context, actor user.Actor, requestID string) ([]Audit, error)
}
