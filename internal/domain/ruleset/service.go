package ruleset

import (
	"context"

	"github.com/cmlabs-hris/attendance-core/internal/domain/user"
)

type Service interface {
	// Get returns the active compiled rule set, or nil when the org has none.
	Get(ctx context.Context, orgID string) (*Compiled, error)
	Save(ctx context.Context, actor user.Actor, orgID string, raw []byte) (*Compiled, error)
	Invalidate(orgID string)
}
