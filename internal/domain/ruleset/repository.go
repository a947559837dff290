package ruleset

import "context"

type Repository interface {
	// Latest returns the highest version for org or ErrRuleSetNotFound.
	Latest(ctx context.Context, orgID string) (Stored, error)
	Create(ctx context.Context, rs Stored) error
}
