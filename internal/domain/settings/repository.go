package settings

import "context"

type Repository interface {
	Get(ctx context.Context, orgID string) (Settings, error)
	Save(ctx context.Context, s Settings) error
}
