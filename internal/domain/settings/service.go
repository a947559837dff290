package settings

import (
	"context"

	"github.com/cmlabs-hris/attendance-core/internal/domain/user"
)

type Service interface {
	// Get returns resolved settings; read failures on a not-ready store
	// degrade to defaults.
	Get(ctx context.Context, orgID string) (Settings, error)
	Save(ctx context.Context, actor user.Actor, s Settings) (Settings, error)
}
