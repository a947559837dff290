package permission

import (
	"context"
	"log/slog"

	"github.com/cmlabs-hris/attendance-core/internal/domain/user"
)

// Gate checks role capabilities. With degraded set, actors that carry no
// role data are let through and each such decision is logged.
type Gate struct {
	degraded bool
	logger   *slog.Logger
}

func NewGate(degraded bool, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	if degraded {
		logger.Warn("permission gate running in degraded mode: actors without role data are allowed")
	}
	return &Gate{degraded: degraded, logger: logger}
}

func (g *Gate) Require(ctx context.Context, actor user.Actor, permission user.Permission) error {
	if actor.UserID == "" {
		return user.ErrUnauthenticated
	}
	if !actor.HasRoleData() {
		if g.degraded {
			g.logger.WarnContext(ctx, "permission granted without role data",
				"user_id", actor.UserID,
				"org_id", actor.OrgID,
				"capability", string(permission),
			)
			return nil
		}
		return user.ErrForbidden
	}
	if !user.HasPermission(actor.Role, permission) {
		return user.ErrForbidden
	}
	return nil
}

var _ user.PermissionGate = (*Gate)(nil)
