package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cmlabs-hris/attendance-core/internal/domain/settings"
	"github.com/cmlabs-hris/attendance-core/internal/domain/user"
	"github.com/cmlabs-hris/attendance-core/internal/pkg/cache"
	"github.com/cmlabs-hris/attendance-core/internal/pkg/database"
)

type Service struct {
	repo     settings.Repository
	gate     user.PermissionGate
	cache    *cache.Cache[settings.Settings]
	defaults settings.Defaults
	logger   *slog.Logger
}

func NewService(repo settings.Repository, gate user.PermissionGate, c *cache.Cache[settings.Settings], defaults settings.Defaults, logger *slog.Logger) *Service {
	return &Service{repo: repo, gate: gate, cache: c, defaults: defaults, logger: logger}
}

// Get returns the org's settings with defaults filled in. Orgs without a row,
// and stores that are not migrated, get the process defaults.
func (s *Service) Get(ctx context.Context, orgID string) (settings.Settings, error) {
	out, err := s.cache.GetOrLoad(ctx, orgID, func(ctx context.Context) (settings.Settings, error) {
		stored, err := s.repo.Get(ctx, orgID)
		if errors.Is(err, settings.ErrSettingsNotFound) {
			return settings.Settings{OrgID: orgID}.Resolved(s.defaults), nil
		}
		if err != nil {
			return settings.Settings{}, err
		}
		return stored.Resolved(s.defaults), nil
	})
	if database.IsNotReady(err) {
		s.logger.WarnContext(ctx, "settings store not ready, using defaults", "org_id", orgID)
		return settings.Settings{OrgID: orgID}.Resolved(s.defaults), nil
	}
	if err != nil {
		return settings.Settings{}, fmt.Errorf("failed to load settings: %w", err)
	}
	return out, nil
}

func (s *Service) Save(ctx context.Context, actor user.Actor, in settings.Settings) (settings.Settings, error) {
	if err := s.gate.Require(ctx, actor, user.PermissionSettingsManage); err != nil {
		return settings.Settings{}, err
	}
	in.OrgID = actor.OrgID
	if err := in.Validate(); err != nil {
		return settings.Settings{}, err
	}

	if err := s.repo.Save(ctx, in); err != nil {
		return settings.Settings{}, fmt.Errorf("failed to save settings: %w", err)
	}
	s.cache.Invalidate(in.OrgID)

	return in.Resolved(s.defaults), nil
}

var _ settings.Service = (*Service)(nil)
