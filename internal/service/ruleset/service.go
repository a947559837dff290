package ruleset

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cmlabs-hris/attendance-core/internal/domain/ruleset"
	"github.com/cmlabs-hris/attendance-core/internal/domain/user"
	"github.com/cmlabs-hris/attendance-core/internal/pkg/cache"
	"github.com/cmlabs-hris/attendance-core/internal/pkg/database"
	"github.com/cmlabs-hris/attendance-core/internal/service/policy"
	"github.com/cmlabs-hris/attendance-core/internal/service/ruleengine"
)

type Service struct {
	repo   ruleset.Repository
	gate   user.PermissionGate
	cache  *cache.Cache[*ruleset.Compiled]
	logger *slog.Logger
}

func NewService(repo ruleset.Repository, gate user.PermissionGate, c *cache.Cache[*ruleset.Compiled], logger *slog.Logger) *Service {
	return &Service{repo: repo, gate: gate, cache: c, logger: logger}
}

// Get returns the org's latest rule set, compiled. Orgs without one, a
// stored set that no longer compiles and a store that is not migrated yet
// all get nil.
func (s *Service) Get(ctx context.Context, orgID string) (*ruleset.Compiled, error) {
	compiled, err := s.cache.GetOrLoad(ctx, orgID, func(ctx context.Context) (*ruleset.Compiled, error) {
		stored, err := s.repo.Latest(ctx, orgID)
		if errors.Is(err, ruleset.ErrRuleSetNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		compiled, err := Compile(orgID, stored.Version, stored.Document)
		if isCompileError(err) {
			s.logger.WarnContext(ctx, "stored rule set does not compile, evaluating without rules",
				"org_id", orgID, "version", stored.Version, "error", err)
			return nil, nil
		}
		return compiled, err
	})
	if database.IsNotReady(err) {
		s.logger.WarnContext(ctx, "rule set store not ready, evaluating without rules", "org_id", orgID)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load rule set: %w", err)
	}
	return compiled, nil
}

// Save stores raw as the next version once it compiles.
func (s *Service) Save(ctx context.Context, actor user.Actor, orgID string, raw []byte) (*ruleset.Compiled, error) {
	if err := s.gate.Require(ctx, actor, user.PermissionRuleSetManage); err != nil {
		return nil, err
	}
	if actor.OrgID != orgID {
		return nil, user.ErrForbidden
	}

	compiled, err := Compile(orgID, 0, raw)
	if err != nil {
		return nil, err
	}

	version := 1
	latest, err := s.repo.Latest(ctx, orgID)
	switch {
	case err == nil:
		version = latest.Version + 1
	case !errors.Is(err, ruleset.ErrRuleSetNotFound):
		return nil, fmt.Errorf("failed to read current rule set: %w", err)
	}

	if err := s.repo.Create(ctx, ruleset.Stored{OrgID: orgID, Version: version, Document: raw}); err != nil {
		return nil, fmt.Errorf("failed to store rule set: %w", err)
	}
	s.Invalidate(orgID)

	compiled.Version = version
	s.logger.InfoContext(ctx, "rule set saved", "org_id", orgID, "version", version, "user_id", actor.UserID)
	return compiled, nil
}

func isCompileError(err error) bool {
	return errors.Is(err, ruleset.ErrInvalidDocument) ||
		errors.Is(err, ruleset.ErrUnknownOperator) ||
		errors.Is(err, ruleset.ErrInvalidOperand) ||
		errors.Is(err, ruleset.ErrUnknownUserGroup)
}

func (s *Service) Invalidate(orgID string) {
	s.cache.Invalidate(orgID)
}

// Compile parses a stored document and compiles both rule layers. Absent
// sections leave Engine or Policy nil.
func Compile(orgID string, version int, raw json.RawMessage) (*ruleset.Compiled, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("%w: empty document", ruleset.ErrInvalidDocument)
	}
	var doc ruleset.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ruleset.ErrInvalidDocument, err)
	}

	out := &ruleset.Compiled{
		OrgID:         orgID,
		Version:       version,
		Document:      doc,
		FieldMappings: doc.FieldMappings,
	}
	if doc.RuleEngine != nil {
		engine, err := ruleengine.Compile(doc.RuleEngine)
		if err != nil {
			return nil, err
		}
		out.Engine = engine
	}
	if doc.Policy != nil {
		overlay, err := policy.Compile(doc.Policy)
		if err != nil {
			return nil, err
		}
		out.Policy = overlay
	}
	return out, nil
}

var _ ruleset.Service = (*Service)(nil)
