package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/cmlabs-hris/attendance-core/internal/domain/ruleset"
	"github.com/cmlabs-hris/attendance-core/internal/domain/settings"
	"github.com/cmlabs-hris/attendance-core/internal/domain/user"
	"github.com/cmlabs-hris/attendance-core/internal/pkg/database"
)

type ruleSetRepository struct {
	db *database.DB
}

func NewRuleSetRepository(db *database.DB) ruleset.Repository {
	return &ruleSetRepository{db: db}
}

// Latest implements ruleset.Repository.
func (r *ruleSetRepository) Latest(ctx context.Context, orgID string) (ruleset.Stored, error) {
	q := GetQuerier(ctx, r.db)

	var rs ruleset.Stored
	err := q.QueryRow(ctx, `
		SELECT id, org_id, version, document, created_at
		FROM rule_sets
		WHERE org_id = $1
		ORDER BY version DESC
		LIMIT 1
	`, orgID).Scan(&rs.ID, &rs.OrgID, &rs.Version, &rs.Document, &rs.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ruleset.Stored{}, ruleset.ErrRuleSetNotFound
		}
		return ruleset.Stored{}, database.MapError(fmt.Errorf("failed to get latest rule set: %w", err))
	}
	return rs, nil
}

// Create implements ruleset.Repository.
func (r *ruleSetRepository) Create(ctx context.Context, rs ruleset.Stored) error {
	q := GetQuerier(ctx, r.db)
	if rs.ID == "" {
		rs.ID = uuid.New().String()
	}
	_, err := q.Exec(ctx, `
		INSERT INTO rule_sets (id, org_id, version, document) VALUES ($1, $2, $3, $4)
	`, rs.ID, rs.OrgID, rs.Version, rs.Document)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ruleset.ErrVersionConflict
		}
		return database.MapError(fmt.Errorf("failed to create rule set: %w", err))
	}
	return nil
}

type settingsRepository struct {
	db *database.DB
}

func NewSettingsRepository(db *database.DB) settings.Repository {
	return &settingsRepository{db: db}
}

// Get implements settings.Repository.
func (r *settingsRepository) Get(ctx context.Context, orgID string) (settings.Settings, error) {
	q := GetQuerier(ctx, r.db)

	var s settings.Settings
	err := q.QueryRow(ctx, `SELECT settings FROM org_settings WHERE org_id = $1`, orgID).Scan(&s)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return settings.Settings{}, settings.ErrSettingsNotFound
		}
		return settings.Settings{}, database.MapError(fmt.Errorf("failed to get settings: %w", err))
	}
	s.OrgID = orgID
	return s, nil
}

// Save implements settings.Repository.
func (r *settingsRepository) Save(ctx context.Context, s settings.Settings) error {
	q := GetQuerier(ctx, r.db)
	_, err := q.Exec(ctx, `
		INSERT INTO org_settings (org_id, settings) VALUES ($1, $2)
		ON CONFLICT (org_id) DO UPDATE SET settings = EXCLUDED.settings, updated_at = NOW()
	`, s.OrgID, s)
	if err != nil {
		return database.MapError(fmt.Errorf("failed to save settings: %w", err))
	}
	return nil
}

const memberColumns = `org_id, user_id, display_name, department, title, role_tags, profile, active, created_at`

type memberRepository struct {
	db *database.DB
}

func NewMemberRepository(db *database.DB) user.MemberRepository {
	return &memberRepository{db: db}
}

func scanMember(row pgx.Row) (user.Member, error) {
	var m user.Member
	err := row.Scan(&m.OrgID, &m.UserID, &m.DisplayName, &m.Department, &m.Title, &m.RoleTags, &m.Profile, &m.Active, &m.CreatedAt)
	if m.Profile == nil {
		m.Profile = map[string]interface{}{}
	}
	return m, err
}

// Upsert implements user.MemberRepository.
func (r *memberRepository) Upsert(ctx context.Context, m user.Member) error {
	q := GetQuerier(ctx, r.db)
	if m.RoleTags == nil {
		m.RoleTags = []string{}
	}
	if m.Profile == nil {
		m.Profile = map[string]interface{}{}
	}
	_, err := q.Exec(ctx, `
		INSERT INTO org_members (org_id, user_id, display_name, department, title, role_tags, profile, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (org_id, user_id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			department = EXCLUDED.department,
			title = EXCLUDED.title,
			role_tags = EXCLUDED.role_tags,
			profile = EXCLUDED.profile,
			active = EXCLUDED.active
	`, m.OrgID, m.UserID, m.DisplayName, m.Department, m.Title, m.RoleTags, m.Profile, m.Active)
	if err != nil {
		return database.MapError(fmt.Errorf("failed to upsert member: %w", err))
	}
	return nil
}

// Get implements user.MemberRepository.
func (r *memberRepository) Get(ctx context.Context, orgID, userID string) (user.Member, error) {
	q := GetQuerier(ctx, r.db)
	m, err := scanMember(q.QueryRow(ctx, `
		SELECT `+memberColumns+` FROM org_members WHERE org_id = $1 AND user_id = $2
	`, orgID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.Member{}, user.ErrMemberNotFound
		}
		return user.Member{}, database.MapError(fmt.Errorf("failed to get member: %w", err))
	}
	return m, nil
}

// ListActive implements user.MemberRepository.
func (r *memberRepository) ListActive(ctx context.Context, orgID string) ([]user.Member, error) {
	q := GetQuerier(ctx, r.db)
	rows, err := q.Query(ctx, `
		SELECT `+memberColumns+` FROM org_members WHERE org_id = $1 AND active ORDER BY user_id
	`, orgID)
	if err != nil {
		return nil, database.MapError(fmt.Errorf("failed to list members: %w", err))
	}
	defer rows.Close()

	var out []user.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		out = append(out, m)
	}
	return out, database.MapError(rows.Err())
}

// ListOrgIDs implements user.MemberRepository.
func (r *memberRepository) ListOrgIDs(ctx context.Context) ([]string, error) {
	q := GetQuerier(ctx, r.db)
	rows, err := q.Query(ctx, `SELECT DISTINCT org_id FROM org_members ORDER BY org_id`)
	if err != nil {
		return nil, database.MapError(fmt.Errorf("failed to list orgs: %w", err))
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, database.MapError(fmt.Errorf("failed to scan org ids: %w", err))
	}
	return ids, nil
}

// JobRunRepository marks background job runs so each runs once per key.
type JobRunRepository struct {
	db *database.DB
}

func NewJobRunRepository(db *database.DB) *JobRunRepository {
	return &JobRunRepository{db: db}
}

// Claim inserts (job, runKey) and reports whether this call created it.
func (r *JobRunRepository) Claim(ctx context.Context, job, runKey string) (bool, error) {
	q := GetQuerier(ctx, r.db)
	tag, err := q.Exec(ctx, `
		INSERT INTO job_runs (job, run_key) VALUES ($1, $2)
		ON CONFLICT (job, run_key) DO NOTHING
	`, job, runKey)
	if err != nil {
		return false, database.MapError(fmt.Errorf("failed to claim job run: %w", err))
	}
	return tag.RowsAffected() == 1, nil
}
