package postgresql

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/cmlabs-hris/attendance-core/internal/domain/approval"
	"github.com/cmlabs-hris/attendance-core/internal/domain/schedule"
	"github.com/cmlabs-hris/attendance-core/internal/pkg/database"
)

const requestColumns = `id, org_id, user_id, work_date, type, requested_in, requested_out, reason, status,
	approval_instance_id, metadata, created_at, updated_at`

type requestRepository struct {
	db *database.DB
}

func NewRequestRepository(db *database.DB) approval.RequestRepository {
	return &requestRepository{db: db}
}

func scanRequest(row pgx.Row) (approval.Request, error) {
	var r approval.Request
	err := row.Scan(
		&r.ID, &r.OrgID, &r.UserID, &r.WorkDate, &r.Type, &r.RequestedIn, &r.RequestedOut, &r.Reason, &r.Status,
		&r.ApprovalInstanceID, &r.Metadata, &r.CreatedAt, &r.UpdatedAt,
	)
	return r, err
}

// Create implements approval.RequestRepository.
func (r *requestRepository) Create(ctx context.Context, req approval.Request) error {
	q := GetQuerier(ctx, r.db)
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	_, err := q.Exec(ctx, `
		INSERT INTO attendance_requests (
			id, org_id, user_id, work_date, type, requested_in, requested_out, reason, status,
			approval_instance_id, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, req.ID, req.OrgID, req.UserID, schedule.Date(req.WorkDate), req.Type, req.RequestedIn, req.RequestedOut,
		req.Reason, req.Status, req.ApprovalInstanceID, req.Metadata)
	if err != nil {
		return database.MapError(fmt.Errorf("failed to create request: %w", err))
	}
	return nil
}

func (r *requestRepository) get(ctx context.Context, orgID, id, suffix string) (approval.Request, error) {
	q := GetQuerier(ctx, r.db)
	if _, err := uuid.Parse(id); err != nil {
		return approval.Request{}, approval.ErrRequestNotFound
	}
	req, err := scanRequest(q.QueryRow(ctx, `
		SELECT `+requestColumns+`
		FROM attendance_requests
		WHERE id = $1 AND org_id = $2 `+suffix, id, orgID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return approval.Request{}, approval.ErrRequestNotFound
		}
		return approval.Request{}, database.MapError(fmt.Errorf("failed to get request: %w", err))
	}
	return req, nil
}

// Get implements approval.RequestRepository.
func (r *requestRepository) Get(ctx context.Context, orgID, id string) (approval.Request, error) {
	return r.get(ctx, orgID, id, "")
}

// GetForUpdate implements approval.RequestRepository.
func (r *requestRepository) GetForUpdate(ctx context.Context, orgID, id string) (approval.Request, error) {
	if err := requireTx(ctx); err != nil {
		return approval.Request{}, err
	}
	return r.get(ctx, orgID, id, "FOR UPDATE")
}

// Update implements approval.RequestRepository.
func (r *requestRepository) Update(ctx context.Context, req approval.Request) error {
	q := GetQuerier(ctx, r.db)
	tag, err := q.Exec(ctx, `
		UPDATE attendance_requests
		SET status = $1, metadata = $2, reason = $3, updated_at = NOW()
		WHERE id = $4 AND org_id = $5
	`, req.Status, req.Metadata, req.Reason, req.ID, req.OrgID)
	if err != nil {
		return database.MapError(fmt.Errorf("failed to update request: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return approval.ErrRequestNotFound
	}
	return nil
}

// List implements approval.RequestRepository.
func (r *requestRepository) List(ctx context.Context, filter approval.RequestFilter) ([]approval.Request, error) {
	q := GetQuerier(ctx, r.db)

	where := []string{"org_id = $1"}
	args := []interface{}{filter.OrgID}
	argIdx := 2
	add := func(cond string, v interface{}) {
		where = append(where, fmt.Sprintf(cond, argIdx))
		args = append(args, v)
		argIdx++
	}
	if filter.UserID != "" {
		add("user_id = $%d", filter.UserID)
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if filter.From != nil {
		add("work_date >= $%d", schedule.Date(*filter.From))
	}
	if filter.To != nil {
		add("work_date <= $%d", schedule.Date(*filter.To))
	}

	query := "SELECT " + requestColumns + " FROM attendance_requests WHERE " + strings.Join(where, " AND ") +
		" ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, filter.Limit)
	}

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, database.MapError(fmt.Errorf("failed to list requests: %w", err))
	}
	defer rows.Close()

	var out []approval.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		out = append(out, req)
	}
	return out, database.MapError(rows.Err())
}

// SumApprovedMinutes implements approval.RequestRepository.
func (r *requestRepository) SumApprovedMinutes(ctx context.Context, orgID, userID string, workDate time.Time) (leave, overtime int, err error) {
	q := GetQuerier(ctx, r.db)
	err = q.QueryRow(ctx, `
		SELECT
			COALESCE(SUM((metadata->>'duration_minutes')::int) FILTER (WHERE type = $4), 0),
			COALESCE(SUM((metadata->>'duration_minutes')::int) FILTER (WHERE type = $5), 0)
		FROM attendance_requests
		WHERE org_id = $1 AND user_id = $2 AND work_date = $3 AND status = 'approved'
	`, orgID, userID, schedule.Date(workDate), approval.TypeLeave, approval.TypeOvertime).Scan(&leave, &overtime)
	if err != nil {
		return 0, 0, database.MapError(fmt.Errorf("failed to sum approved minutes: %w", err))
	}
	return leave, overtime, nil
}

type instanceRepository struct {
	db *database.DB
}

func NewInstanceRepository(db *database.DB) approval.InstanceRepository {
	return &instanceRepository{db: db}
}

// Create implements approval.InstanceRepository.
func (r *instanceRepository) Create(ctx context.Context, inst approval.Instance) error {
	q := GetQuerier(ctx, r.db)
	if inst.ID == "" {
		inst.ID = uuid.New().String()
	}
	_, err := q.Exec(ctx, `
		INSERT INTO approval_instances (id, org_id, status, version) VALUES ($1, $2, $3, $4)
	`, inst.ID, inst.OrgID, inst.Status, inst.Version)
	if err != nil {
		return database.MapError(fmt.Errorf("failed to create approval instance: %w", err))
	}
	return nil
}

// GetForUpdate implements approval.InstanceRepository.
func (r *instanceRepository) GetForUpdate(ctx context.Context, id string) (approval.Instance, error) {
	if err := requireTx(ctx); err != nil {
		return approval.Instance{}, err
	}
	q := GetQuerier(ctx, r.db)

	var inst approval.Instance
	err := q.QueryRow(ctx, `
		SELECT id, org_id, status, version, created_at, updated_at
		FROM approval_instances
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&inst.ID, &inst.OrgID, &inst.Status, &inst.Version, &inst.CreatedAt, &inst.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return approval.Instance{}, approval.ErrInstanceNotFound
		}
		return approval.Instance{}, database.MapError(fmt.Errorf("failed to lock approval instance: %w", err))
	}
	return inst, nil
}

// Transition implements approval.InstanceRepository.
func (r *instanceRepository) Transition(ctx context.Context, id string, expectedVersion int, status approval.Status) (approval.Instance, error) {
	q := GetQuerier(ctx, r.db)

	var inst approval.Instance
	err := q.QueryRow(ctx, `
		UPDATE approval_instances
		SET status = $1, version = version + 1, updated_at = NOW()
		WHERE id = $2 AND version = $3
		RETURNING id, org_id, status, version, created_at, updated_at
	`, status, id, expectedVersion).Scan(&inst.ID, &inst.OrgID, &inst.Status, &inst.Version, &inst.CreatedAt, &inst.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return approval.Instance{}, approval.ErrVersionConflict
		}
		return approval.Instance{}, database.MapError(fmt.Errorf("failed to transition approval instance: %w", err))
	}
	return inst, nil
}

type auditRepository struct {
	db *database.DB
}

func NewAuditRepository(db *database.DB) approval.AuditRepository {
	return &auditRepository{db: db}
}

// Append implements approval.AuditRepository.
func (r *auditRepository) Append(ctx context.Context, a approval.Audit) error {
	q := GetQuerier(ctx, r.db)
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.Metadata == nil {
		a.Metadata = map[string]interface{}{}
	}
	_, err := q.Exec(ctx, `
		INSERT INTO approval_audits (
			id, instance_id, action, actor_id, from_status, to_status, from_version, to_version, comment, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, a.ID, a.InstanceID, a.Action, a.ActorID, a.FromStatus, a.ToStatus, a.FromVersion, a.ToVersion, a.Comment, a.Metadata)
	if err != nil {
		return database.MapError(fmt.Errorf("failed to append approval audit: %w", err))
	}
	return nil
}

// ListByInstance implements approval.AuditRepository.
func (r *auditRepository) ListByInstance(ctx context.Context, instanceID string) ([]approval.Audit, error) {
	q := GetQuerier(ctx, r.db)
	rows, err := q.Query(ctx, `
		SELECT id, instance_id, action, actor_id, from_status, to_status, from_version, to_version, comment, metadata, created_at
		FROM approval_audits
		WHERE instance_id = $1
		ORDER BY to_version, created_at
	`, instanceID)
	if err != nil {
		return nil, database.MapError(fmt.Errorf("failed to list approval audits: %w", err))
	}
	defer rows.Close()

	var out []approval.Audit
	for rows.Next() {
		var a approval.Audit
		if err := rows.Scan(&a.ID, &a.InstanceID, &a.Action, &a.ActorID, &a.FromStatus, &a.ToStatus,
			&a.FromVersion, &a.ToVersion, &a.Comment, &a.Metadata, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan approval audit: %w", err)
		}
		out = append(out, a)
	}
	return out, database.MapError(rows.Err())
}

type flowRepository struct {
	db *database.DB
}

func NewFlowRepository(db *database.DB) approval.FlowRepository {
	return &flowRepository{db: db}
}

// Save implements approval.FlowRepository.
func (r *flowRepository) Save(ctx context.Context, flow approval.Flow) (approval.Flow, error) {
	q := GetQuerier(ctx, r.db)
	if flow.ID == "" {
		flow.ID = uuid.New().String()
	}
	if flow.Steps == nil {
		flow.Steps = []approval.Step{}
	}
	err := q.QueryRow(ctx, `
		INSERT INTO approval_flows (id, org_id, name, request_type, steps, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			request_type = EXCLUDED.request_type,
			steps = EXCLUDED.steps,
			active = EXCLUDED.active,
			updated_at = NOW()
		RETURNING created_at, updated_at
	`, flow.ID, flow.OrgID, flow.Name, flow.RequestType, flow.Steps, flow.Active).Scan(&flow.CreatedAt, &flow.UpdatedAt)
	if err != nil {
		return approval.Flow{}, database.MapError(fmt.Errorf("failed to save approval flow: %w", err))
	}
	return flow, nil
}

// FindActive implements approval.FlowRepository.
func (r *flowRepository) FindActive(ctx context.Context, orgID string, t approval.RequestType) (*approval.Flow, error) {
	q := GetQuerier(ctx, r.db)

	var flow approval.Flow
	err := q.QueryRow(ctx, `
		SELECT id, org_id, name, request_type, steps, active, created_at, updated_at
		FROM approval_flows
		WHERE org_id = $1 AND active AND (request_type = $2 OR request_type IS NULL)
		ORDER BY request_type IS NULL, updated_at DESC
		LIMIT 1
	`, orgID, t).Scan(&flow.ID, &flow.OrgID, &flow.Name, &flow.RequestType, &flow.Steps, &flow.Active, &flow.CreatedAt, &flow.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, database.MapError(fmt.Errorf("failed to find approval flow: %w", err))
	}
	return &flow, nil
}
