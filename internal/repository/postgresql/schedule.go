package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/cmlabs-hris/attendance-core/internal/domain/schedule"
	"github.com/cmlabs-hris/attendance-core/internal/pkg/database"
)

type shiftRepository struct {
	db *database.DB
}

func NewShiftRepository(db *database.DB) schedule.ShiftRepository {
	return &shiftRepository{db: db}
}

// Create implements schedule.ShiftRepository.
func (r *shiftRepository) Create(ctx context.Context, shift schedule.Shift) (schedule.Shift, error) {
	q := GetQuerier(ctx, r.db)
	if shift.ID == "" {
		shift.ID = uuid.New().String()
	}
	rule := shift.Rule
	if rule.WorkingWeekdays == nil {
		rule.WorkingWeekdays = []int{}
	}

	err := q.QueryRow(ctx, `
		INSERT INTO shifts (
			id, org_id, name, timezone, work_start, work_end,
			late_grace_minutes, early_grace_minutes, rounding_minutes, working_weekdays
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`, shift.ID, shift.OrgID, shift.Name, rule.Timezone, rule.WorkStart, rule.WorkEnd,
		rule.LateGraceMinutes, rule.EarlyGraceMinutes, rule.RoundingMinutes, rule.WorkingWeekdays,
	).Scan(&shift.CreatedAt, &shift.UpdatedAt)
	if err != nil {
		return schedule.Shift{}, database.MapError(fmt.Errorf("failed to create shift: %w", err))
	}
	return shift, nil
}

// GetByID implements schedule.ShiftRepository.
func (r *shiftRepository) GetByID(ctx context.Context, orgID, id string) (schedule.Shift, error) {
	q := GetQuerier(ctx, r.db)
	if _, err := uuid.Parse(id); err != nil {
		return schedule.Shift{}, schedule.ErrShiftNotFound
	}

	var s schedule.Shift
	err := q.QueryRow(ctx, `
		SELECT id, org_id, name, timezone, work_start, work_end,
			late_grace_minutes, early_grace_minutes, rounding_minutes, working_weekdays,
			created_at, updated_at
		FROM shifts
		WHERE id = $1 AND org_id = $2
	`, id, orgID).Scan(
		&s.ID, &s.OrgID, &s.Name, &s.Rule.Timezone, &s.Rule.WorkStart, &s.Rule.WorkEnd,
		&s.Rule.LateGraceMinutes, &s.Rule.EarlyGraceMinutes, &s.Rule.RoundingMinutes, &s.Rule.WorkingWeekdays,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return schedule.Shift{}, schedule.ErrShiftNotFound
		}
		return schedule.Shift{}, database.MapError(fmt.Errorf("failed to get shift: %w", err))
	}
	return s, nil
}

type shiftAssignmentRepository struct {
	db *database.DB
}

func NewShiftAssignmentRepository(db *database.DB) schedule.ShiftAssignmentRepository {
	return &shiftAssignmentRepository{db: db}
}

// Create implements schedule.ShiftAssignmentRepository.
func (r *shiftAssignmentRepository) Create(ctx context.Context, a schedule.ShiftAssignment) (schedule.ShiftAssignment, error) {
	q := GetQuerier(ctx, r.db)
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	err := q.QueryRow(ctx, `
		INSERT INTO shift_assignments (id, org_id, user_id, shift_id, start_date, end_date, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, a.ID, a.OrgID, a.UserID, a.ShiftID, schedule.Date(a.StartDate), optionalDate(a.EndDate), a.Active).Scan(&a.CreatedAt)
	if err != nil {
		return schedule.ShiftAssignment{}, database.MapError(fmt.Errorf("failed to create shift assignment: %w", err))
	}
	return a, nil
}

// FindActive implements schedule.ShiftAssignmentRepository.
func (r *shiftAssignmentRepository) FindActive(ctx context.Context, orgID, userID string, date time.Time) (*schedule.ShiftAssignment, error) {
	q := GetQuerier(ctx, r.db)

	var a schedule.ShiftAssignment
	err := q.QueryRow(ctx, `
		SELECT id, org_id, user_id, shift_id, start_date, end_date, active, created_at
		FROM shift_assignments
		WHERE org_id = $1 AND user_id = $2 AND active
			AND start_date <= $3 AND (end_date IS NULL OR end_date >= $3)
		ORDER BY start_date DESC, created_at DESC
		LIMIT 1
	`, orgID, userID, schedule.Date(date)).Scan(
		&a.ID, &a.OrgID, &a.UserID, &a.ShiftID, &a.StartDate, &a.EndDate, &a.Active, &a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, database.MapError(fmt.Errorf("failed to find shift assignment: %w", err))
	}
	return &a, nil
}

type rotationRepository struct {
	db *database.DB
}

func NewRotationRepository(db *database.DB) schedule.RotationRepository {
	return &rotationRepository{db: db}
}

// CreateRule implements schedule.RotationRepository.
func (r *rotationRepository) CreateRule(ctx context.Context, rule schedule.RotationRule) (schedule.RotationRule, error) {
	q := GetQuerier(ctx, r.db)
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	if rule.ShiftSequence == nil {
		rule.ShiftSequence = []string{}
	}
	err := q.QueryRow(ctx, `
		INSERT INTO rotation_rules (id, org_id, name, shift_sequence)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, rule.ID, rule.OrgID, rule.Name, rule.ShiftSequence).Scan(&rule.CreatedAt)
	if err != nil {
		return schedule.RotationRule{}, database.MapError(fmt.Errorf("failed to create rotation rule: %w", err))
	}
	return rule, nil
}

// GetRule implements schedule.RotationRepository.
func (r *rotationRepository) GetRule(ctx context.Context, orgID, id string) (schedule.RotationRule, error) {
	q := GetQuerier(ctx, r.db)
	if _, err := uuid.Parse(id); err != nil {
		return schedule.RotationRule{}, schedule.ErrRotationRuleNotFound
	}

	var rule schedule.RotationRule
	err := q.QueryRow(ctx, `
		SELECT id, org_id, name, shift_sequence, created_at
		FROM rotation_rules
		WHERE id = $1 AND org_id = $2
	`, id, orgID).Scan(&rule.ID, &rule.OrgID, &rule.Name, &rule.ShiftSequence, &rule.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return schedule.RotationRule{}, schedule.ErrRotationRuleNotFound
		}
		return schedule.RotationRule{}, database.MapError(fmt.Errorf("failed to get rotation rule: %w", err))
	}
	return rule, nil
}

// CreateAssignment implements schedule.RotationRepository.
func (r *rotationRepository) CreateAssignment(ctx context.Context, a schedule.RotationAssignment) (schedule.RotationAssignment, error) {
	q := GetQuerier(ctx, r.db)
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	err := q.QueryRow(ctx, `
		INSERT INTO rotation_assignments (id, org_id, user_id, rotation_rule_id, start_date, end_date, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, a.ID, a.OrgID, a.UserID, a.RotationRuleID, schedule.Date(a.StartDate), optionalDate(a.EndDate), a.Active).Scan(&a.CreatedAt)
	if err != nil {
		return schedule.RotationAssignment{}, database.MapError(fmt.Errorf("failed to create rotation assignment: %w", err))
	}
	return a, nil
}

// FindActiveAssignment implements schedule.RotationRepository.
func (r *rotationRepository) FindActiveAssignment(ctx context.Context, orgID, userID string, date time.Time) (*schedule.RotationAssignment, error) {
	q := GetQuerier(ctx, r.db)

	var a schedule.RotationAssignment
	err := q.QueryRow(ctx, `
		SELECT id, org_id, user_id, rotation_rule_id, start_date, end_date, active, created_at
		FROM rotation_assignments
		WHERE org_id = $1 AND user_id = $2 AND active
			AND start_date <= $3 AND (end_date IS NULL OR end_date >= $3)
		ORDER BY start_date DESC, created_at DESC
		LIMIT 1
	`, orgID, userID, schedule.Date(date)).Scan(
		&a.ID, &a.OrgID, &a.UserID, &a.RotationRuleID, &a.StartDate, &a.EndDate, &a.Active, &a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, database.MapError(fmt.Errorf("failed to find rotation assignment: %w", err))
	}
	return &a, nil
}

type holidayRepository struct {
	db *database.DB
}

func NewHolidayRepository(db *database.DB) schedule.HolidayRepository {
	return &holidayRepository{db: db}
}

// Upsert implements schedule.HolidayRepository.
func (r *holidayRepository) Upsert(ctx context.Context, h schedule.Holiday) error {
	q := GetQuerier(ctx, r.db)
	_, err := q.Exec(ctx, `
		INSERT INTO holidays (org_id, date, name, is_working_day)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (org_id, date) DO UPDATE SET
			name = EXCLUDED.name,
			is_working_day = EXCLUDED.is_working_day
	`, h.OrgID, schedule.Date(h.Date), h.Name, h.IsWorkingDay)
	if err != nil {
		return database.MapError(fmt.Errorf("failed to upsert holiday: %w", err))
	}
	return nil
}

// Get implements schedule.HolidayRepository.
func (r *holidayRepository) Get(ctx context.Context, orgID string, date time.Time) (*schedule.Holiday, error) {
	q := GetQuerier(ctx, r.db)

	var h schedule.Holiday
	err := q.QueryRow(ctx, `
		SELECT org_id, date, name, is_working_day
		FROM holidays
		WHERE org_id = $1 AND date = $2
	`, orgID, schedule.Date(date)).Scan(&h.OrgID, &h.Date, &h.Name, &h.IsWorkingDay)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, database.MapError(fmt.Errorf("failed to get holiday: %w", err))
	}
	return &h, nil
}

// List implements schedule.HolidayRepository.
func (r *holidayRepository) List(ctx context.Context, orgID string, from, to time.Time) ([]schedule.Holiday, error) {
	q := GetQuerier(ctx, r.db)
	rows, err := q.Query(ctx, `
		SELECT org_id, date, name, is_working_day
		FROM holidays
		WHERE org_id = $1 AND date BETWEEN $2 AND $3
		ORDER BY date
	`, orgID, schedule.Date(from), schedule.Date(to))
	if err != nil {
		return nil, database.MapError(fmt.Errorf("failed to list holidays: %w", err))
	}
	defer rows.Close()

	var out []schedule.Holiday
	for rows.Next() {
		var h schedule.Holiday
		if err := rows.Scan(&h.OrgID, &h.Date, &h.Name, &h.IsWorkingDay); err != nil {
			return nil, fmt.Errorf("failed to scan holiday: %w", err)
		}
		out = append(out, h)
	}
	return out, database.MapError(rows.Err())
}

func optionalDate(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := schedule.Date(*t)
	return &d
}
