package postgresql

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/cmlabs-hris/attendance-core/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-core/internal/domain/schedule"
	"github.com/cmlabs-hris/attendance-core/internal/pkg/database"
)

const recordColumns = `id, org_id, user_id, work_date, timezone, first_in_at, last_out_at,
	work_minutes, late_minutes, early_leave_minutes, status, is_workday, meta, created_at, updated_at`

type recordRepository struct {
	db *database.DB
}

func NewRecordRepository(db *database.DB) attendance.RecordRepository {
	return &recordRepository{db: db}
}

func scanRecord(row pgx.Row) (attendance.Record, error) {
	var rec attendance.Record
	err := row.Scan(
		&rec.ID, &rec.OrgID, &rec.UserID, &rec.WorkDate, &rec.Timezone, &rec.FirstInAt, &rec.LastOutAt,
		&rec.WorkMinutes, &rec.LateMinutes, &rec.EarlyLeaveMinutes, &rec.Status, &rec.IsWorkday, &rec.Meta,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if rec.Meta == nil {
		rec.Meta = map[string]interface{}{}
	}
	return rec, err
}

// EnsureAndLock implements attendance.RecordRepository.
func (r *recordRepository) EnsureAndLock(ctx context.Context, key attendance.Key, timezone string, isWorkday bool) (attendance.Record, error) {
	if err := requireTx(ctx); err != nil {
		return attendance.Record{}, err
	}
	q := GetQuerier(ctx, r.db)

	status := attendance.StatusAbsent
	if !isWorkday {
		status = attendance.StatusOff
	}
	_, err := q.Exec(ctx, `
		INSERT INTO attendance_records (id, org_id, user_id, work_date, timezone, status, is_workday)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, org_id, work_date) DO NOTHING
	`, uuid.New().String(), key.OrgID, key.UserID, schedule.Date(key.WorkDate), timezone, status, isWorkday)
	if err != nil {
		return attendance.Record{}, database.MapError(fmt.Errorf("failed to ensure attendance record: %w", err))
	}

	rec, err := scanRecord(q.QueryRow(ctx, `
		SELECT `+recordColumns+`
		FROM attendance_records
		WHERE user_id = $1 AND org_id = $2 AND work_date = $3
		FOR UPDATE
	`, key.UserID, key.OrgID, schedule.Date(key.WorkDate)))
	if err != nil {
		return attendance.Record{}, database.MapError(fmt.Errorf("failed to lock attendance record: %w", err))
	}
	return rec, nil
}

// Upsert implements attendance.RecordRepository.
func (r *recordRepository) Upsert(ctx context.Context, record attendance.Record) (attendance.Record, error) {
	q := GetQuerier(ctx, r.db)
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.Meta == nil {
		record.Meta = map[string]interface{}{}
	}

	query := `
		INSERT INTO attendance_records (
			id, org_id, user_id, work_date, timezone, first_in_at, last_out_at,
			work_minutes, late_minutes, early_leave_minutes, status, is_workday, meta
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (user_id, org_id, work_date) DO UPDATE SET
			timezone = EXCLUDED.timezone,
			first_in_at = EXCLUDED.first_in_at,
			last_out_at = EXCLUDED.last_out_at,
			work_minutes = EXCLUDED.work_minutes,
			late_minutes = EXCLUDED.late_minutes,
			early_leave_minutes = EXCLUDED.early_leave_minutes,
			status = EXCLUDED.status,
			is_workday = EXCLUDED.is_workday,
			meta = EXCLUDED.meta,
			updated_at = NOW()
		RETURNING ` + recordColumns

	saved, err := scanRecord(q.QueryRow(ctx, query,
		record.ID, record.OrgID, record.UserID, schedule.Date(record.WorkDate), record.Timezone,
		record.FirstInAt, record.LastOutAt,
		record.WorkMinutes, record.LateMinutes, record.EarlyLeaveMinutes,
		record.Status, record.IsWorkday, record.Meta,
	))
	if err != nil {
		return attendance.Record{}, database.MapError(fmt.Errorf("failed to upsert attendance record: %w", err))
	}
	return saved, nil
}

// Get implements attendance.RecordRepository.
func (r *recordRepository) Get(ctx context.Context, key attendance.Key) (attendance.Record, error) {
	q := GetQuerier(ctx, r.db)
	rec, err := scanRecord(q.QueryRow(ctx, `
		SELECT `+recordColumns+`
		FROM attendance_records
		WHERE user_id = $1 AND org_id = $2 AND work_date = $3
	`, key.UserID, key.OrgID, schedule.Date(key.WorkDate)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return attendance.Record{}, attendance.ErrRecordNotFound
		}
		return attendance.Record{}, database.MapError(fmt.Errorf("failed to get attendance record: %w", err))
	}
	return rec, nil
}

// List implements attendance.RecordRepository.
func (r *recordRepository) List(ctx context.Context, filter attendance.RecordFilter) ([]attendance.Record, error) {
	q := GetQuerier(ctx, r.db)

	where := []string{"org_id = $1"}
	args := []interface{}{filter.OrgID}
	argIdx := 2
	if filter.UserID != "" {
		where = append(where, fmt.Sprintf("user_id = $%d", argIdx))
		args = append(args, filter.UserID)
		argIdx++
	}
	if filter.From != nil {
		where = append(where, fmt.Sprintf("work_date >= $%d", argIdx))
		args = append(args, schedule.Date(*filter.From))
		argIdx++
	}
	if filter.To != nil {
		where = append(where, fmt.Sprintf("work_date <= $%d", argIdx))
		args = append(args, schedule.Date(*filter.To))
		argIdx++
	}

	query := "SELECT " + recordColumns + " FROM attendance_records WHERE " + strings.Join(where, " AND ") +
		" ORDER BY work_date, user_id"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, filter.Limit)
	}

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, database.MapError(fmt.Errorf("failed to list attendance records: %w", err))
	}
	defer rows.Close()

	var out []attendance.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attendance record: %w", err)
		}
		out = append(out, rec)
	}
	return out, database.MapError(rows.Err())
}

type eventRepository struct {
	db *database.DB
}

func NewEventRepository(db *database.DB) attendance.EventRepository {
	return &eventRepository{db: db}
}

const eventColumns = `id, org_id, user_id, work_date, occurred_at, type, timezone, source, location, meta, created_at`

func scanEvent(row pgx.Row) (attendance.Event, error) {
	var e attendance.Event
	err := row.Scan(&e.ID, &e.OrgID, &e.UserID, &e.WorkDate, &e.OccurredAt, &e.Type, &e.Timezone, &e.Source, &e.Location, &e.Meta, &e.CreatedAt)
	return e, err
}

// Append implements attendance.EventRepository.
func (r *eventRepository) Append(ctx context.Context, e attendance.Event) error {
	q := GetQuerier(ctx, r.db)
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Meta == nil {
		e.Meta = map[string]interface{}{}
	}
	_, err := q.Exec(ctx, `
		INSERT INTO attendance_events (id, org_id, user_id, work_date, occurred_at, type, timezone, source, location, meta)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, e.ID, e.OrgID, e.UserID, schedule.Date(e.WorkDate), e.OccurredAt, e.Type, e.Timezone, e.Source, e.Location, e.Meta)
	if err != nil {
		return database.MapError(fmt.Errorf("failed to append attendance event: %w", err))
	}
	return nil
}

// LastPunch implements attendance.EventRepository.
func (r *eventRepository) LastPunch(ctx context.Context, orgID, userID string) (*attendance.Event, error) {
	q := GetQuerier(ctx, r.db)
	e, err := scanEvent(q.QueryRow(ctx, `
		SELECT `+eventColumns+`
		FROM attendance_events
		WHERE org_id = $1 AND user_id = $2 AND type IN ($3, $4)
		ORDER BY occurred_at DESC
		LIMIT 1
	`, orgID, userID, attendance.EventCheckIn, attendance.EventCheckOut))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, database.MapError(fmt.Errorf("failed to get last punch: %w", err))
	}
	return &e, nil
}

// ListByDay implements attendance.EventRepository.
func (r *eventRepository) ListByDay(ctx context.Context, key attendance.Key) ([]attendance.Event, error) {
	q := GetQuerier(ctx, r.db)
	rows, err := q.Query(ctx, `
		SELECT `+eventColumns+`
		FROM attendance_events
		WHERE org_id = $1 AND user_id = $2 AND work_date = $3
		ORDER BY occurred_at
	`, key.OrgID, key.UserID, schedule.Date(key.WorkDate))
	if err != nil {
		return nil, database.MapError(fmt.Errorf("failed to list attendance events: %w", err))
	}
	defer rows.Close()

	var out []attendance.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attendance event: %w", err)
		}
		out = append(out, e)
	}
	return out, database.MapError(rows.Err())
}
