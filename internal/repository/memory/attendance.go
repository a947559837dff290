package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/cmlabs-hris/attendance-core/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-core/internal/domain/schedule"
)

type recordRepository struct{ s *Store }

func (s *Store) Records() attendance.RecordRepository { return &recordRepository{s: s} }

func (r *recordRepository) EnsureAndLock(ctx context.Context, key attendance.Key, timezone string, isWorkday bool) (attendance.Record, error) {
	if err := r.s.requireTx(ctx); err != nil {
		return attendance.Record{}, err
	}
	var out attendance.Record
	err := r.s.write(ctx, func(st *state) error {
		k := keyOf(key)
		if rec, ok := st.records[k]; ok {
			out = rec
			out.Meta = copyMap(rec.Meta)
			return nil
		}
		status := attendance.StatusAbsent
		if !isWorkday {
			status = attendance.StatusOff
		}
		now := r.s.now()
		out = attendance.Record{
			ID:        uuid.New().String(),
			OrgID:     key.OrgID,
			UserID:    key.UserID,
			WorkDate:  schedule.Date(key.WorkDate),
			Timezone:  timezone,
			Status:    status,
			IsWorkday: isWorkday,
			Meta:      map[string]interface{}{},
			CreatedAt: now,
			UpdatedAt: now,
		}
		st.records[k] = out
		return nil
	})
	return out, err
}

func (r *recordRepository) Upsert(ctx context.Context, record attendance.Record) (attendance.Record, error) {
	err := r.s.write(ctx, func(st *state) error {
		k := keyOf(record.Key())
		now := r.s.now()
		if existing, ok := st.records[k]; ok {
			record.ID = existing.ID
			record.CreatedAt = existing.CreatedAt
		} else {
			if record.ID == "" {
				record.ID = uuid.New().String()
			}
			record.CreatedAt = now
		}
		record.WorkDate = schedule.Date(record.WorkDate)
		record.UpdatedAt = now
		record.Meta = copyMap(record.Meta)
		st.records[k] = record
		return nil
	})
	return record, err
}

func (r *recordRepository) Get(ctx context.Context, key attendance.Key) (attendance.Record, error) {
	var out attendance.Record
	err := r.s.read(func(st *state) error {
		rec, ok := st.records[keyOf(key)]
		if !ok {
			return attendance.ErrRecordNotFound
		}
		out = rec
		out.Meta = copyMap(rec.Meta)
		return nil
	})
	return out, err
}

func (r *recordRepository) List(ctx context.Context, filter attendance.RecordFilter) ([]attendance.Record, error) {
	var out []attendance.Record
	err := r.s.read(func(st *state) error {
		for _, rec := range st.records {
			if rec.OrgID != filter.OrgID {
				continue
			}
			if filter.UserID != "" && rec.UserID != filter.UserID {
				continue
			}
			if filter.From != nil && rec.WorkDate.Before(schedule.Date(*filter.From)) {
				continue
			}
			if filter.To != nil && rec.WorkDate.After(schedule.Date(*filter.To)) {
				continue
			}
			rec.Meta = copyMap(rec.Meta)
			out = append(out, rec)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].WorkDate.Equal(out[j].WorkDate) {
			return out[i].WorkDate.Before(out[j].WorkDate)
		}
		return out[i].UserID < out[j].UserID
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, err
}

type eventRepository struct{ s *Store }

func (s *Store) Events() attendance.EventRepository { return &eventRepository{s: s} }

func (r *eventRepository) Append(ctx context.Context, event attendance.Event) error {
	return r.s.write(ctx, func(st *state) error {
		if event.ID == "" {
			event.ID = uuid.New().String()
		}
		event.CreatedAt = r.s.now()
		st.events = append(st.events, event)
		return nil
	})
}

func (r *eventRepository) LastPunch(ctx context.Context, orgID, userID string) (*attendance.Event, error) {
	var out *attendance.Event
	err := r.s.read(func(st *state) error {
		for i := range st.events {
			e := st.events[i]
			if e.OrgID != orgID || e.UserID != userID {
				continue
			}
			if e.Type != attendance.EventCheckIn && e.Type != attendance.EventCheckOut {
				continue
			}
			if out == nil || e.OccurredAt.After(out.OccurredAt) {
				ev := e
				out = &ev
			}
		}
		return nil
	})
	return out, err
}

func (r *eventRepository) ListByDay(ctx context.Context, key attendance.Key) ([]attendance.Event, error) {
	var out []attendance.Event
	err := r.s.read(func(st *state) error {
		for _, e := range st.events {
			if e.OrgID == key.OrgID && e.UserID == key.UserID && e.WorkDate.Equal(schedule.Date(key.WorkDate)) {
				out = append(out, e)
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	return out, err
}
