package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/cmlabs-hris/attendance-core/internal/domain/schedule"
)

type shiftRepository struct{ s *Store }

func (s *Store) Shifts() schedule.ShiftRepository { return &shiftRepository{s: s} }

func (r *shiftRepository) Create(ctx context.Context, shift schedule.Shift) (schedule.Shift, error) {
	err := r.s.write(ctx, func(st *state) error {
		if shift.ID == "" {
			shift.ID = uuid.New().String()
		}
		shift.CreatedAt = r.s.now()
		shift.UpdatedAt = shift.CreatedAt
		st.shifts[shift.ID] = shift
		return nil
	})
	return shift, err
}

func (r *shiftRepository) GetByID(ctx context.Context, orgID, id string) (schedule.Shift, error) {
	var out schedule.Shift
	err := r.s.read(func(st *state) error {
		shift, ok := st.shifts[id]
		if !ok || shift.OrgID != orgID {
			return schedule.ErrShiftNotFound
		}
		out = shift
		return nil
	})
	return out, err
}

type shiftAssignmentRepository struct{ s *Store }

func (s *Store) ShiftAssignments() schedule.ShiftAssignmentRepository {
	return &shiftAssignmentRepository{s: s}
}

func (r *shiftAssignmentRepository) Create(ctx context.Context, a schedule.ShiftAssignment) (schedule.ShiftAssignment, error) {
	err := r.s.write(ctx, func(st *state) error {
		if a.ID == "" {
			a.ID = uuid.New().String()
		}
		a.CreatedAt = r.s.now()
		st.shiftAssignments = append(st.shiftAssignments, a)
		return nil
	})
	return a, err
}

func (r *shiftAssignmentRepository) FindActive(ctx context.Context, orgID, userID string, date time.Time) (*schedule.ShiftAssignment, error) {
	var out *schedule.ShiftAssignment
	err := r.s.read(func(st *state) error {
		for _, a := range st.shiftAssignments {
			if a.OrgID != orgID || a.UserID != userID || !a.Active || !schedule.Covers(a.StartDate, a.EndDate, date) {
				continue
			}
			if out == nil || a.StartDate.After(out.StartDate) {
				found := a
				out = &found
			}
		}
		return nil
	})
	return out, err
}

type rotationRepository struct{ s *Store }

func (s *Store) Rotations() schedule.RotationRepository { return &rotationRepository{s: s} }

func (r *rotationRepository) CreateRule(ctx context.Context, rule schedule.RotationRule) (schedule.RotationRule, error) {
	err := r.s.write(ctx, func(st *state) error {
		if rule.ID == "" {
			rule.ID = uuid.New().String()
		}
		rule.CreatedAt = r.s.now()
		rule.ShiftSequence = append([]string(nil), rule.ShiftSequence...)
		st.rotationRules[rule.ID] = rule
		return nil
	})
	return rule, err
}

func (r *rotationRepository) GetRule(ctx context.Context, orgID, id string) (schedule.RotationRule, error) {
	var out schedule.RotationRule
	err := r.s.read(func(st *state) error {
		rule, ok := st.rotationRules[id]
		if !ok || rule.OrgID != orgID {
			return schedule.ErrRotationRuleNotFound
		}
		out = rule
		return nil
	})
	return out, err
}

func (r *rotationRepository) CreateAssignment(ctx context.Context, a schedule.RotationAssignment) (schedule.RotationAssignment, error) {
	err := r.s.write(ctx, func(st *state) error {
		if a.ID == "" {
			a.ID = uuid.New().String()
		}
		a.CreatedAt = r.s.now()
		st.rotationAssignments = append(st.rotationAssignments, a)
		return nil
	})
	return a, err
}

func (r *rotationRepository) FindActiveAssignment(ctx context.Context, orgID, userID string, date time.Time) (*schedule.RotationAssignment, error) {
	var out *schedule.RotationAssignment
	err := r.s.read(func(st *state) error {
		for _, a := range st.rotationAssignments {
			if a.OrgID != orgID || a.UserID != userID || !a.Active || !schedule.Covers(a.StartDate, a.EndDate, date) {
				continue
			}
			if out == nil || a.StartDate.After(out.StartDate) {
				found := a
				out = &found
			}
		}
		return nil
	})
	return out, err
}

type holidayRepository struct{ s *Store }

func (s *Store) Holidays() schedule.HolidayRepository { return &holidayRepository{s: s} }

func (r *holidayRepository) Upsert(ctx context.Context, h schedule.Holiday) error {
	return r.s.write(ctx, func(st *state) error {
		h.Date = schedule.Date(h.Date)
		st.holidays[orgDateKey{orgID: h.OrgID, date: h.Date.Format("2006-01-02")}] = h
		return nil
	})
}

func (r *holidayRepository) Get(ctx context.Context, orgID string, date time.Time) (*schedule.Holiday, error) {
	var out *schedule.Holiday
	err := r.s.read(func(st *state) error {
		if h, ok := st.holidays[orgDateKey{orgID: orgID, date: schedule.Date(date).Format("2006-01-02")}]; ok {
			out = &h
		}
		return nil
	})
	return out, err
}

func (r *holidayRepository) List(ctx context.Context, orgID string, from, to time.Time) ([]schedule.Holiday, error) {
	var out []schedule.Holiday
	err := r.s.read(func(st *state) error {
		for _, h := range st.holidays {
			if h.OrgID == orgID && !h.Date.Before(schedule.Date(from)) && !h.Date.After(schedule.Date(to)) {
				out = append(out, h)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, err
}
