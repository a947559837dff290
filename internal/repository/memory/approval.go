package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/cmlabs-hris/attendance-core/internal/domain/approval"
	"github.com/cmlabs-hris/attendance-core/internal/domain/schedule"
)

type requestRepository struct{ s *Store }

func (s *Store) Requests() approval.RequestRepository { return &requestRepository{s: s} }

func (r *requestRepository) Create(ctx context.Context, req approval.Request) error {
	return r.s.write(ctx, func(st *state) error {
		if req.ID == "" {
			req.ID = uuid.New().String()
		}
		now := r.s.now()
		req.CreatedAt, req.UpdatedAt = now, now
		st.requests[req.ID] = req
		return nil
	})
}

func (r *requestRepository) Get(ctx context.Context, orgID, id string) (approval.Request, error) {
	var out approval.Request
	err := r.s.read(func(st *state) error {
		req, ok := st.requests[id]
		if !ok || req.OrgID != orgID {
			return approval.ErrRequestNotFound
		}
		out = req
		return nil
	})
	return out, err
}

func (r *requestRepository) GetForUpdate(ctx context.Context, orgID, id string) (approval.Request, error) {
	if err := r.s.requireTx(ctx); err != nil {
		return approval.Request{}, err
	}
	return r.Get(ctx, orgID, id)
}

func (r *requestRepository) Update(ctx context.Context, req approval.Request) error {
	return r.s.write(ctx, func(st *state) error {
		existing, ok := st.requests[req.ID]
		if !ok || existing.OrgID != req.OrgID {
			return approval.ErrRequestNotFound
		}
		req.CreatedAt = existing.CreatedAt
		req.UpdatedAt = r.s.now()
		st.requests[req.ID] = req
		return nil
	})
}

func (r *requestRepository) List(ctx context.Context, filter approval.RequestFilter) ([]approval.Request, error) {
	var out []approval.Request
	err := r.s.read(func(st *state) error {
		for _, req := range st.requests {
			if req.OrgID != filter.OrgID {
				continue
			}
			if filter.UserID != "" && req.UserID != filter.UserID {
				continue
			}
			if filter.Status != "" && req.Status != filter.Status {
				continue
			}
			if filter.From != nil && req.WorkDate.Before(schedule.Date(*filter.From)) {
				continue
			}
			if filter.To != nil && req.WorkDate.After(schedule.Date(*filter.To)) {
				continue
			}
			out = append(out, req)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, err
}

func (r *requestRepository) SumApprovedMinutes(ctx context.Context, orgID, userID string, workDate time.Time) (leave, overtime int, err error) {
	date := schedule.Date(workDate)
	err = r.s.read(func(st *state) error {
		for _, req := range st.requests {
			if req.OrgID != orgID || req.UserID != userID || req.Status != approval.StatusApproved || !req.WorkDate.Equal(date) {
				continue
			}
			switch req.Type {
			case approval.TypeLeave:
				leave += req.Metadata.DurationMinutes
			case approval.TypeOvertime:
				overtime += req.Metadata.DurationMinutes
			}
		}
		return nil
	})
	return leave, overtime, err
}

type instanceRepository struct{ s *Store }

func (s *Store) Instances() approval.InstanceRepository { return &instanceRepository{s: s} }

func (r *instanceRepository) Create(ctx context.Context, inst approval.Instance) error {
	return r.s.write(ctx, func(st *state) error {
		if inst.ID == "" {
			inst.ID = uuid.New().String()
		}
		now := r.s.now()
		inst.CreatedAt, inst.UpdatedAt = now, now
		st.instances[inst.ID] = inst
		return nil
	})
}

func (r *instanceRepository) GetForUpdate(ctx context.Context, id string) (approval.Instance, error) {
	if err := r.s.requireTx(ctx); err != nil {
		return approval.Instance{}, err
	}
	var out approval.Instance
	err := r.s.read(func(st *state) error {
		inst, ok := st.instances[id]
		if !ok {
			return approval.ErrInstanceNotFound
		}
		out = inst
		return nil
	})
	return out, err
}

func (r *instanceRepository) Transition(ctx context.Context, id string, expectedVersion int, status approval.Status) (approval.Instance, error) {
	var out approval.Instance
	err := r.s.write(ctx, func(st *state) error {
		inst, ok := st.instances[id]
		if !ok {
			return approval.ErrInstanceNotFound
		}
		if inst.Version != expectedVersion {
			return approval.ErrVersionConflict
		}
		inst.Version++
		inst.Status = status
		inst.UpdatedAt = r.s.now()
		st.instances[id] = inst
		out = inst
		return nil
	})
	return out, err
}

type auditRepository struct{ s *Store }

func (s *Store) Audits() approval.AuditRepository { return &auditRepository{s: s} }

func (r *auditRepository) Append(ctx context.Context, a approval.Audit) error {
	return r.s.write(ctx, func(st *state) error {
		if a.ID == "" {
			a.ID = uuid.New().String()
		}
		a.CreatedAt = r.s.now()
		a.Metadata = copyMap(a.Metadata)
		st.audits = append(st.audits, a)
		return nil
	})
}

func (r *auditRepository) ListByInstance(ctx context.Context, instanceID string) ([]approval.Audit, error) {
	var out []approval.Audit
	err := r.s.read(func(st *state) error {
		for _, a := range st.audits {
			if a.InstanceID == instanceID {
				out = append(out, a)
			}
		}
		return nil
	})
	return out, err
}

type flowRepository struct{ s *Store }

func (s *Store) Flows() approval.FlowRepository { return &flowRepository{s: s} }

func (r *flowRepository) Save(ctx context.Context, flow approval.Flow) (approval.Flow, error) {
	err := r.s.write(ctx, func(st *state) error {
		now := r.s.now()
		if existing, ok := st.flows[flow.ID]; ok {
			flow.CreatedAt = existing.CreatedAt
		} else {
			if flow.ID == "" {
				flow.ID = uuid.New().String()
			}
			flow.CreatedAt = now
		}
		flow.UpdatedAt = now
		flow.Steps = append([]approval.Step(nil), flow.Steps...)
		st.flows[flow.ID] = flow
		return nil
	})
	return flow, err
}

func (r *flowRepository) FindActive(ctx context.Context, orgID string, t approval.RequestType) (*approval.Flow, error) {
	var specific, generic *approval.Flow
	err := r.s.read(func(st *state) error {
		for _, f := range st.flows {
			if f.OrgID != orgID || !f.Active {
				continue
			}
			flow := f
			switch {
			case f.RequestType != nil && *f.RequestType == t:
				if specific == nil || flow.UpdatedAt.After(specific.UpdatedAt) {
					specific = &flow
				}
			case f.RequestType == nil:
				if generic == nil || flow.UpdatedAt.After(generic.UpdatedAt) {
					generic = &flow
				}
			}
		}
		return nil
	})
	if specific != nil {
		return specific, err
	}
	return generic, err
}
