package approval

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cmlabs-hris/attendance-core/internal/domain/approval"
	"github.com/cmlabs-hris/attendance-core/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-core/internal/domain/schedule"
	"github.com/cmlabs-hris/attendance-core/internal/domain/settings"
	"github.com/cmlabs-hris/attendance-core/internal/domain/user"
	"github.com/cmlabs-hris/attendance-core/internal/pkg/database"
	"github.com/cmlabs-hris/attendance-core/internal/pkg/events"
)

type ApprovalServiceImpl struct {
	tx         database.Transactor
	requests   approval.RequestRepository
	instances  approval.InstanceRepository
	audits     approval.AuditRepository
	flows      approval.FlowRepository
	records    attendance.RecordRepository
	events     attendance.EventRepository
	resolver   schedule.Resolver
	reconciler attendance.Reconciler
	adjuster   attendance.Adjuster
	calc       attendance.MetricsCalculator
	settings   settings.Service
	gate       user.PermissionGate
	publisher  events.Publisher
	logger     *slog.Logger
}

// CreateRequest implements approval.Service.
func (s *ApprovalServiceImpl) CreateRequest(ctx context.Context, actor user.Actor, req approval.CreateRequestRequest) (approval.Request, error) {
	req.OrgID = actor.OrgID
	if req.UserID == "" {
		req.UserID = actor.UserID
	}
	if err := req.Validate(); err != nil {
		return approval.Request{}, err
	}

	permission := user.PermissionRequestCreate
	if req.UserID != actor.UserID {
		permission = user.PermissionAttendanceManage
	}
	if err := s.gate.Require(ctx, actor, permission); err != nil {
		return approval.Request{}, err
	}

	orgSettings, err := s.settings.Get(ctx, req.OrgID)
	if err != nil {
		return approval.Request{}, err
	}

	flow, err := s.flows.FindActive(ctx, req.OrgID, req.Type)
	if err != nil {
		return approval.Request{}, fmt.Errorf("failed to find approval flow: %w", err)
	}
	snapshot := approval.FlowSnapshot{Steps: []approval.Step{}}
	if flow != nil {
		snapshot.FlowID = flow.ID
		snapshot.Name = flow.Name
		snapshot.Steps = append(snapshot.Steps, flow.Steps...)
	}

	now := time.Now().UTC()
	instance := approval.Instance{
		ID:        uuid.New().String(),
		OrgID:     req.OrgID,
		Status:    approval.StatusPending,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	request := approval.Request{
		ID:                 uuid.New().String(),
		OrgID:              req.OrgID,
		UserID:             req.UserID,
		WorkDate:           schedule.Date(req.ParsedWorkDate),
		Type:               req.Type,
		RequestedIn:        req.ParsedRequestedIn,
		RequestedOut:       req.ParsedRequestedOut,
		Reason:             req.Reason,
		Status:             approval.StatusPending,
		ApprovalInstanceID: instance.ID,
		Metadata: approval.RequestMetadata{
			DurationMinutes: s.duration(req, *orgSettings.Overtime),
			Timezone:        orgSettings.DefaultSchedule.Timezone,
			Flow:            snapshot,
			Extra:           req.Extra,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.instances.Create(txCtx, instance); err != nil {
			return fmt.Errorf("failed to create approval instance: %w", err)
		}
		if err := s.requests.Create(txCtx, request); err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		return s.audits.Append(txCtx, approval.Audit{
			ID:          uuid.New().String(),
			InstanceID:  instance.ID,
			Action:      approval.ActionSubmit,
			ActorID:     actor.UserID,
			ToStatus:    approval.StatusPending,
			FromVersion: 0,
			ToVersion:   instance.Version,
			Comment:     req.Reason,
			Metadata:    map[string]interface{}{"request_id": request.ID, "request_type": string(request.Type), "total_steps": len(snapshot.Steps)},
		})
	})
	if err != nil {
		return approval.Request{}, err
	}

	s.logger.InfoContext(ctx, "request submitted", "org_id", request.OrgID, "request_id", request.ID, "type", string(request.Type), "steps", len(snapshot.Steps))
	s.publisher.Publish(events.Event{Topic: events.TopicRequested, OrgID: request.OrgID, UserID: request.UserID, Payload: request, At: now})

	return request, nil
}

// duration resolves the minutes a leave or overtime request is worth.
// Overtime is quantized with the org's rounding; leave is taken as asked.
func (s *ApprovalServiceImpl) duration(req approval.CreateRequestRequest, rounding attendance.OvertimeRounding) int {
	minutes := req.DurationMinutes
	if req.ParsedRequestedIn != nil && req.ParsedRequestedOut != nil && minutes == 0 {
		minutes = int(req.ParsedRequestedOut.Sub(*req.ParsedRequestedIn) / time.Minute)
	}
	switch req.Type {
	case approval.TypeOvertime:
		return s.calc.RoundOvertime(minutes, rounding)
	case approval.TypeLeave:
		return minutes
	}
	return 0
}

// Approve implements approval.Service.
func (s *ApprovalServiceImpl) Approve(ctx context.Context, actor user.Actor, req approval.ResolveRequest) (approval.Request, error) {
	if err := s.gate.Require(ctx, actor, user.PermissionRequestApprove); err != nil {
		return approval.Request{}, err
	}
	return s.transition(ctx, actor, req, approval.ActionApprove, func(r *approval.Request) (approval.Status, error) {
		step, ok := r.Metadata.Flow.Current()
		if ok && !step.IsOpen() && !isStepApprover(actor, step) {
			return "", approval.ErrNotStepApprover
		}
		if r.Metadata.Flow.IsLastStep() {
			return approval.StatusApproved, nil
		}
		r.Metadata.Flow.CurrentStep++
		return approval.StatusPending, nil
	})
}

// Reject implements approval.Service. It resolves at any step.
func (s *ApprovalServiceImpl) Reject(ctx context.Context, actor user.Actor, req approval.ResolveRequest) (approval.Request, error) {
	if err := s.gate.Require(ctx, actor, user.PermissionRequestApprove); err != nil {
		return approval.Request{}, err
	}
	return s.transition(ctx, actor, req, approval.ActionReject, func(r *approval.Request) (approval.Status, error) {
		return approval.StatusRejected, nil
	})
}

// Cancel implements approval.Service. Requesters may cancel their own
// pending requests; approvers may cancel any.
func (s *ApprovalServiceImpl) Cancel(ctx context.Context, actor user.Actor, req approval.ResolveRequest) (approval.Request, error) {
	if actor.UserID == "" {
		return approval.Request{}, user.ErrUnauthenticated
	}
	canApprove := s.gate.Require(ctx, actor, user.PermissionRequestApprove) == nil
	return s.transition(ctx, actor, req, approval.ActionCancel, func(r *approval.Request) (approval.Status, error) {
		if r.UserID != actor.UserID && !canApprove {
			return "", approval.ErrCannotCancel
		}
		return approval.StatusCancelled, nil
	})
}

func isStepApprover(actor user.Actor, step approval.Step) bool {
	for _, id := range step.ApproverUserIDs {
		if id == actor.UserID {
			return true
		}
	}
	return actor.HoldsRole(step.ApproverRoleIDs)
}

// transition runs one state change under the request and instance locks.
// decide may mutate the request's flow snapshot and returns the next status.
func (s *ApprovalServiceImpl) transition(
	ctx context.Context,
	actor user.Actor,
	req approval.ResolveRequest,
	action approval.Action,
	decide func(r *approval.Request) (approval.Status, error),
) (approval.Request, error) {
	if err := req.Validate(); err != nil {
		return approval.Request{}, err
	}

	var (
		result  approval.Request
		record  *attendance.Record
		version int
	)
	err := s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		r, err := s.requests.GetForUpdate(txCtx, actor.OrgID, req.RequestID)
		if err != nil {
			return err
		}
		inst, err := s.instances.GetForUpdate(txCtx, r.ApprovalInstanceID)
		if err != nil {
			return err
		}
		if inst.OrgID != r.OrgID {
			return approval.ErrInstanceMismatch
		}
		if inst.Status != approval.StatusPending || r.Status != approval.StatusPending {
			return approval.ErrNotPending
		}

		fromStep := r.Metadata.Flow.CurrentStep
		next, err := decide(&r)
		if err != nil {
			return err
		}

		updated, err := s.instances.Transition(txCtx, inst.ID, inst.Version, next)
		if err != nil {
			return err
		}
		version = updated.Version

		r.Status = next
		if err := s.requests.Update(txCtx, r); err != nil {
			return fmt.Errorf("failed to update request: %w", err)
		}

		if err := s.audits.Append(txCtx, approval.Audit{
			ID:          uuid.New().String(),
			InstanceID:  inst.ID,
			Action:      action,
			ActorID:     actor.UserID,
			FromStatus:  inst.Status,
			ToStatus:    next,
			FromVersion: inst.Version,
			ToVersion:   updated.Version,
			Comment:     req.Comment,
			Metadata: map[string]interface{}{
				"step":        fromStep,
				"next_step":   r.Metadata.Flow.CurrentStep,
				"total_steps": len(r.Metadata.Flow.Steps),
			},
		}); err != nil {
			return fmt.Errorf("failed to write approval audit: %w", err)
		}

		if next == approval.StatusApproved {
			rec, err := s.applyApproved(txCtx, actor, r)
			if err != nil {
				return err
			}
			record = &rec
		}
		result = r
		return nil
	})
	if err != nil {
		return approval.Request{}, err
	}

	s.logger.InfoContext(ctx, "request transitioned",
		"org_id", result.OrgID,
		"request_id", result.ID,
		"action", string(action),
		"status", string(result.Status),
		"version", version,
	)

	now := time.Now().UTC()
	if result.Status.IsTerminal() {
		s.publisher.Publish(events.Event{Topic: events.TopicResolved, OrgID: result.OrgID, UserID: result.UserID, Payload: result, At: now})
	}
	if record != nil {
		s.publisher.Publish(events.Event{Topic: events.TopicRecordUpdated, OrgID: record.OrgID, UserID: record.UserID, Payload: *record, At: now})
	}
	return result, nil
}

// applyApproved writes an approved request's outcome into the daily record
// and leaves an adjustment event behind. It runs inside the transition's
// transaction, after the request row is already marked approved.
func (s *ApprovalServiceImpl) applyApproved(ctx context.Context, actor user.Actor, r approval.Request) (attendance.Record, error) {
	orgSettings, err := s.settings.Get(ctx, r.OrgID)
	if err != nil {
		return attendance.Record{}, err
	}
	wc, err := s.resolver.Resolve(ctx, r.OrgID, r.UserID, r.WorkDate, *orgSettings.DefaultSchedule)
	if err != nil {
		return attendance.Record{}, fmt.Errorf("failed to resolve work context: %w", err)
	}

	leave, overtime, err := s.requests.SumApprovedMinutes(ctx, r.OrgID, r.UserID, r.WorkDate)
	if err != nil {
		return attendance.Record{}, fmt.Errorf("failed to sum approved minutes: %w", err)
	}

	in := attendance.ReconcileInput{
		Key:             attendance.Key{OrgID: r.OrgID, UserID: r.UserID, WorkDate: r.WorkDate},
		Context:         wc,
		LeaveMinutes:    leave,
		OvertimeMinutes: overtime,
		Adjuster:        s.adjuster,
		Meta: map[string]interface{}{
			"last_request_id":   r.ID,
			"last_request_type": string(r.Type),
		},
	}

	if r.Type.IsPunch() {
		current, err := s.records.EnsureAndLock(ctx, in.Key, wc.Schedule.Timezone, wc.IsWorkingDay)
		if err != nil {
			return attendance.Record{}, fmt.Errorf("failed to lock attendance record: %w", err)
		}
		in.Mode = attendance.ModeOverride
		in.FirstIn, in.LastOut = current.FirstInAt, current.LastOutAt
		if r.RequestedIn != nil {
			in.FirstIn = r.RequestedIn
		}
		if r.RequestedOut != nil {
			in.LastOut = r.RequestedOut
		}
	} else {
		status := attendance.StatusAdjusted
		if !wc.IsWorkingDay {
			status = attendance.StatusOff
		}
		in.Mode = attendance.ModeMerge
		in.Override = &attendance.Override{Status: &status}
	}

	rec, err := s.reconciler.Reconcile(ctx, in)
	if err != nil {
		return attendance.Record{}, err
	}

	if err := s.events.Append(ctx, attendance.Event{
		ID:         uuid.New().String(),
		OrgID:      r.OrgID,
		UserID:     r.UserID,
		WorkDate:   r.WorkDate,
		OccurredAt: time.Now().UTC(),
		Type:       attendance.EventAdjustment,
		Timezone:   wc.Schedule.Timezone,
		Source:     "approval",
		Meta: map[string]interface{}{
			"request_id":   r.ID,
			"request_type": string(r.Type),
			"approved_by":  actor.UserID,
		},
	}); err != nil {
		return attendance.Record{}, fmt.Errorf("failed to append adjustment event: %w", err)
	}
	return rec, nil
}

// GetRequest implements approval.Service.
func (s *ApprovalServiceImpl) GetRequest(ctx context.Context, actor user.Actor, id string) (approval.Request, error) {
	r, err := s.requests.Get(ctx, actor.OrgID, id)
	if err != nil {
		return approval.Request{}, err
	}
	if r.UserID != actor.UserID {
		if err := s.gate.Require(ctx, actor, user.PermissionRequestViewAll); err != nil {
			return approval.Request{}, err
		}
	}
	return r, nil
}

// ListRequests implements approval.Service.
func (s *ApprovalServiceImpl) ListRequests(ctx context.Context, actor user.Actor, filter approval.RequestFilter) ([]approval.Request, error) {
	filter.OrgID = actor.OrgID
	if err := s.gate.Require(ctx, actor, user.PermissionRequestViewAll); err != nil {
		if filter.UserID != "" && filter.UserID != actor.UserID {
			return nil, err
		}
		if err := s.gate.Require(ctx, actor, user.PermissionRequestCreate); err != nil {
			return nil, err
		}
		filter.UserID = actor.UserID
	}

	out, err := s.requests.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	return out, nil
}

// ListAudit implements approval.Service.
func (s *ApprovalServiceImpl) ListAudit(ctx context.Context, actor user.Actor, requestID string) ([]approval.Audit, error) {
	r, err := s.GetRequest(ctx, actor, requestID)
	if err != nil {
		return nil, err
	}
	audits, err := s.audits.ListByInstance(ctx, r.ApprovalInstanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list audits: %w", err)
	}
	return audits, nil
}

// Deps groups the collaborators of the approval service.
type Deps struct {
	Tx         database.Transactor
	Requests   approval.RequestRepository
	Instances  approval.InstanceRepository
	Audits     approval.AuditRepository
	Flows      approval.FlowRepository
	Records    attendance.RecordRepository
	Events     attendance.EventRepository
	Resolver   schedule.Resolver
	Reconciler attendance.Reconciler
	Adjuster   attendance.Adjuster
	Calculator attendance.MetricsCalculator
	Settings   settings.Service
	Gate       user.PermissionGate
	Publisher  events.Publisher
	Logger     *slog.Logger
}

func NewApprovalService(d Deps) approval.Service {
	if d.Publisher == nil {
		d.Publisher = events.Discard
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &ApprovalServiceImpl{
		tx:         d.Tx,
		requests:   d.Requests,
		instances:  d.Instances,
		audits:     d.Audits,
		flows:      d.Flows,
		records:    d.Records,
		events:     d.Events,
		resolver:   d.Resolver,
		reconciler: d.Reconciler,
		adjuster:   d.Adjuster,
		calc:       d.Calculator,
		settings:   d.Settings,
		gate:       d.Gate,
		publisher:  d.Publisher,
		logger:     d.Logger,
	}
}
