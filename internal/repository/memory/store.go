// Package memory is an in-process store implementing the repository
// interfaces. Transactions are serialized and roll back by restoring a
// snapshot, which gives the same isolation the postgres row locks give.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/cmlabs-hris/attendance-core/internal/domain/approval"
	"github.com/cmlabs-hris/attendance-core/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-core/internal/domain/ruleset"
	"github.com/cmlabs-hris/attendance-core/internal/domain/schedule"
	"github.com/cmlabs-hris/attendance-core/internal/domain/settings"
	"github.com/cmlabs-hris/attendance-core/internal/domain/user"
	"github.com/cmlabs-hris/attendance-core/internal/pkg/database"
)

type recordKey struct {
	orgID, userID, date string
}

func keyOf(k attendance.Key) recordKey {
	return recordKey{orgID: k.OrgID, userID: k.UserID, date: k.WorkDate.Format("2006-01-02")}
}

type orgDateKey struct {
	orgID, date string
}

type memberKey struct {
	orgID, userID string
}

type state struct {
	records             map[recordKey]attendance.Record
	events              []attendance.Event
	shifts              map[string]schedule.Shift
	shiftAssignments    []schedule.ShiftAssignment
	rotationRules       map[string]schedule.RotationRule
	rotationAssignments []schedule.RotationAssignment
	holidays            map[orgDateKey]schedule.Holiday
	requests            map[string]approval.Request
	instances           map[string]approval.Instance
	audits              []approval.Audit
	flows               map[string]approval.Flow
	ruleSets            []ruleset.Stored
	members             map[memberKey]user.Member
	settings            map[string]settings.Settings
	jobRuns             map[string]time.Time
}

func newState() *state {
	return &state{
		records:       make(map[recordKey]attendance.Record),
		shifts:        make(map[string]schedule.Shift),
		rotationRules: make(map[string]schedule.RotationRule),
		holidays:      make(map[orgDateKey]schedule.Holiday),
		requests:      make(map[string]approval.Request),
		instances:     make(map[string]approval.Instance),
		flows:         make(map[string]approval.Flow),
		members:       make(map[memberKey]user.Member),
		settings:      make(map[string]settings.Settings),
		jobRuns:       make(map[string]time.Time),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.records {
		v.Meta = copyMap(v.Meta)
		c.records[k] = v
	}
	c.events = append(c.events, s.events...)
	for k, v := range s.shifts {
		c.shifts[k] = v
	}
	c.shiftAssignments = append(c.shiftAssignments, s.shiftAssignments...)
	for k, v := range s.rotationRules {
		c.rotationRules[k] = v
	}
	c.rotationAssignments = append(c.rotationAssignments, s.rotationAssignments...)
	for k, v := range s.holidays {
		c.holidays[k] = v
	}
	for k, v := range s.requests {
		c.requests[k] = v
	}
	for k, v := range s.instances {
		c.instances[k] = v
	}
	c.audits = append(c.audits, s.audits...)
	for k, v := range s.flows {
		c.flows[k] = v
	}
	c.ruleSets = append(c.ruleSets, s.ruleSets...)
	for k, v := range s.members {
		c.members[k] = v
	}
	for k, v := range s.settings {
		c.settings[k] = v
	}
	for k, v := range s.jobRuns {
		c.jobRuns[k] = v
	}
	return c
}

// Store holds all data in memory.
type Store struct {
	txMu     sync.Mutex
	mu       sync.RWMutex
	st       *state
	notReady bool
	now      func() time.Time
}

func NewStore() *Store {
	return &Store{st: newState(), now: func() time.Time { return time.Now().UTC() }}
}

// SetNotReady makes every operation fail with database.ErrStoreNotReady.
func (s *Store) SetNotReady(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notReady = v
}

type txMarker struct{}

func (s *Store) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txMarker{}).(*Store)
	return owner == s
}

// WithTransaction serializes fn against other transactions and restores
// the pre-transaction snapshot if fn fails. Nested calls behave like
// savepoints.
func (s *Store) WithTransaction(ctx context.Context, fn func(txCtx context.Context) error) (err error) {
	if !s.inTx(ctx) {
		s.txMu.Lock()
		defer s.txMu.Unlock()
		ctx = context.WithValue(ctx, txMarker{}, s)
	}

	s.mu.RLock()
	snapshot := s.st.clone()
	s.mu.RUnlock()

	defer func() {
		if p := recover(); p != nil {
			s.restore(snapshot)
			panic(p)
		}
		if err != nil {
			s.restore(snapshot)
		}
	}()

	return fn(ctx)
}

func (s *Store) restore(snapshot *state) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st = snapshot
}

func (s *Store) read(fn func(st *state) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.notReady {
		return database.ErrStoreNotReady
	}
	return fn(s.st)
}

// write runs fn under the data lock; outside a transaction it also takes
// the transaction lock so a concurrent rollback cannot discard it.
func (s *Store) write(ctx context.Context, fn func(st *state) error) error {
	if !s.inTx(ctx) {
		s.txMu.Lock()
		defer s.txMu.Unlock()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.notReady {
		return database.ErrStoreNotReady
	}
	return fn(s.st)
}

func (s *Store) requireTx(ctx context.Context) error {
	if !s.inTx(ctx) {
		return database.ErrNoTransaction
	}
	return nil
}

func copyMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

var _ database.Transactor = (*Store)(nil)
