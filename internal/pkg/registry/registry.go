package registry

import (
	"fmt"
	"sort"
	"sync"
)

// Well-known service names.
const (
	Calculator     = "attendance.calculator"
	Resolver       = "schedule.resolver"
	RuleSets       = "ruleset.service"
	Settings       = "settings.service"
	Reconciler     = "attendance.reconciler"
	Adjuster       = "attendance.adjuster"
	Attendance     = "attendance.service"
	Importer       = "attendance.importer"
	Approvals      = "approval.service"
	Holidays       = "holiday.service"
	PermissionGate = "permission.gate"
	ConstraintGate = "constraint.gate"
	EventBus       = "events.bus"
	AttendanceJobs = "cron.attendance"
)

// Registry maps capability names to service instances.
type Registry struct {
	mu       sync.RWMutex
	services map[string]interface{}
}

func New() *Registry {
	return &Registry{services: make(map[string]interface{})}
}

// Register binds name to svc. Names are bound once.
func (r *Registry) Register(name string, svc interface{}) error {
	if svc == nil {
		return fmt.Errorf("registry: nil service for %q", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.services[name]; ok {
		return fmt.Errorf("registry: %q already registered", name)
	}
	r.services[name] = svc
	return nil
}

// MustRegister is Register for wiring code, panicking on error.
func (r *Registry) MustRegister(name string, svc interface{}) {
	if err := r.Register(name, svc); err != nil {
		panic(err)
	}
}

func (r *Registry) Lookup(name string) (interface{}, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	svc, ok := r.services[name]
	return svc, ok
}

// Names lists registered names in order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.services))
	for name := range r.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get looks up name and asserts it to T.
func Get[T any](r *Registry, name string) (T, error) {
	var zero T
	svc, ok := r.Lookup(name)
	if !ok {
		return zero, fmt.Errorf("registry: %q not registered", name)
	}
	typed, ok := svc.(T)
	if !ok {
		return zero, fmt.Errorf("registry: %q is %T, not the requested type", name, svc)
	}
	return typed, nil
}

// MustGet is Get for wiring code.
func MustGet[T any](r *Registry, name string) T {
	svc, err := Get[T](r, name)
	if err != nil {
		panic(err)
	}
	return svc
}
