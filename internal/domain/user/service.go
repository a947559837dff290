package user

import "context"

// PermissionGate decides whether an actor may use a capability.
type PermissionGate interface {
	Require(ctx context.Context, actor Actor, permission Permission) error
}
