package approval

import "github.com/cmlabs-hris/attendance-core/internal/pkg/apperror"

var (
	ErrRequestNotFound  = apperror.New(apperror.CodeNotFound, "request not found")
	ErrInstanceNotFound = apperror.New(apperror.CodeNotFound, "approval instance not found")
	ErrFlowNotFound     = apperror.New(apperror.CodeNotFound, "approval flow not found")
	ErrNotPending       = apperror.New(apperror.CodeInvalidStatus, "request has already been resolved")
	ErrInstanceMismatch = apperror.New(apperror.CodeInvalidState, "approval instance does not match request")
	ErrVersionConflict  = apperror.New(apperror.CodeConflict, "approval instance was modified concurrently")
	ErrNotStepApprover  = apperror.New(apperror.CodeForbidden, "you are not an approver for the current step")
	ErrCannotCancel     = apperror.New(apperror.CodeForbidden, "only the requester or an approver can cancel this request")
)
