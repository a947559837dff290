package user

import "github.com/cmlabs-hris/attendance-core/internal/pkg/apperror"

var (
	ErrUnauthenticated = apperror.New(apperror.CodeUnauthorized, "authentication required")
	ErrForbidden       = apperror.New(apperror.CodeForbidden, "you do not have permission to perform this action")
	ErrMemberNotFound  = apperror.New(apperror.CodeNotFound, "member not found")
)
