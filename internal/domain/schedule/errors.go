package schedule

import "github.com/cmlabs-hris/attendance-core/internal/pkg/apperror"

var (
	ErrShiftNotFound        = apperror.New(apperror.CodeNotFound, "shift not found")
	ErrRotationRuleNotFound = apperror.New(apperror.CodeNotFound, "rotation rule not found")
	ErrInvalidRotation      = apperror.New(apperror.CodeValidation, "rotation cannot be applied to this date")
)
