package ruleset

import "github.com/cmlabs-hris/attendance-core/internal/pkg/apperror"

var (
	ErrRuleSetNotFound  = apperror.New(apperror.CodeNotFound, "rule set not found")
	ErrInvalidDocument  = apperror.New(apperror.CodeValidation, "rule set document is invalid")
	ErrUnknownOperator  = apperror.New(apperror.CodeValidation, "unknown rule operator")
	ErrInvalidOperand   = apperror.New(apperror.CodeValidation, "invalid rule operand")
	ErrVersionConflict  = apperror.New(apperror.CodeConflict, "rule set version already exists")
	ErrUnknownUserGroup = apperror.New(apperror.CodeValidation, "policy rule references an unknown user group")
)
