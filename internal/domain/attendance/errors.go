package attendance

import "github.com/cmlabs-hris/attendance-core/internal/pkg/apperror"

var (
	ErrRecordNotFound  = apperror.New(apperror.CodeNotFound, "attendance record not found")
	ErrInvalidMode     = apperror.New(apperror.CodeValidation, "invalid reconcile mode")
	ErrInvalidPunch    = apperror.New(apperror.CodeValidation, "invalid punch")
	ErrIPRestricted    = apperror.New(apperror.CodeIPRestricted, "punch is not allowed from this network")
	ErrOutsideGeofence = apperror.New(apperror.CodeLocationRestricted, "you are outside the allowed radius")
	ErrLocationMissing = apperror.New(apperror.CodeLocationRestricted, "location is required for this organization")
	ErrPunchTooSoon    = apperror.New(apperror.CodeTooSoon, "punch is too soon after the previous one")
	ErrUnsupportedFile = apperror.New(apperror.CodeValidation, "unsupported import file type")
	ErrEmptyImport     = apperror.New(apperror.CodeValidation, "import file has no data rows")
)
