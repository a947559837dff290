package settings

import "github.com/cmlabs-hris/attendance-core/internal/pkg/apperror"

var ErrSettingsNotFound = apperror.New(apperror.CodeNotFound, "settings not found")
