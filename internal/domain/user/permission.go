package user

type Permission string

const (
	// Attendance
	PermissionAttendanceCreate  Permission = "attendance.create"
	PermissionAttendanceManage  Permission = "attendance.manage"
	PermissionAttendanceViewOwn Permission = "attendance.view_own"
	PermissionAttendanceViewAll Permission = "attendance.view_all"
	PermissionAttendanceImport  Permission = "attendance.import"

	// Requests
	PermissionRequestCreate  Permission = "request.create"
	PermissionRequestViewAll Permission = "request.view_all"
	PermissionRequestApprove Permission = "request.approve"

	// Configuration
	PermissionRuleSetManage  Permission = "ruleset.manage"
	PermissionHolidayManage  Permission = "holiday.manage"
	PermissionSettingsManage Permission = "settings.manage"
)

// RolePermissions maps roles to their permissions
var RolePermissions = map[Role][]Permission{
	RoleOwner: {
		PermissionAttendanceCreate,
		PermissionAttendanceManage,
		PermissionAttendanceViewOwn,
		PermissionAttendanceViewAll,
		PermissionAttendanceImport,
		PermissionRequestCreate,
		PermissionRequestViewAll,
		PermissionRequestApprove,
		PermissionRuleSetManage,
		PermissionHolidayManage,
		PermissionSettingsManage,
	},
	RoleManager: {
		PermissionAttendanceCreate,
		PermissionAttendanceManage,
		PermissionAttendanceViewOwn,
		PermissionAttendanceViewAll,
		PermissionAttendanceImport,
		PermissionRequestCreate,
		PermissionRequestViewAll,
		PermissionRequestApprove,
		PermissionHolidayManage,
	},
	RoleEmployee: {
		PermissionAttendanceCreate,
		PermissionAttendanceViewOwn,
		PermissionRequestCreate,
	},
	RolePending: {
		// Pending role has no permissions
	},
}

// HasPermission checks if a role has a specific permission
func HasPermission(role Role, permission Permission) bool {
	permissions, exists := RolePermissions[role]
	if !exists {
		return false
	}

	for _, p := range permissions {
		if p == permission {
			return true
		}
	}

	return false
}
