package auth

// Permission represents a named capability in the system.
type Permission string

// Permission constants.
const (
	PermTimelineRead    Permission = "timeline:read"
	PermActionExecute   Permission = "action:execute"
	PermTimelineOperate Permission = "timeline:operate"
	PermTimelineAdmin   Permission = "timeline:admin"
	PermAuditRead       Permission = "audit:read"
)

// rolePermissions maps each role to its granted permissions.
// This is the single source of truth for the authorisation model.
var rolePermissions = map[Role][]Permission{
	RoleViewOnly: {
		PermTimelineRead,
	},
	RoleParticipant: {
		PermTimelineRead,
		PermActionExecute,
	},
	RoleCoordinator: {
		PermTimelineRead,
		PermActionExecute,
		PermTimelineOperate,
	},
	RoleOwner: {
		PermTimelineRead,
		PermActionExecute,
		PermTimelineOperate,
		PermTimelineAdmin,
		PermAuditRead,
	},
}

// HasPermission returns true if the given role has the specified permission.
func HasPermission(role Role, perm Permission) bool {
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}

// PermissionsForRole returns all permissions granted to a role.
// Returns nil for unknown roles.
func PermissionsForRole(role Role) []Permission {
	perms := rolePermissions[role]
	if perms == nil {
		return nil
	}
	result := make([]Permission, len(perms))
	copy(result, perms)
	return result
}
