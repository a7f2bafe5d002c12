package models

// Permission names carried on users and checked by route guards.
const (
	PermDocumentsRead     = "documents:read"
	PermDocumentsUpload   = "documents:upload"
	PermDocumentsShare    = "documents:share"
	PermFriendsManage     = "friends:manage"
	PermDocumentsPublish  = "documents:publish"
	PermAuditReadOwn      = "audit:read_own"
	PermUsersRead         = "users:read"
	PermUsersManage       = "users:manage"
	PermDocumentsModerate = "documents:moderate"
	PermAuditRead         = "audit:read"
	PermUsersDelete       = "users:delete"
	PermRolesAssign       = "roles:assign"
)

var (
	userPermissions = []string{
		PermDocumentsRead,
		PermDocumentsUpload,
		PermDocumentsShare,
		PermFriendsManage,
	}
	facultyPermissions = append(append([]string{}, userPermissions...),
		PermDocumentsPublish,
		PermAuditReadOwn,
	)
	adminPermissions = append(append([]string{}, facultyPermissions...),
		PermUsersRead,
		PermUsersManage,
		PermDocumentsModerate,
		PermAuditRead,
	)
	superAdminPermissions = append(append([]string{}, adminPermissions...),
		PermUsersDelete,
		PermRolesAssign,
	)
)

// PermissionsForRole returns a fresh copy of the permission set derived from role.
func PermissionsForRole(role UserRole) []string {
	var src []string
	switch role {
	case RoleSuperAdmin:
		src = superAdminPermissions
	case RoleAdmin:
		src = adminPermissions
	case RoleFaculty:
		src = facultyPermissions
	default:
		src = userPermissions
	}
	out := make([]string, len(src))
	copy(out, src)
	return out
}

// RoleHasPermission reports whether role derives perm.
func RoleHasPermission(role UserRole, perm string) bool {
	for _, p := range PermissionsForRole(role) {
		if p == perm {
			return true
		}
	}
	return false
}
