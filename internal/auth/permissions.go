package auth

// Permission keys are compared by equality at runtime; the constants below
// centralize them so handlers cannot drift on typos.
const (
	PermUsersCreate = "users.create"
	PermUsersRead   = "users.read"
	PermUsersUpdate = "users.update"
	PermUsersDelete = "users.delete"

	PermRolesCreate = "roles.create"
	PermRolesRead   = "roles.read"
	PermRolesUpdate = "roles.update"
	PermRolesDelete = "roles.delete"

	PermPermissionsCreate = "permissions.create"
	PermPermissionsRead   = "permissions.read"
	PermPermissionsUpdate = "permissions.update"
	PermPermissionsDelete = "permissions.delete"

	PermAuditRead = "audit.read"
)

// BuiltinPermissions is the catalog ensured at startup and by seeds.
var BuiltinPermissions = []Permission{
	{Key: PermUsersCreate, Description: "Create users"},
	{Key: PermUsersRead, Description: "List and fetch users"},
	{Key: PermUsersUpdate, Description: "Update users"},
	{Key: PermUsersDelete, Description: "Delete users"},
	{Key: PermRolesCreate, Description: "Create roles"},
	{Key: PermRolesRead, Description: "List and fetch roles"},
	{Key: PermRolesUpdate, Description: "Update roles and their assignments"},
	{Key: PermRolesDelete, Description: "Delete roles"},
	{Key: PermPermissionsCreate, Description: "Create permissions"},
	{Key: PermPermissionsRead, Description: "List permissions"},
	{Key: PermPermissionsUpdate, Description: "Update permissions"},
	{Key: PermPermissionsDelete, Description: "Delete permissions"},
	{Key: PermAuditRead, Description: "Read the audit log"},
}
