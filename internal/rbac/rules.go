package rbac

const (
	PermViewOwn = "attempt:view-own"
	PermViewAll = "attempt:view-all"
	PermSave    = "attempt:save"
)

// RolePermissions is the default policy.
var RolePermissions = map[string][]string{
	"student": {
		PermViewOwn,
		PermSave,
	},
	"teacher": {
		PermViewOwn,
		PermViewAll,
		PermSave,
	},
	"admin": {
		"*", // everything
	},
}
