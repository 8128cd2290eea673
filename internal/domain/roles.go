package domain

type Role string

const (
	// RoleUser is assigned at sign-up.
	RoleUser Role = "user"
	// RoleModerator and RoleAdmin are only granted through privileged tooling.
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// Valid reports whether r is one of the roles a profile may carry.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleModerator, RoleAdmin:
		return true
	default:
		return false
	}
}

// ErrUnknownRole rejects a profile write or token claim naming a role outside the known set.
func ErrUnknownRole(r Role) *Error {
	return WithMeta(New(KindInvalidInput, "unknown_role", "role is not recognised"), map[string]string{
		"field": "role",
		"role":  string(r),
	})
}
