package domain

// Role gates access for the transport collaborator. It is persisted on the
// user record and never encoded into tokens.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleCustomer || r == RoleAdmin
}

func (u User) IsAdmin() bool { return u.Role == RoleAdmin }
