// README: Authenticated caller passed explicitly into every lifecycle operation.
package auth

type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// ParseRole maps a token claim to a Role. Anything unrecognised is a customer.
func ParseRole(v string) Role {
	if Role(v) == RoleAdmin {
		return RoleAdmin
	}
	return RoleCustomer
}

type Principal struct {
	UID  string
	Role Role
}

func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// CanAccess reports whether p may read or act on a resource owned by ownerUID.
func (p Principal) CanAccess(ownerUID string) bool {
	return p.IsAdmin() || (p.UID != "" && p.UID == ownerUID)
}
