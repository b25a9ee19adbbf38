package model

// Role is the privilege level carried by an identity claim.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleClient Role = "client"
)

// Identity is the verified caller of a request.
type Identity struct {
	UserID int64
	Role   Role
}

// IsAdmin reports whether the identity may use privileged endpoints.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}
