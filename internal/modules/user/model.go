// README: User entity with role and account status.
package user

import "trego/internal/types"

type Role string

const (
	RoleRider  Role = "rider"
	RoleDriver Role = "driver"
	RoleAdmin  Role = "admin"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
)

type User struct {
	ID        types.ID
	Email     string
	FirstName string
	Role      Role
	Status    Status
	CityID    *types.ID
}

// CanAct reports whether the account is allowed to perform lifecycle actions.
func (u *User) CanAct() bool {
	return u != nil && u.Status == StatusActive
}
