package users

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrUserIDEmpty     = errors.New("user id is empty")
	ErrUserRoleUnknown = errors.New("user role is unknown")
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func ParseRole(role string) (Role, error) {
	switch role {
	case "", string(RoleUser):
		return RoleUser, nil
	case string(RoleAdmin):
		return RoleAdmin, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUserRoleUnknown, role)
	}
}

// User is a marketplace participant. Balance is only ever changed through
// a signed-delta increment in the store.
type User struct {
	ID        string
	Balance   int64
	Role      Role
	CreatedAt time.Time
}

func NewUser(id string, role Role) (*User, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}

	return &User{
		ID:   id,
		Role: role,
	}, nil
}

// Identity is the caller as asserted by the identity provider.
type Identity struct {
	UserID string
	Role   Role
}

func (i Identity) IsAnonymous() bool {
	return i.UserID == ""
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

func ValidateID(id string) error {
	if id == "" {
		return ErrUserIDEmpty
	}

	return nil
}
