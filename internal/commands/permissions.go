package commands

import (
	"errors"
	"slices"
)

// Role is what a sender may do.
type Role int

const (
	RoleNone Role = iota
	RoleOperator
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleOperator:
		return "operator"
	default:
		return "none"
	}
}

var (
	ErrNotAuthorized = errors.New("you are not an authorized operator")
	ErrAdminOnly     = errors.New("admin command requires admin privileges")
)

// RoleOf resolves a sender's hex pubkey against the admin and operator
// lists. Admins are implicitly operators.
func RoleOf(pubkeyHex string, admins, operators []string) Role {
	switch {
	case slices.Contains(admins, pubkeyHex):
		return RoleAdmin
	case slices.Contains(operators, pubkeyHex):
		return RoleOperator
	default:
		return RoleNone
	}
}

// CanExecute returns an error if the role lacks permission to run cmd.
func CanExecute(cmd *Command, role Role) error {
	switch role {
	case RoleAdmin:
		return nil
	case RoleOperator:
		if cmd.IsAdminCommand() {
			return ErrAdminOnly
		}
		return nil
	default:
		return ErrNotAuthorized
	}
}
