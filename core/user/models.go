package user

import (
	"net/mail"
	"strings"

	"github.com/thesisman/backend/core"
)

// Role is the single role carried by an identity.
type Role string

// Roles
const (
	RoleStudent   Role = "student"
	RoleTeacher   Role = "teacher"
	RoleSecretary Role = "secretary_clerk"
)

var AllRoles = []Role{RoleStudent, RoleTeacher, RoleSecretary}

func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleSecretary:
		return true
	}
	return false
}

// User is a directory entry. Users are provisioned outside the workflow
// (identity provider or the admin CLI); the core only reads them.
type User struct {
	ID      string `json:"id" db:"id"`
	Name    string `json:"name" db:"name"`
	Surname string `json:"surname" db:"surname"`
	Email   string `json:"email" db:"email"`
	Role    Role   `json:"role" db:"role"`
}

func (u User) FullName() string {
	return strings.TrimSpace(u.Name + " " + u.Surname)
}

func (u User) Address() mail.Address {
	return mail.Address{Name: u.FullName(), Address: u.Email}
}

func (u User) IsStudent() bool { return u.Role == RoleStudent }
func (u User) IsTeacher() bool { return u.Role == RoleTeacher }

// Actor is the already authenticated identity performing an operation.
type Actor struct {
	ID    string
	Email string
	Role  Role
}

func (a Actor) IsStudent() bool   { return a.Role == RoleStudent }
func (a Actor) IsTeacher() bool   { return a.Role == RoleTeacher }
func (a Actor) IsSecretary() bool { return a.Role == RoleSecretary }

func (a Actor) Is(roles ...Role) bool {
	for _, r := range roles {
		if a.Role == r {
			return true
		}
	}
	return false
}

type GetFilter struct {
	ID    string
	Email string
}

type QueryFilter struct {
	Role   Role
	IDs    []string
	Emails []string
}

func (qf *QueryFilter) Clean() {
	qf.Emails = core.CleanList(qf.Emails, true /* lower */)
}
