package user

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo-portal/core"
)

// Roles
const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

var (
	AllRoles = []string{RoleAdmin, RoleTeacher, RoleStudent}

	rolePriorities = map[string]int{
		RoleAdmin:   30,
		RoleTeacher: 20,
		RoleStudent: 10,
	}
)

func RolePriority(role string) int {
	return rolePriorities[role]
}

// NormalizeRole maps the API's role spellings ("admin:principal", "Teacher") onto one of AllRoles.
func NormalizeRole(role string) string {
	role = core.CleanString(role, true /* lower */)
	if i := strings.Index(role, ":"); i >= 0 {
		role = role[:i]
	}
	for _, r := range AllRoles {
		if r == role {
			return r
		}
	}
	return ""
}

// Profile is the signed-in user as returned by the remote API.
type Profile struct {
	ID           string `json:"id"`
	Role         string `json:"role"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	IsFirstLogin bool   `json:"isFirstLogin"`
	Class        string `json:"class,omitempty"`   // students
	Subject      string `json:"subject,omitempty"` // teachers
}

func (p Profile) IsAdmin() bool   { return NormalizeRole(p.Role) == RoleAdmin }
func (p Profile) IsTeacher() bool { return NormalizeRole(p.Role) == RoleTeacher }
func (p Profile) IsStudent() bool { return NormalizeRole(p.Role) == RoleStudent }

// HasAnyRole reports whether the profile's role is one of roles. No roles means any role.
func (p Profile) HasAnyRole(roles ...string) bool {
	if len(roles) == 0 {
		return true
	}
	role := NormalizeRole(p.Role)
	for _, r := range roles {
		if NormalizeRole(r) == role && role != "" {
			return true
		}
	}
	return false
}

// DashboardPath is the landing page of the profile's portal.
func (p Profile) DashboardPath() string {
	switch NormalizeRole(p.Role) {
	case RoleAdmin:
		return "/dashboard/admin"
	case RoleTeacher:
		return "/dashboard/teacher"
	case RoleStudent:
		return "/dashboard/student"
	}
	return "/"
}

// Credentials are posted to the remote API's login endpoint.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (c *Credentials) Validate(validate *validator.Validate) error {
	c.Email = core.CleanString(c.Email, true /* lower */)
	return validate.Struct(c)
}

// ChangePassword is the first-login (and voluntary) password change form.
type ChangePassword struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`

	// user attributes the new password must not resemble; never sent
	Name  string `json:"-"`
	Email string `json:"-"`
}

func (cp *ChangePassword) Validate(validate *validator.Validate) error {
	return validate.Struct(cp)
}
