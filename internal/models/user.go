package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleStudent UserRole = "student"
	RoleTeacher UserRole = "teacher"
	RoleHOD     UserRole = "hod"
	RoleAdmin   UserRole = "admin"
)

// Valid reports whether r is one of the known roles.
func (r UserRole) Valid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleHOD, RoleAdmin:
		return true
	}
	return false
}

// IsPrivileged is true for roles that triage grievances.
func (r UserRole) IsPrivileged() bool {
	return r == RoleAdmin || r == RoleHOD
}

// User is an account stored in the key-value store.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         UserRole  `json:"role"`
	Department   string    `json:"department,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Viewer is the identity a request acts as. Anonymous callers have Authenticated=false.
type Viewer struct {
	UserID        string
	Name          string
	Email         string
	Role          UserRole
	Department    string
	Authenticated bool
}

// AnonymousViewer returns the identity used when no valid token is presented.
func AnonymousViewer() Viewer {
	return Viewer{}
}

// IsPrivileged reports whether the viewer is an authenticated admin or HOD.
func (v Viewer) IsPrivileged() bool {
	return v.Authenticated && v.Role.IsPrivileged()
}

// IsAdmin reports whether the viewer is an authenticated admin.
func (v Viewer) IsAdmin() bool {
	return v.Authenticated && v.Role == RoleAdmin
}

// IsHOD reports whether the viewer is an authenticated head of department.
func (v Viewer) IsHOD() bool {
	return v.Authenticated && v.Role == RoleHOD
}
