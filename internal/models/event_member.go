package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EventRole is a user's role within one event.
type EventRole string

const (
	RoleHoOC   EventRole = "HoOC"
	RoleHoD    EventRole = "HoD"
	RoleMember EventRole = "Member"
)

// ParseEventRole normalizes an external role label. Matching ignores case, so
// "HooC" and "hooc" are both RoleHoOC.
func ParseEventRole(s string) (EventRole, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hooc":
		return RoleHoOC, nil
	case "hod":
		return RoleHoD, nil
	case "member":
		return RoleMember, nil
	}
	return "", fmt.Errorf("unknown event role %q", s)
}

// Valid reports whether r is one of the known roles.
func (r EventRole) Valid() bool {
	return r == RoleHoOC || r == RoleHoD || r == RoleMember
}

// EventMember is one user's participation in one event.
type EventMember struct {
	ID           uuid.UUID  `json:"id"`
	EventID      uuid.UUID  `json:"eventId"`
	UserID       uuid.UUID  `json:"userId"`
	Role         EventRole  `json:"role"`
	DepartmentID *uuid.UUID `json:"departmentId"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// InDepartment reports whether the member belongs to departmentID.
func (m EventMember) InDepartment(departmentID uuid.UUID) bool {
	return m.DepartmentID != nil && *m.DepartmentID == departmentID
}

// MemberView is an EventMember with the user's display fields.
type MemberView struct {
	EventMember
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}
