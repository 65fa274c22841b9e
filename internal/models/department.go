package models

import (
	"time"

	"github.com/google/uuid"
)

// NoLeaderName is shown in place of the leader name when a department has no HoD.
const NoLeaderName = "Chưa có"

// Department is an organizational unit of one event with at most one HoD.
type Department struct {
	ID          uuid.UUID  `json:"id"`
	EventID     uuid.UUID  `json:"eventId"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	LeaderID    *uuid.UUID `json:"leaderId,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// DepartmentView is a department enriched for list and detail responses.
type DepartmentView struct {
	Department
	LeaderName  string `json:"leaderName"`
	MemberCount int    `json:"memberCount"`
}

// NewDepartmentView builds the view; an empty leaderName becomes NoLeaderName.
func NewDepartmentView(d Department, leaderName string, memberCount int) DepartmentView {
	if leaderName == "" {
		leaderName = NoLeaderName
	}
	return DepartmentView{Department: d, LeaderName: leaderName, MemberCount: memberCount}
}
