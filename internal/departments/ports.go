package departments

import (
	"context"

	"github.com/google/uuid"

	"github.com/myfevent/backend/internal/models"
)

// EventStore answers whether an event exists.
type EventStore interface {
	Exists(ctx context.Context, eventID uuid.UUID) (bool, error)
}

// UserStore looks up platform users. GetByID returns nil, nil when absent.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// MemberStore reads and writes EventMember rows. Lookups return nil, nil when absent.
type MemberStore interface {
	EventMembership(ctx context.Context, eventID, userID uuid.UUID) (*models.EventMember, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.EventMember, error)
	IsUserMemberOfDepartment(ctx context.Context, eventID, departmentID, userID uuid.UUID) (bool, error)
	CountByDepartmentExcludingHoOC(ctx context.Context, departmentID uuid.UUID) (int, error)
	ListByDepartment(ctx context.Context, departmentID uuid.UUID) ([]models.MemberView, error)
	AssignDepartment(ctx context.Context, memberID, departmentID uuid.UUID, role models.EventRole) (*models.EventMember, error)
	ClearDepartment(ctx context.Context, memberID uuid.UUID) (*models.EventMember, error)
}

// Store persists departments. AssignLeader and DeleteCascade touch both
// departments and event_members and must be atomic.
type Store interface {
	GetInEvent(ctx context.Context, eventID, id uuid.UUID) (*models.Department, error)
	FindByName(ctx context.Context, eventID uuid.UUID, name string) (*models.Department, error)
	Create(ctx context.Context, d *models.Department) error
	Update(ctx context.Context, id uuid.UUID, patch Patch) (*models.Department, error)
	List(ctx context.Context, eventID uuid.UUID, q ListQuery) ([]models.DepartmentView, int, error)
	AssignLeader(ctx context.Context, eventID, departmentID, userID uuid.UUID) (*models.Department, error)
	DeleteCascade(ctx context.Context, departmentID uuid.UUID) error
}

// Notifier tells the added member about their new department. Delivery is
// fire-and-forget: implementations log their own failures.
type Notifier interface {
	NotifyMemberJoined(ctx context.Context, eventID, departmentID, memberID uuid.UUID)
}

// Publisher pushes department changes to clients watching the event.
type Publisher interface {
	PublishEvent(eventID uuid.UUID, event string, payload interface{})
}

// Archiver keeps a snapshot of a department about to be deleted.
type Archiver interface {
	ArchiveDepartment(ctx context.Context, d *models.Department, members []models.MemberView) error
}

// Patch is a partial department update; nil fields are left alone.
type Patch struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// ListQuery is a normalized list request.
type ListQuery struct {
	Page   int
	Limit  int
	Search string
}

// Offset is the number of rows to skip.
func (q ListQuery) Offset() int { return (q.Page - 1) * q.Limit }
