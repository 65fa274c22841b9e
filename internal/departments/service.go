// Package departments implements department management for an event and the
// rules for who may move members in and out of a department.
//
// Roles:
//   - HoOC manages every department of the event and is never inside one.
//   - HoD manages the members of their own department only.
//   - Member has read access.
//
// A department has at most one HoD. The HoD's EventMember row points at the
// department it leads, and the department's leader_id points back at the user.
package departments

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/myfevent/backend/internal/models"
	"github.com/myfevent/backend/pkg/apperror"
	"github.com/myfevent/backend/pkg/response"
)

// Realtime event names published to the event room.
const (
	EventCreated       = "department.created"
	EventUpdated       = "department.updated"
	EventDeleted       = "department.deleted"
	EventMemberAdded   = "department.member_added"
	EventMemberRemoved = "department.member_removed"
	EventHoDChanged    = "department.hod_changed"
)

const (
	defaultPage  = 1
	defaultLimit = 20
	maxLimit     = 100
	maxPage      = math.MaxInt32
)

// ErrDuplicateName is returned by stores when a department name is already
// used within the event.
var ErrDuplicateName = errors.New("department name already exists")

// CreateInput is the body of a create request.
type CreateInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Service evaluates department rules and orchestrates the store writes.
type Service struct {
	store     Store
	events    EventStore
	users     UserStore
	members   MemberStore
	notifier  Notifier
	publisher Publisher
	archiver  Archiver
	logger    *zap.Logger
}

// NewService creates a department service.
func NewService(store Store, events EventStore, users UserStore, members MemberStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, events: events, users: users, members: members, logger: logger}
}

// SetNotifier sets the member-joined notifier.
func (s *Service) SetNotifier(n Notifier) { s.notifier = n }

// SetPublisher sets the realtime publisher.
func (s *Service) SetPublisher(p Publisher) { s.publisher = p }

// SetArchiver sets the archive written before a department is deleted.
func (s *Service) SetArchiver(a Archiver) { s.archiver = a }

type failFunc func(error) error

func failWith(msg string) failFunc {
	return func(err error) error { return apperror.Internal(msg, err) }
}

// roleIn returns the caller's role in eventID, or "" when the caller has none.
func roleIn(caller *models.EventMember, eventID uuid.UUID) models.EventRole {
	if caller == nil || caller.EventID != eventID {
		return ""
	}
	return caller.Role
}

// bodyID parses an id taken from a request body. present is false for a
// missing value; a malformed value parses to uuid.Nil, which matches nothing.
func bodyID(raw string) (id uuid.UUID, present bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, true
	}
	return id, true
}

func (s *Service) requireEvent(ctx context.Context, eventID uuid.UUID, notFound string, fail failFunc) error {
	ok, err := s.events.Exists(ctx, eventID)
	if err != nil {
		return fail(err)
	}
	if !ok {
		return apperror.NotFound(notFound)
	}
	return nil
}

func (s *Service) requireDepartment(ctx context.Context, eventID, departmentID uuid.UUID, notFound string, fail failFunc) (*models.Department, error) {
	d, err := s.store.GetInEvent(ctx, eventID, departmentID)
	if err != nil {
		return nil, fail(err)
	}
	if d == nil {
		return nil, apperror.NotFound(notFound)
	}
	return d, nil
}

func (s *Service) publish(eventID uuid.UUID, event string, payload interface{}) {
	if s.publisher != nil {
		s.publisher.PublishEvent(eventID, event, payload)
	}
}

// Create adds a department to the event. Only the HoOC may create one.
func (s *Service) Create(ctx context.Context, caller *models.EventMember, eventID uuid.UUID, in CreateInput) (*models.Department, error) {
	fail := failWith(msgCreateFailed)
	if err := s.requireEvent(ctx, eventID, msgEventNotFound, fail); err != nil {
		return nil, err
	}
	if roleIn(caller, eventID) != models.RoleHoOC {
		return nil, apperror.Forbidden(msgCreateForbidden)
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperror.Validation(msgNameRequired)
	}
	existing, err := s.store.FindByName(ctx, eventID, name)
	if err != nil {
		return nil, fail(err)
	}
	if existing != nil {
		return nil, apperror.Conflict(msgNameExists)
	}

	d := &models.Department{EventID: eventID, Name: name, Description: strings.TrimSpace(in.Description)}
	if err := s.store.Create(ctx, d); err != nil {
		if errors.Is(err, ErrDuplicateName) {
			return nil, apperror.Conflict(msgNameExists)
		}
		return nil, fail(err)
	}
	s.publish(eventID, EventCreated, d)
	return d, nil
}

// AddMember moves an event member into the department, keeping their role.
// The HoOC may fill any department; a HoD only their own.
func (s *Service) AddMember(ctx context.Context, caller *models.EventMember, eventID, departmentID uuid.UUID, rawMemberID string) (*models.EventMember, error) {
	role := roleIn(caller, eventID)
	if role != models.RoleHoOC && role != models.RoleHoD {
		return nil, apperror.Forbidden(msgAddForbidden)
	}
	fail := failWith(msgAddFailed)
	if err := s.requireEvent(ctx, eventID, msgEventNotFound, fail); err != nil {
		return nil, err
	}
	if _, err := s.requireDepartment(ctx, eventID, departmentID, msgDepartmentNotFound, fail); err != nil {
		return nil, err
	}
	if role == models.RoleHoD && !caller.InDepartment(departmentID) {
		return nil, apperror.Forbidden(msgInsufficient)
	}

	memberID, ok := bodyID(rawMemberID)
	if !ok {
		return nil, apperror.Validation(msgMemberIDRequired)
	}
	target, err := s.members.GetByID(ctx, memberID)
	if err != nil {
		return nil, fail(err)
	}
	if target == nil || target.EventID != eventID {
		return nil, apperror.NotFound(msgMemberNotFound)
	}
	if target.Role == models.RoleHoOC {
		return nil, apperror.Conflict(msgMoveHoOC)
	}
	if target.Role == models.RoleHoD && !target.InDepartment(departmentID) {
		return nil, apperror.Conflict(msgHoDElsewhere)
	}

	updated, err := s.members.AssignDepartment(ctx, target.ID, departmentID, target.Role)
	if err != nil {
		return nil, fail(err)
	}
	if s.notifier != nil {
		s.notifier.NotifyMemberJoined(ctx, eventID, departmentID, updated.ID)
	}
	s.publish(eventID, EventMemberAdded, updated)
	return updated, nil
}

// RemoveMember takes a member out of the department. A HoD must be replaced
// before they can be removed.
func (s *Service) RemoveMember(ctx context.Context, caller *models.EventMember, eventID, departmentID uuid.UUID, rawMemberID string) error {
	fail := failWith(msgRemoveFailed)
	if err := s.requireEvent(ctx, eventID, msgEventNotFound, fail); err != nil {
		return err
	}
	if _, err := s.requireDepartment(ctx, eventID, departmentID, msgDepartmentNotFound, fail); err != nil {
		return err
	}
	role := roleIn(caller, eventID)
	if role != models.RoleHoOC && !(role == models.RoleHoD && caller.InDepartment(departmentID)) {
		return apperror.Forbidden(msgInsufficient)
	}

	memberID, err := uuid.Parse(strings.TrimSpace(rawMemberID))
	if err != nil {
		return apperror.NotFound(msgNotInDepartment)
	}
	target, err := s.members.GetByID(ctx, memberID)
	if err != nil {
		return fail(err)
	}
	if target == nil || target.EventID != eventID || !target.InDepartment(departmentID) {
		return apperror.NotFound(msgNotInDepartment)
	}
	if target.Role == models.RoleHoOC {
		return apperror.Conflict(msgRemoveHoOC)
	}
	if target.Role == models.RoleHoD {
		return apperror.Conflict(msgRemoveHoD)
	}

	updated, err := s.members.ClearDepartment(ctx, target.ID)
	if err != nil {
		return fail(err)
	}
	s.publish(eventID, EventMemberRemoved, map[string]interface{}{
		"departmentId": departmentID,
		"member":       updated,
	})
	return nil
}

// AssignHoD makes a platform user the department's HoD. The user need not be
// an event member yet; a membership is created when missing.
func (s *Service) AssignHoD(ctx context.Context, caller *models.EventMember, eventID, departmentID uuid.UUID, rawUserID string) (*models.Department, error) {
	userID, ok := bodyID(rawUserID)
	if !ok {
		return nil, apperror.Validation(msgUserIDRequired)
	}
	fail := failWith(msgAssignFailed)
	if err := s.requireEvent(ctx, eventID, msgEventNotFound, fail); err != nil {
		return nil, err
	}
	if _, err := s.requireDepartment(ctx, eventID, departmentID, msgDepartmentNotFound, fail); err != nil {
		return nil, err
	}
	if roleIn(caller, eventID) != models.RoleHoOC {
		return nil, apperror.Forbidden(msgAssignForbidden)
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fail(err)
	}
	if user == nil {
		return nil, apperror.NotFound(msgUserNotFound)
	}
	existing, err := s.members.EventMembership(ctx, eventID, userID)
	if err != nil {
		return nil, fail(err)
	}
	if existing != nil && existing.Role == models.RoleHoOC {
		return nil, apperror.Conflict(msgAssignHoOC)
	}

	return s.assignLeader(ctx, eventID, departmentID, user, fail)
}

// ChangeHoD hands leadership to another member of the department. The
// previous HoD stays in the department as a Member.
func (s *Service) ChangeHoD(ctx context.Context, caller *models.EventMember, eventID, departmentID uuid.UUID, rawNewHoDID string) (*models.Department, error) {
	newHoDID, ok := bodyID(rawNewHoDID)
	if !ok {
		return nil, apperror.Validation(msgNewHoDRequired)
	}
	fail := func(err error) error {
		return apperror.Internal(msgChangeFailedPrefix+err.Error(), err)
	}
	if err := s.requireEvent(ctx, eventID, msgEventNotFound, fail); err != nil {
		return nil, err
	}
	if _, err := s.requireDepartment(ctx, eventID, departmentID, msgDepartmentNotFound, fail); err != nil {
		return nil, err
	}
	if roleIn(caller, eventID) != models.RoleHoOC {
		return nil, apperror.Forbidden(msgChangeForbidden)
	}
	user, err := s.users.GetByID(ctx, newHoDID)
	if err != nil {
		return nil, fail(err)
	}
	if user == nil {
		return nil, apperror.NotFound(msgNewHoDNotFound)
	}
	isMember, err := s.members.IsUserMemberOfDepartment(ctx, eventID, departmentID, newHoDID)
	if err != nil {
		return nil, fail(err)
	}
	if !isMember {
		return nil, apperror.Validation(msgNewHoDNotMember)
	}

	return s.assignLeader(ctx, eventID, departmentID, user, fail)
}

func (s *Service) assignLeader(ctx context.Context, eventID, departmentID uuid.UUID, user *models.User, fail failFunc) (*models.Department, error) {
	d, err := s.store.AssignLeader(ctx, eventID, departmentID, user.ID)
	if err != nil {
		return nil, fail(err)
	}
	s.logger.Info("department leader assigned",
		zap.String("event_id", eventID.String()),
		zap.String("department_id", departmentID.String()),
		zap.String("user_id", user.ID.String()),
	)
	s.publish(eventID, EventHoDChanged, models.NewDepartmentView(*d, user.FullName, 0))
	return d, nil
}

// Edit applies a partial update. Names stay unique within the event.
func (s *Service) Edit(ctx context.Context, caller *models.EventMember, eventID, departmentID uuid.UUID, patch Patch) (*models.Department, error) {
	fail := failWith(msgEditFailed)
	if err := s.requireEvent(ctx, eventID, msgEventNotFoundVI, fail); err != nil {
		return nil, err
	}
	d, err := s.requireDepartment(ctx, eventID, departmentID, msgDepartmentNotFoundVI, fail)
	if err != nil {
		return nil, err
	}
	if roleIn(caller, eventID) != models.RoleHoOC {
		return nil, apperror.Forbidden(msgEditForbidden)
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, apperror.Validation(msgNameBlank)
		}
		other, err := s.store.FindByName(ctx, eventID, name)
		if err != nil {
			return nil, fail(err)
		}
		if other != nil && other.ID != d.ID {
			return nil, apperror.Conflict(msgNameTaken)
		}
		patch.Name = &name
	}
	if patch.Name == nil && patch.Description == nil {
		return d, nil
	}

	updated, err := s.store.Update(ctx, departmentID, patch)
	if err != nil {
		if errors.Is(err, ErrDuplicateName) {
			return nil, apperror.Conflict(msgNameTaken)
		}
		return nil, fail(err)
	}
	s.publish(eventID, EventUpdated, updated)
	return updated, nil
}

// Delete removes the department. Its members are unassigned and a HoD goes
// back to Member in the same transaction.
func (s *Service) Delete(ctx context.Context, caller *models.EventMember, eventID, departmentID uuid.UUID) error {
	fail := failWith(msgDeleteFailed)
	if err := s.requireEvent(ctx, eventID, msgEventNotFoundVI, fail); err != nil {
		return err
	}
	d, err := s.requireDepartment(ctx, eventID, departmentID, msgDepartmentNotFoundVI, fail)
	if err != nil {
		return err
	}
	if roleIn(caller, eventID) != models.RoleHoOC {
		return apperror.Forbidden(msgDeleteForbidden)
	}

	members, err := s.members.ListByDepartment(ctx, departmentID)
	if err != nil {
		return fail(err)
	}
	if s.archiver != nil {
		if err := s.archiver.ArchiveDepartment(ctx, d, members); err != nil {
			s.logger.Warn("archive department failed", zap.String("department_id", departmentID.String()), zap.Error(err))
		}
	}
	if err := s.store.DeleteCascade(ctx, departmentID); err != nil {
		return fail(err)
	}
	s.logger.Info("department deleted",
		zap.String("event_id", eventID.String()),
		zap.String("department_id", departmentID.String()),
		zap.Int("unassigned", len(members)),
	)
	s.publish(eventID, EventDeleted, map[string]uuid.UUID{"id": departmentID})
	return nil
}

// NormalizeListQuery applies the list defaults: page in [1,maxPage], limit in
// [1,100] with 20 when unset, search trimmed.
func NormalizeListQuery(page, limit int, search string) ListQuery {
	if page == 0 {
		page = defaultPage
	}
	if page < 1 {
		page = 1
	}
	if page > maxPage {
		page = maxPage
	}
	if limit == 0 {
		limit = defaultLimit
	}
	if limit < 1 {
		limit = 1
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return ListQuery{Page: page, Limit: limit, Search: strings.TrimSpace(search)}
}

// TotalPages is ceil(total/limit).
func TotalPages(total, limit int) int {
	if limit <= 0 {
		return 0
	}
	return int(math.Ceil(float64(total) / float64(limit)))
}

// requireParticipant rejects callers without a role in eventID. Read
// operations are open to every participant and to nobody else.
func requireParticipant(caller *models.EventMember, eventID uuid.UUID) error {
	if roleIn(caller, eventID) == "" {
		return apperror.Forbidden(msgNotParticipant)
	}
	return nil
}

// List returns one page of the event's departments with member counts and
// leader names.
func (s *Service) List(ctx context.Context, caller *models.EventMember, eventID uuid.UUID, q ListQuery) ([]models.DepartmentView, response.Pagination, error) {
	if err := requireParticipant(caller, eventID); err != nil {
		return nil, response.Pagination{}, err
	}
	q = NormalizeListQuery(q.Page, q.Limit, q.Search)
	items, total, err := s.store.List(ctx, eventID, q)
	if err != nil {
		return nil, response.Pagination{}, apperror.Internal(msgListFailed, err)
	}
	if items == nil {
		items = []models.DepartmentView{}
	}
	return items, response.Pagination{
		Page:       q.Page,
		Limit:      q.Limit,
		Total:      total,
		TotalPages: TotalPages(total, q.Limit),
	}, nil
}

// Detail returns one department with its member count and leader name.
func (s *Service) Detail(ctx context.Context, caller *models.EventMember, eventID, departmentID uuid.UUID) (*models.DepartmentView, error) {
	if err := requireParticipant(caller, eventID); err != nil {
		return nil, err
	}
	fail := failWith(msgDetailFailed)
	d, err := s.requireDepartment(ctx, eventID, departmentID, msgDepartmentNotFound, fail)
	if err != nil {
		return nil, err
	}
	count, err := s.members.CountByDepartmentExcludingHoOC(ctx, departmentID)
	if err != nil {
		return nil, fail(err)
	}
	var leaderName string
	if d.LeaderID != nil {
		leader, err := s.users.GetByID(ctx, *d.LeaderID)
		if err != nil {
			return nil, fail(err)
		}
		if leader != nil {
			leaderName = leader.FullName
		}
	}
	view := models.NewDepartmentView(*d, leaderName, count)
	return &view, nil
}

// Members lists the department's members, HoD first.
func (s *Service) Members(ctx context.Context, caller *models.EventMember, eventID, departmentID uuid.UUID) ([]models.MemberView, error) {
	if err := requireParticipant(caller, eventID); err != nil {
		return nil, err
	}
	fail := failWith(msgMembersFailed)
	if _, err := s.requireDepartment(ctx, eventID, departmentID, msgDepartmentNotFound, fail); err != nil {
		return nil, err
	}
	list, err := s.members.ListByDepartment(ctx, departmentID)
	if err != nil {
		return nil, fail(err)
	}
	if list == nil {
		list = []models.MemberView{}
	}
	return list, nil
}
