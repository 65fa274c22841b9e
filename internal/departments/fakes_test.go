package departments

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/myfevent/backend/internal/models"
)

var errStore = errors.New("connection reset")

// world is an in-memory backing for every store port.
type world struct {
	mu      sync.Mutex
	events  map[uuid.UUID]bool
	users   map[uuid.UUID]*models.User
	depts   map[uuid.UUID]*models.Department
	members map[uuid.UUID]*models.EventMember
	fail    map[string]error

	writes    int
	assigned  []assignCall
	notified  []notifyCall
	published []string
	archived  []uuid.UUID
	archErr   error
}

type assignCall struct {
	MemberID     uuid.UUID
	DepartmentID uuid.UUID
	Role         models.EventRole
}

type notifyCall struct {
	EventID      uuid.UUID
	DepartmentID uuid.UUID
	MemberID     uuid.UUID
}

func newWorld() *world {
	return &world{
		events:  map[uuid.UUID]bool{},
		users:   map[uuid.UUID]*models.User{},
		depts:   map[uuid.UUID]*models.Department{},
		members: map[uuid.UUID]*models.EventMember{},
		fail:    map[string]error{},
	}
}

func (w *world) addEvent() uuid.UUID {
	id := uuid.New()
	w.events[id] = true
	return id
}

func (w *world) addUser(name string) *models.User {
	u := &models.User{ID: uuid.New(), FullName: name, Email: strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@example.com"}
	w.users[u.ID] = u
	return u
}

func (w *world) addDepartment(eventID uuid.UUID, name string) *models.Department {
	d := &models.Department{ID: uuid.New(), EventID: eventID, Name: name, CreatedAt: time.Now()}
	w.depts[d.ID] = d
	return d
}

func (w *world) addMember(eventID, userID uuid.UUID, role models.EventRole, dept *models.Department) *models.EventMember {
	m := &models.EventMember{ID: uuid.New(), EventID: eventID, UserID: userID, Role: role}
	if dept != nil {
		id := dept.ID
		m.DepartmentID = &id
		if role == models.RoleHoD {
			uid := userID
			dept.LeaderID = &uid
		}
	}
	w.members[m.ID] = m
	return m
}

func (w *world) member(id uuid.UUID) models.EventMember {
	w.mu.Lock()
	defer w.mu.Unlock()
	return *w.members[id]
}

func (w *world) errFor(op string) error {
	return w.fail[op]
}

func copyMember(m *models.EventMember) *models.EventMember {
	c := *m
	if m.DepartmentID != nil {
		id := *m.DepartmentID
		c.DepartmentID = &id
	}
	return &c
}

func copyDept(d *models.Department) *models.Department {
	c := *d
	if d.LeaderID != nil {
		id := *d.LeaderID
		c.LeaderID = &id
	}
	return &c
}

type eventStore struct{ *world }

func (s eventStore) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	if err := s.errFor("events.Exists"); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events[id], nil
}

type userStore struct{ *world }

func (s userStore) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	if err := s.errFor("users.GetByID"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	c := *u
	return &c, nil
}

type memberStore struct{ *world }

func (s memberStore) EventMembership(_ context.Context, eventID, userID uuid.UUID) (*models.EventMember, error) {
	if err := s.errFor("members.EventMembership"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.members {
		if m.EventID == eventID && m.UserID == userID {
			return copyMember(m), nil
		}
	}
	return nil, nil
}

func (s memberStore) GetByID(_ context.Context, id uuid.UUID) (*models.EventMember, error) {
	if err := s.errFor("members.GetByID"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[id]
	if !ok {
		return nil, nil
	}
	return copyMember(m), nil
}

func (s memberStore) IsUserMemberOfDepartment(_ context.Context, eventID, departmentID, userID uuid.UUID) (bool, error) {
	if err := s.errFor("members.IsUserMemberOfDepartment"); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.members {
		if m.EventID == eventID && m.UserID == userID && m.InDepartment(departmentID) {
			return true, nil
		}
	}
	return false, nil
}

func (s memberStore) CountByDepartmentExcludingHoOC(_ context.Context, departmentID uuid.UUID) (int, error) {
	if err := s.errFor("members.Count"); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countLocked(departmentID), nil
}

func (w *world) countLocked(departmentID uuid.UUID) int {
	n := 0
	for _, m := range w.members {
		if m.InDepartment(departmentID) && m.Role != models.RoleHoOC {
			n++
		}
	}
	return n
}

func (s memberStore) ListByDepartment(_ context.Context, departmentID uuid.UUID) ([]models.MemberView, error) {
	if err := s.errFor("members.ListByDepartment"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var list []models.MemberView
	for _, m := range s.members {
		if !m.InDepartment(departmentID) {
			continue
		}
		v := models.MemberView{EventMember: *copyMember(m)}
		if u, ok := s.users[m.UserID]; ok {
			v.FullName, v.Email = u.FullName, u.Email
		}
		list = append(list, v)
	}
	sort.Slice(list, func(i, j int) bool {
		hi, hj := list[i].Role == models.RoleHoD, list[j].Role == models.RoleHoD
		if hi != hj {
			return hi
		}
		return list[i].FullName < list[j].FullName
	})
	return list, nil
}

func (s memberStore) AssignDepartment(_ context.Context, memberID, departmentID uuid.UUID, role models.EventRole) (*models.EventMember, error) {
	if err := s.errFor("members.AssignDepartment"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	s.assigned = append(s.assigned, assignCall{MemberID: memberID, DepartmentID: departmentID, Role: role})
	m := s.members[memberID]
	id := departmentID
	m.DepartmentID = &id
	m.Role = role
	return copyMember(m), nil
}

func (s memberStore) ClearDepartment(_ context.Context, memberID uuid.UUID) (*models.EventMember, error) {
	if err := s.errFor("members.ClearDepartment"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	m := s.members[memberID]
	m.DepartmentID = nil
	return copyMember(m), nil
}

type deptStore struct{ *world }

func (s deptStore) GetInEvent(_ context.Context, eventID, id uuid.UUID) (*models.Department, error) {
	if err := s.errFor("depts.GetInEvent"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.depts[id]
	if !ok || d.EventID != eventID {
		return nil, nil
	}
	return copyDept(d), nil
}

func (s deptStore) FindByName(_ context.Context, eventID uuid.UUID, name string) (*models.Department, error) {
	if err := s.errFor("depts.FindByName"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.depts {
		if d.EventID == eventID && strings.EqualFold(d.Name, name) {
			return copyDept(d), nil
		}
	}
	return nil, nil
}

func (s deptStore) Create(_ context.Context, d *models.Department) error {
	if err := s.errFor("depts.Create"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	d.ID = uuid.New()
	d.CreatedAt = time.Now()
	d.UpdatedAt = d.CreatedAt
	s.depts[d.ID] = copyDept(d)
	return nil
}

func (s deptStore) Update(_ context.Context, id uuid.UUID, patch Patch) (*models.Department, error) {
	if err := s.errFor("depts.Update"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	d := s.depts[id]
	if patch.Name != nil {
		d.Name = *patch.Name
	}
	if patch.Description != nil {
		d.Description = *patch.Description
	}
	return copyDept(d), nil
}

func (s deptStore) List(_ context.Context, eventID uuid.UUID, q ListQuery) ([]models.DepartmentView, int, error) {
	if err := s.errFor("depts.List"); err != nil {
		return nil, 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []*models.Department
	for _, d := range s.depts {
		if d.EventID != eventID {
			continue
		}
		if q.Search != "" && !strings.Contains(strings.ToLower(d.Name), strings.ToLower(q.Search)) {
			continue
		}
		all = append(all, d)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	total := len(all)
	start := q.Offset()
	if start > total {
		start = total
	}
	end := start + q.Limit
	if end > total {
		end = total
	}
	var out []models.DepartmentView
	for _, d := range all[start:end] {
		var leader string
		if d.LeaderID != nil {
			if u, ok := s.users[*d.LeaderID]; ok {
				leader = u.FullName
			}
		}
		out = append(out, models.NewDepartmentView(*copyDept(d), leader, s.countLocked(d.ID)))
	}
	return out, total, nil
}

func (s deptStore) AssignLeader(_ context.Context, eventID, departmentID, userID uuid.UUID) (*models.Department, error) {
	if err := s.errFor("depts.AssignLeader"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	d := s.depts[departmentID]
	if d.LeaderID != nil && *d.LeaderID != userID {
		for _, m := range s.members {
			if m.EventID == eventID && m.UserID == *d.LeaderID && m.Role == models.RoleHoD {
				m.Role = models.RoleMember
			}
		}
	}
	for _, other := range s.depts {
		if other.EventID == eventID && other.ID != departmentID && other.LeaderID != nil && *other.LeaderID == userID {
			other.LeaderID = nil
		}
	}
	var found bool
	for _, m := range s.members {
		if m.EventID == eventID && m.UserID == userID {
			id := departmentID
			m.Role, m.DepartmentID = models.RoleHoD, &id
			found = true
		}
	}
	if !found {
		id := departmentID
		m := &models.EventMember{ID: uuid.New(), EventID: eventID, UserID: userID, Role: models.RoleHoD, DepartmentID: &id}
		s.members[m.ID] = m
	}
	uid := userID
	d.LeaderID = &uid
	return copyDept(d), nil
}

func (s deptStore) DeleteCascade(_ context.Context, departmentID uuid.UUID) error {
	if err := s.errFor("depts.DeleteCascade"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	for _, m := range s.members {
		if m.InDepartment(departmentID) {
			m.DepartmentID = nil
			if m.Role == models.RoleHoD {
				m.Role = models.RoleMember
			}
		}
	}
	delete(s.depts, departmentID)
	return nil
}

type notifier struct{ *world }

func (n notifier) NotifyMemberJoined(_ context.Context, eventID, departmentID, memberID uuid.UUID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notified = append(n.notified, notifyCall{EventID: eventID, DepartmentID: departmentID, MemberID: memberID})
}

type publisher struct{ *world }

func (p publisher) PublishEvent(_ uuid.UUID, event string, _ interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, event)
}

type archiver struct{ *world }

func (a archiver) ArchiveDepartment(_ context.Context, d *models.Department, _ []models.MemberView) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.archived = append(a.archived, d.ID)
	return a.archErr
}

// fixture is one event with two departments:
// Media led by hod (with member1 inside) and Logistics led by hod2.
// HoOC and a free member (member2) have no department.
type fixture struct {
	w   *world
	svc *Service

	eventID   uuid.UUID
	media     *models.Department
	logistics *models.Department

	hooc     *models.EventMember
	hod      *models.EventMember
	hod2     *models.EventMember
	member1  *models.EventMember
	member2  *models.EventMember
	outsider *models.User
}

func newFixture() *fixture {
	w := newWorld()
	f := &fixture{w: w}
	f.eventID = w.addEvent()
	f.media = w.addDepartment(f.eventID, "Media")
	f.logistics = w.addDepartment(f.eventID, "Logistics")

	f.hooc = w.addMember(f.eventID, w.addUser("Head Organizer").ID, models.RoleHoOC, nil)
	f.hod = w.addMember(f.eventID, w.addUser("Media Lead").ID, models.RoleHoD, f.media)
	f.hod2 = w.addMember(f.eventID, w.addUser("Logistics Lead").ID, models.RoleHoD, f.logistics)
	f.member1 = w.addMember(f.eventID, w.addUser("Alice").ID, models.RoleMember, f.media)
	f.member2 = w.addMember(f.eventID, w.addUser("Bob").ID, models.RoleMember, nil)
	f.outsider = w.addUser("Outsider")

	f.svc = NewService(deptStore{w}, eventStore{w}, userStore{w}, memberStore{w}, nil)
	f.svc.SetNotifier(notifier{w})
	f.svc.SetPublisher(publisher{w})
	f.svc.SetArchiver(archiver{w})
	return f
}

func (f *fixture) caller(m *models.EventMember) *models.EventMember {
	return copyMember(m)
}
