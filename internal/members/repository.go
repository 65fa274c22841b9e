// Package members persists EventMember rows: one per (event, user) with the
// member's role and optional department.
package members

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/myfevent/backend/internal/models"
)

const memberColumns = `id, event_id, user_id, role, department_id, created_at, updated_at`

// Repository handles event_members persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an event members repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanMember(row pgx.Row) (*models.EventMember, error) {
	var m models.EventMember
	var role string
	if err := row.Scan(&m.ID, &m.EventID, &m.UserID, &role, &m.DepartmentID, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	parsed, err := models.ParseEventRole(role)
	if err != nil {
		return nil, err
	}
	m.Role = parsed
	return &m, nil
}

func one(row pgx.Row, op string) (*models.EventMember, error) {
	m, err := scanMember(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return m, nil
}

// EventMembership returns the caller's membership in an event, or nil when the
// user does not participate in it.
func (r *Repository) EventMembership(ctx context.Context, eventID, userID uuid.UUID) (*models.EventMember, error) {
	q := `SELECT ` + memberColumns + ` FROM event_members WHERE event_id = $1 AND user_id = $2`
	return one(r.pool.QueryRow(ctx, q, eventID, userID), "get membership")
}

// GetByID returns an event member by ID, or nil.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.EventMember, error) {
	q := `SELECT ` + memberColumns + ` FROM event_members WHERE id = $1`
	return one(r.pool.QueryRow(ctx, q, id), "get member")
}

// IsUserMemberOfDepartment reports whether the user's membership in the event
// points at the department.
func (r *Repository) IsUserMemberOfDepartment(ctx context.Context, eventID, departmentID, userID uuid.UUID) (bool, error) {
	const q = `SELECT EXISTS(SELECT 1 FROM event_members WHERE event_id = $1 AND department_id = $2 AND user_id = $3)`
	var ok bool
	if err := r.pool.QueryRow(ctx, q, eventID, departmentID, userID).Scan(&ok); err != nil {
		return false, fmt.Errorf("member of department: %w", err)
	}
	return ok, nil
}

// CountByDepartmentExcludingHoOC counts the department's members, HoOC excluded.
func (r *Repository) CountByDepartmentExcludingHoOC(ctx context.Context, departmentID uuid.UUID) (int, error) {
	const q = `SELECT COUNT(*) FROM event_members WHERE department_id = $1 AND role <> 'HoOC'`
	var n int
	if err := r.pool.QueryRow(ctx, q, departmentID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count department members: %w", err)
	}
	return n, nil
}

// ListByDepartment returns the department's members with user details, HoD first.
func (r *Repository) ListByDepartment(ctx context.Context, departmentID uuid.UUID) ([]models.MemberView, error) {
	const q = `SELECT em.id, em.event_id, em.user_id, em.role, em.department_id, em.created_at, em.updated_at,
		COALESCE(u.full_name, ''), COALESCE(u.email, '')
		FROM event_members em
		INNER JOIN users u ON u.id = em.user_id
		WHERE em.department_id = $1
		ORDER BY (em.role = 'HoD') DESC, u.full_name ASC`
	rows, err := r.pool.Query(ctx, q, departmentID)
	if err != nil {
		return nil, fmt.Errorf("list department members: %w", err)
	}
	defer rows.Close()
	var list []models.MemberView
	for rows.Next() {
		var v models.MemberView
		var role string
		if err := rows.Scan(&v.ID, &v.EventID, &v.UserID, &role, &v.DepartmentID, &v.CreatedAt, &v.UpdatedAt, &v.FullName, &v.Email); err != nil {
			return nil, err
		}
		if v.Role, err = models.ParseEventRole(role); err != nil {
			return nil, err
		}
		list = append(list, v)
	}
	return list, rows.Err()
}

// AssignDepartment points the member at departmentID and writes role back unchanged.
func (r *Repository) AssignDepartment(ctx context.Context, memberID, departmentID uuid.UUID, role models.EventRole) (*models.EventMember, error) {
	q := `UPDATE event_members SET department_id = $2, role = $3, updated_at = NOW()
		WHERE id = $1 RETURNING ` + memberColumns
	m, err := one(r.pool.QueryRow(ctx, q, memberID, departmentID, string(role)), "assign department")
	if err == nil && m == nil {
		return nil, fmt.Errorf("assign department: member %s vanished", memberID)
	}
	return m, err
}

// ClearDepartment removes the member from their department, keeping the role.
func (r *Repository) ClearDepartment(ctx context.Context, memberID uuid.UUID) (*models.EventMember, error) {
	q := `UPDATE event_members SET department_id = NULL, updated_at = NOW()
		WHERE id = $1 RETURNING ` + memberColumns
	m, err := one(r.pool.QueryRow(ctx, q, memberID), "clear department")
	if err == nil && m == nil {
		return nil, fmt.Errorf("clear department: member %s vanished", memberID)
	}
	return m, err
}
