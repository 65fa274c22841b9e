package departments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/myfevent/backend/internal/models"
)

const departmentColumns = `id, event_id, name, description, leader_id, created_at, updated_at`

const pgUniqueViolation = "23505"

// Repository handles department persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a department repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanDepartment(row pgx.Row, d *models.Department) error {
	return row.Scan(&d.ID, &d.EventID, &d.Name, &d.Description, &d.LeaderID, &d.CreatedAt, &d.UpdatedAt)
}

func mapWriteErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrDuplicateName
	}
	return fmt.Errorf("%s: %w", op, err)
}

// GetInEvent returns the department when it belongs to the event, or nil.
func (r *Repository) GetInEvent(ctx context.Context, eventID, id uuid.UUID) (*models.Department, error) {
	q := `SELECT ` + departmentColumns + ` FROM departments WHERE id = $1 AND event_id = $2`
	var d models.Department
	err := scanDepartment(r.pool.QueryRow(ctx, q, id, eventID), &d)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get department: %w", err)
	}
	return &d, nil
}

// FindByName looks up a department of the event by name, ignoring case.
func (r *Repository) FindByName(ctx context.Context, eventID uuid.UUID, name string) (*models.Department, error) {
	q := `SELECT ` + departmentColumns + ` FROM departments WHERE event_id = $1 AND lower(name) = lower($2) LIMIT 1`
	var d models.Department
	err := scanDepartment(r.pool.QueryRow(ctx, q, eventID, name), &d)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find department by name: %w", err)
	}
	return &d, nil
}

// Create inserts a department.
func (r *Repository) Create(ctx context.Context, d *models.Department) error {
	const q = `INSERT INTO departments (event_id, name, description)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`
	if err := r.pool.QueryRow(ctx, q, d.EventID, d.Name, d.Description).Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return mapWriteErr("create department", err)
	}
	return nil
}

// Update applies a partial update and returns the stored row.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, patch Patch) (*models.Department, error) {
	q := `UPDATE departments SET
			name = COALESCE($2, name),
			description = COALESCE($3, description),
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + departmentColumns
	var d models.Department
	if err := scanDepartment(r.pool.QueryRow(ctx, q, id, patch.Name, patch.Description), &d); err != nil {
		return nil, mapWriteErr("update department", err)
	}
	return &d, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// List returns one page of the event's departments, newest first, plus the
// total matching count.
func (r *Repository) List(ctx context.Context, eventID uuid.UUID, lq ListQuery) ([]models.DepartmentView, int, error) {
	where := ` WHERE d.event_id = $1`
	args := []interface{}{eventID}
	if lq.Search != "" {
		where += ` AND d.name ILIKE $2`
		args = append(args, "%"+likeEscaper.Replace(lq.Search)+"%")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM departments d`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count departments: %w", err)
	}

	n := len(args)
	q := `SELECT d.id, d.event_id, d.name, d.description, d.leader_id, d.created_at, d.updated_at,
			COALESCE(u.full_name, ''),
			(SELECT COUNT(*) FROM event_members em WHERE em.department_id = d.id AND em.role <> 'HoOC')
		FROM departments d
		LEFT JOIN users u ON u.id = d.leader_id` + where +
		fmt.Sprintf(` ORDER BY d.created_at DESC LIMIT $%d OFFSET $%d`, n+1, n+2)
	args = append(args, lq.Limit, lq.Offset())

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list departments: %w", err)
	}
	defer rows.Close()

	var list []models.DepartmentView
	for rows.Next() {
		var d models.Department
		var leaderName string
		var count int
		if err := rows.Scan(&d.ID, &d.EventID, &d.Name, &d.Description, &d.LeaderID, &d.CreatedAt, &d.UpdatedAt, &leaderName, &count); err != nil {
			return nil, 0, err
		}
		list = append(list, models.NewDepartmentView(d, leaderName, count))
	}
	return list, total, rows.Err()
}

// AssignLeader makes userID the department's HoD in one transaction:
// the previous HoD becomes a Member of the same department, any other
// department the user led loses its leader, and the user's membership is
// created or moved into the department with role HoD.
func (r *Repository) AssignLeader(ctx context.Context, eventID, departmentID, userID uuid.UUID) (*models.Department, error) {
	var d models.Department
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var prev *uuid.UUID
		err := tx.QueryRow(ctx, `SELECT leader_id FROM departments WHERE id = $1 AND event_id = $2 FOR UPDATE`,
			departmentID, eventID).Scan(&prev)
		if err != nil {
			return fmt.Errorf("lock department: %w", err)
		}

		if prev != nil && *prev != userID {
			_, err = tx.Exec(ctx, `UPDATE event_members SET role = 'Member', updated_at = NOW()
				WHERE event_id = $1 AND user_id = $2 AND role = 'HoD'`, eventID, *prev)
			if err != nil {
				return fmt.Errorf("demote previous leader: %w", err)
			}
		}

		_, err = tx.Exec(ctx, `UPDATE departments SET leader_id = NULL, updated_at = NOW()
			WHERE event_id = $1 AND leader_id = $2 AND id <> $3`, eventID, userID, departmentID)
		if err != nil {
			return fmt.Errorf("clear other leaderships: %w", err)
		}

		_, err = tx.Exec(ctx, `INSERT INTO event_members (event_id, user_id, role, department_id)
			VALUES ($1, $2, 'HoD', $3)
			ON CONFLICT (event_id, user_id) DO UPDATE
			SET role = 'HoD', department_id = EXCLUDED.department_id, updated_at = NOW()`,
			eventID, userID, departmentID)
		if err != nil {
			return fmt.Errorf("upsert leader membership: %w", err)
		}

		q := `UPDATE departments SET leader_id = $2, updated_at = NOW() WHERE id = $1 RETURNING ` + departmentColumns
		if err := scanDepartment(tx.QueryRow(ctx, q, departmentID, userID), &d); err != nil {
			return fmt.Errorf("set leader: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// DeleteCascade unassigns every member of the department, demoting its HoD to
// Member, then deletes it.
func (r *Repository) DeleteCascade(ctx context.Context, departmentID uuid.UUID) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `UPDATE event_members
			SET department_id = NULL,
				role = CASE WHEN role = 'HoD' THEN 'Member' ELSE role END,
				updated_at = NOW()
			WHERE department_id = $1`, departmentID)
		if err != nil {
			return fmt.Errorf("unassign members: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM departments WHERE id = $1`, departmentID); err != nil {
			return fmt.Errorf("delete department: %w", err)
		}
		return nil
	})
}
