// Package worker runs background jobs taken from the Redis queue.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/myfevent/backend/internal/models"
	"github.com/myfevent/backend/pkg/queue"
)

// JobSource hands out jobs and takes back failed ones.
type JobSource interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// MemberLookup loads event members.
type MemberLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.EventMember, error)
}

// DepartmentLookup loads a department of an event.
type DepartmentLookup interface {
	GetInEvent(ctx context.Context, eventID, id uuid.UUID) (*models.Department, error)
}

// NotificationWriter stores notifications.
type NotificationWriter interface {
	Create(ctx context.Context, n *models.Notification) error
}

// Publisher pushes events to an event room.
type Publisher interface {
	PublishEvent(eventID uuid.UUID, event string, payload interface{})
}

// NotificationProcessor turns member_joined jobs into notifications for the
// added member.
type NotificationProcessor struct {
	members       MemberLookup
	departments   DepartmentLookup
	notifications NotificationWriter
	publisher     Publisher
	jobs          JobSource
	backoff       time.Duration
	logger        *zap.Logger
}

// NewNotificationProcessor creates a notification processor. backoff <= 0
// uses queue.RetryBackoff.
func NewNotificationProcessor(members MemberLookup, departments DepartmentLookup, notifications NotificationWriter, publisher Publisher, jobs JobSource, backoff time.Duration, logger *zap.Logger) *NotificationProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if backoff <= 0 {
		backoff = queue.RetryBackoff
	}
	return &NotificationProcessor{
		members:       members,
		departments:   departments,
		notifications: notifications,
		publisher:     publisher,
		jobs:          jobs,
		backoff:       backoff,
		logger:        logger,
	}
}

// Process executes one job. A member or department deleted since the job was
// queued drops the job without error.
func (p *NotificationProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeMemberJoined {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.MemberJoinedPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	member, err := p.members.GetByID(ctx, payload.MemberID)
	if err != nil {
		return fmt.Errorf("load member: %w", err)
	}
	if member == nil {
		p.logger.Info("member gone, dropping notification", zap.String("member_id", payload.MemberID.String()))
		return nil
	}
	dept, err := p.departments.GetInEvent(ctx, payload.EventID, payload.DepartmentID)
	if err != nil {
		return fmt.Errorf("load department: %w", err)
	}
	if dept == nil {
		p.logger.Info("department gone, dropping notification", zap.String("department_id", payload.DepartmentID.String()))
		return nil
	}

	data, err := json.Marshal(map[string]uuid.UUID{
		"departmentId": dept.ID,
		"memberId":     member.ID,
	})
	if err != nil {
		return fmt.Errorf("marshal data: %w", err)
	}
	n := &models.Notification{
		UserID:  member.UserID,
		EventID: payload.EventID,
		Type:    models.NotificationMemberJoined,
		Title:   "Added to " + dept.Name,
		Body:    fmt.Sprintf("You have been added to department %s as %s.", dept.Name, member.Role),
		Data:    data,
	}
	if err := p.notifications.Create(ctx, n); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	if p.publisher != nil {
		p.publisher.PublishEvent(payload.EventID, string(models.NotificationMemberJoined), n)
	}
	p.logger.Info("member joined notification created",
		zap.String("notification_id", n.ID.String()),
		zap.String("user_id", n.UserID.String()),
	)
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *NotificationProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("notification worker stopping")
			return
		default:
		}

		job, err := p.jobs.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
			if reErr := p.jobs.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			p.sleep(ctx)
		}
	}
}

func (p *NotificationProcessor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
