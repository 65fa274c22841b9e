// Package notifications stores in-app notifications and queues the jobs that
// create them.
package notifications

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/myfevent/backend/pkg/queue"
)

const defaultEnqueueTimeout = 3 * time.Second

// Enqueuer pushes notification jobs.
type Enqueuer interface {
	EnqueueMemberJoined(ctx context.Context, payload queue.MemberJoinedPayload) error
}

// Dispatcher queues notification jobs in the background so neither a slow nor
// a failing queue affects the caller's request.
type Dispatcher struct {
	q       Enqueuer
	timeout time.Duration
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// NewDispatcher creates a dispatcher. timeout <= 0 uses three seconds.
func NewDispatcher(q Enqueuer, timeout time.Duration, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = defaultEnqueueTimeout
	}
	return &Dispatcher{q: q, timeout: timeout, logger: logger}
}

// NotifyMemberJoined queues a member_joined job and returns immediately. The
// job outlives request cancellation; enqueue failures are logged and dropped.
func (d *Dispatcher) NotifyMemberJoined(ctx context.Context, eventID, departmentID, memberID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer cancel()
		d.enqueue(ctx, eventID, departmentID, memberID)
	}()
}

// Wait blocks until every queued notification has been handed to the queue or
// has failed.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) enqueue(ctx context.Context, eventID, departmentID, memberID uuid.UUID) {
	err := d.q.EnqueueMemberJoined(ctx, queue.MemberJoinedPayload{
		EventID:      eventID,
		DepartmentID: departmentID,
		MemberID:     memberID,
	})
	if err != nil {
		d.logger.Warn("enqueue member joined notification failed",
			zap.String("event_id", eventID.String()),
			zap.String("department_id", departmentID.String()),
			zap.String("member_id", memberID.String()),
			zap.Error(err),
		)
	}
}
