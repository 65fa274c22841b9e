package departments

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/myfevent/backend/internal/models"
	"github.com/myfevent/backend/pkg/storage"
)

// ObjectPutter stores a JSON object under key.
type ObjectPutter interface {
	PutJSON(ctx context.Context, key string, body []byte) (string, error)
}

// Snapshot is the archived form of a deleted department.
type Snapshot struct {
	Department models.Department   `json:"department"`
	Members    []models.MemberView `json:"members"`
	ArchivedAt time.Time           `json:"archivedAt"`
}

// S3Archiver writes department snapshots to object storage.
type S3Archiver struct {
	store  ObjectPutter
	logger *zap.Logger
	now    func() time.Time
}

// NewS3Archiver creates an archiver backed by store.
func NewS3Archiver(store ObjectPutter, logger *zap.Logger) *S3Archiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &S3Archiver{store: store, logger: logger, now: time.Now}
}

// ArchiveDepartment uploads the department and its members as JSON.
func (a *S3Archiver) ArchiveDepartment(ctx context.Context, d *models.Department, members []models.MemberView) error {
	at := a.now().UTC()
	if members == nil {
		members = []models.MemberView{}
	}
	body, err := json.Marshal(Snapshot{Department: *d, Members: members, ArchivedAt: at})
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	key, err := a.store.PutJSON(ctx, storage.ArchiveKey(d.EventID.String(), d.ID.String(), at), body)
	if err != nil {
		return err
	}
	a.logger.Info("department archived", zap.String("department_id", d.ID.String()), zap.String("key", key))
	return nil
}
