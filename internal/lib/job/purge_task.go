package job

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// TaskPurgeDeleted hard-deletes posts soft-deleted longer than OlderThan ago.
const TaskPurgeDeleted = "posts:purge_deleted"

// PurgeDeletedPayload is the JSON payload stored with the task.
type PurgeDeletedPayload struct {
	OlderThan time.Duration `json:"older_than"`
}

// NewPurgeDeletedTask builds the purge task. Purges are idempotent, so
// the task is unique per hour to avoid piling up duplicates.
func NewPurgeDeletedTask(olderThan time.Duration) (*asynq.Task, error) {
	if olderThan < 0 {
		return nil, fmt.Errorf("purge retention must be non-negative, got %s", olderThan)
	}

	payload, err := json.Marshal(PurgeDeletedPayload{OlderThan: olderThan})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskPurgeDeleted,
		payload,
		asynq.MaxRetry(3),
		asynq.Queue(QueueLow),
		asynq.Timeout(5*time.Minute),
		asynq.Unique(time.Hour),
	), nil
}

func (j *JobService) handlePurgeDeletedTask(ctx context.Context, t *asynq.Task) error {
	var p PurgeDeletedPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("failed to unmarshal purge payload: %v: %w", err, asynq.SkipRetry)
	}
	if p.OlderThan < 0 {
		return fmt.Errorf("negative purge retention %s: %w", p.OlderThan, asynq.SkipRetry)
	}

	before := j.now().Add(-p.OlderThan)

	j.logger.Info().
		Str("type", TaskPurgeDeleted).
		Time("before", before).
		Msg("purging deleted posts")

	purged, err := j.purger.PurgeDeleted(ctx, before)
	if err != nil {
		j.logger.Error().
			Err(err).
			Str("type", TaskPurgeDeleted).
			Msg("failed to purge deleted posts")
		return err
	}

	j.logger.Info().
		Str("type", TaskPurgeDeleted).
		Int64("purged", purged).
		Msg("purged deleted posts")

	return nil
}
