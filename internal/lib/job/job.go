// Package job runs background work on asynq, a Redis-backed task queue.
//
// The asynq.Client enqueues tasks, the asynq.Server executes them and the
// asynq.Scheduler enqueues periodic tasks from cron specs.
package job

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/deppfellow/posts-api/internal/config"
)

// Purger hard-deletes posts soft-deleted before a cutoff.
type Purger interface {
	PurgeDeleted(ctx context.Context, before time.Time) (int64, error)
}

// JobService holds the asynq client, worker server and scheduler.
type JobService struct {
	Client *asynq.Client

	server    *asynq.Server
	scheduler *asynq.Scheduler
	logger    *zerolog.Logger
	cfg       config.JobsConfig

	purger Purger
	now    func() time.Time

	started bool
}

// RedisOpt translates the Redis config into asynq connection options.
func RedisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

// NewJobService builds the client, server and scheduler. Nothing connects
// until Start.
func NewJobService(logger *zerolog.Logger, cfg *config.Config) *JobService {
	redisOpt := RedisOpt(cfg.Redis)
	asynqLogger := newAsynqLogger(logger)

	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.Jobs.Concurrency,
		Queues: map[string]int{
			QueueCritical: 6,
			QueueDefault:  3,
			QueueLow:      1,
		},
		Logger: asynqLogger,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			logger.Error().
				Err(err).
				Str("task", task.Type()).
				Msg("background task failed")
		}),
	})

	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
		Logger:   asynqLogger,
		Location: time.UTC,
	})

	return &JobService{
		Client:    asynq.NewClient(redisOpt),
		server:    server,
		scheduler: scheduler,
		logger:    logger,
		cfg:       cfg.Jobs,
		now:       time.Now,
	}
}

// InitHandlers wires the dependencies task handlers need.
func (j *JobService) InitHandlers(purger Purger) {
	j.purger = purger
}

// Mux routes task types to handlers.
func (j *JobService) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskPurgeDeleted, j.handlePurgeDeletedTask)
	return mux
}

// Start launches the workers and, when enabled, the purge schedule.
// Neither call blocks.
func (j *JobService) Start() error {
	if j.purger == nil {
		return errors.New("job handlers not initialized")
	}

	j.logger.Info().Int("concurrency", j.cfg.Concurrency).Msg("starting background job server")

	if err := j.server.Start(j.Mux()); err != nil {
		return fmt.Errorf("starting job server: %w", err)
	}
	j.started = true

	if !j.cfg.PurgeEnabled {
		return nil
	}

	task, err := NewPurgeDeletedTask(j.cfg.PurgeRetention)
	if err != nil {
		return err
	}

	entryID, err := j.scheduler.Register(j.cfg.PurgeSchedule, task)
	if err != nil {
		return fmt.Errorf("registering purge schedule %q: %w", j.cfg.PurgeSchedule, err)
	}

	if err := j.scheduler.Start(); err != nil {
		return fmt.Errorf("starting job scheduler: %w", err)
	}

	j.logger.Info().
		Str("entry_id", entryID).
		Str("schedule", j.cfg.PurgeSchedule).
		Dur("retention", j.cfg.PurgeRetention).
		Msg("scheduled purge of deleted posts")

	return nil
}

// EnqueuePurge queues a one-off purge.
func (j *JobService) EnqueuePurge(ctx context.Context, olderThan time.Duration) (*asynq.TaskInfo, error) {
	task, err := NewPurgeDeletedTask(olderThan)
	if err != nil {
		return nil, err
	}
	return j.Client.EnqueueContext(ctx, task)
}

// Stop shuts the scheduler and workers down, waiting for running tasks,
// then closes the client.
func (j *JobService) Stop() {
	if j.started {
		j.logger.Info().Msg("stopping background job server")
		if j.cfg.PurgeEnabled {
			j.scheduler.Shutdown()
		}
		j.server.Shutdown()
		j.started = false
	}
	if err := j.Client.Close(); err != nil {
		j.logger.Warn().Err(err).Msg("closing job client")
	}
}
