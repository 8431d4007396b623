package jobs

import (
	"log/slog"

	"github.com/hibiken/asynq"
)

// Scheduler periodically enqueues the recurring maintenance tasks.
type Scheduler interface {
	RegisterTasks(sweepCron string) error
	Run()
	Shutdown()
}

type scheduler struct {
	asynqScheduler *asynq.Scheduler
	log            *slog.Logger
}

func NewScheduler(redisOpt asynq.RedisConnOpt, log *slog.Logger) Scheduler {
	return &scheduler{
		asynqScheduler: asynq.NewScheduler(redisOpt, nil),
		log:            log,
	}
}

// RegisterTasks wires the stale-campaign sweep and the scheduled-campaign
// poll onto cron expressions.
func (s *scheduler) RegisterTasks(sweepCron string) error {
	sweep, err := NewSweepStaleTask()
	if err != nil {
		return err
	}
	if _, err := s.asynqScheduler.Register(sweepCron, sweep); err != nil {
		return err
	}

	// The dispatch poll runs every minute and fans out any campaigns whose
	// scheduled time has passed.
	poll := asynq.NewTask(TaskTypeDispatch, nil, asynq.Queue(QueueCritical), asynq.MaxRetry(0))
	if _, err := s.asynqScheduler.Register("* * * * *", poll); err != nil {
		return err
	}

	s.log.Info("scheduler: registered notification maintenance tasks",
		slog.String("sweep_cron", sweepCron),
	)

	return nil
}

func (s *scheduler) Run() {
	s.log.Info("scheduler: starting")

	go func() {
		if err := s.asynqScheduler.Run(); err != nil {
			s.log.Error("scheduler: run failed", slog.String("error", err.Error()))
		}
	}()
}

func (s *scheduler) Shutdown() {
	s.log.Info("scheduler: shutting down")
	s.asynqScheduler.Shutdown()
}
