package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/rolelink/rolelink/internal/guilds"
	jobmetrics "github.com/rolelink/rolelink/internal/jobs"
)

// GuildLister enumerates the servers the bot is installed in.
type GuildLister interface {
	Guilds(ctx context.Context) ([]guilds.Guild, error)
}

// ResyncEnqueuer submits a per-server role re-sync to the queue.
type ResyncEnqueuer interface {
	EnqueueRoleResync(ctx context.Context, serverID string) (*asynq.TaskInfo, error)
}

// RoleResyncSweepJob fans a TaskRoleResync out to every server the bot is
// installed in. The sweep is what bounds role staleness when a save-time
// enqueue is lost, so it keeps going past individual enqueue failures.
type RoleResyncSweepJob struct {
	Directory GuildLister
	Enqueuer  ResyncEnqueuer
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewRoleResyncSweepJob wires dependencies for the sweep handler.
func NewRoleResyncSweepJob(directory GuildLister, enqueuer ResyncEnqueuer, logger *slog.Logger, metrics *jobmetrics.Metrics) *RoleResyncSweepJob {
	return &RoleResyncSweepJob{Directory: directory, Enqueuer: enqueuer, Logger: logger, Metrics: metrics}
}

// Handle processes TaskRoleResyncSweep tasks.
func (j *RoleResyncSweepJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Directory == nil || j.Enqueuer == nil {
		return errors.New("role resync sweep: handler not configured")
	}

	tracker := j.metrics().Track(TaskRoleResyncSweep)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	logger.Info("starting role resync sweep")

	servers, err := j.Directory.Guilds(ctx)
	if err != nil {
		resultErr = err
		logger.Error("list bot servers", slog.Any("error", err))
		return resultErr
	}

	enqueued := 0
	for _, server := range servers {
		if _, err := j.Enqueuer.EnqueueRoleResync(ctx, server.ID); err != nil {
			logger.Warn("enqueue resync",
				slog.String("server_id", server.ID),
				slog.Any("error", err))
			continue
		}
		enqueued++
	}
	logger.Info("role resync sweep complete",
		slog.Int("servers", len(servers)),
		slog.Int("enqueued", enqueued))
	return resultErr
}

func (j *RoleResyncSweepJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func (j *RoleResyncSweepJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return jobmetrics.NewMetrics(nil)
}
