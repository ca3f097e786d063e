package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/rolelink/rolelink/internal/groups"
	jobmetrics "github.com/rolelink/rolelink/internal/jobs"
)

// IconRefreshJob re-resolves every group's icon URL and repopulates the
// redis-backed cache before the entries expire.
type IconRefreshJob struct {
	Icons   *groups.IconResolver
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewIconRefreshJob wires dependencies for the icon refresh handler.
func NewIconRefreshJob(icons *groups.IconResolver, logger *slog.Logger, metrics *jobmetrics.Metrics) *IconRefreshJob {
	return &IconRefreshJob{Icons: icons, Logger: logger, Metrics: metrics}
}

// Handle processes TaskGroupIconRefresh tasks.
func (j *IconRefreshJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Icons == nil {
		return errors.New("icon refresh: handler not configured")
	}

	tracker := j.metrics().Track(TaskGroupIconRefresh)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	j.logger().Info("starting group icon refresh")
	if err := j.Icons.RefreshAll(ctx); err != nil {
		resultErr = err
		j.logger().Error("group icon refresh", slog.Any("error", err))
		return resultErr
	}
	j.logger().Info("group icon refresh complete")
	return resultErr
}

func (j *IconRefreshJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func (j *IconRefreshJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return jobmetrics.NewMetrics(nil)
}
