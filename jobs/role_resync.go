package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/rolelink/rolelink/internal/bindings"
	"github.com/rolelink/rolelink/internal/identity"
	jobmetrics "github.com/rolelink/rolelink/internal/jobs"
	"github.com/rolelink/rolelink/internal/shared"
)

// RoleResyncJob reconciles the Discord roles of every linked member in a
// server against their current group ranks. Missing the odd in-game rank
// change is acceptable; this job bounds how stale roles can get.
type RoleResyncJob struct {
	Syncer     *bindings.Syncer
	Identities identity.Repository
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
}

// NewRoleResyncJob wires dependencies for the re-sync handler.
func NewRoleResyncJob(syncer *bindings.Syncer, identities identity.Repository, logger *slog.Logger, metrics *jobmetrics.Metrics) *RoleResyncJob {
	return &RoleResyncJob{Syncer: syncer, Identities: identities, Logger: logger, Metrics: metrics}
}

// Handle processes TaskRoleResync tasks.
func (j *RoleResyncJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Syncer == nil || j.Identities == nil {
		return errors.New("role resync: handler not configured")
	}
	var payload RoleResyncPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.ServerID == "" {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskRoleResync)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("server_id", payload.ServerID))
	logger.Info("starting role resync")

	// One linked-identity snapshot serves the whole run instead of a
	// repository round-trip per member.
	linked, err := j.Identities.ListLinked(ctx)
	if err != nil {
		resultErr = err
		logger.Error("load linked identities", slog.Any("error", err))
		return resultErr
	}
	lookup := func(ctx context.Context, discordID string) (string, error) {
		robloxID, ok := linked[discordID]
		if !ok {
			return "", shared.ErrNotFound
		}
		return robloxID, nil
	}

	synced, err := j.Syncer.SyncServer(ctx, payload.ServerID, lookup)
	j.metrics().AddSyncedMembers(payload.ServerID, synced)
	if err != nil {
		resultErr = err
		logger.Error("role resync", slog.Int("synced", synced), slog.Any("error", err))
		return resultErr
	}
	logger.Info("role resync complete", slog.Int("synced", synced))
	return resultErr
}

func (j *RoleResyncJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func (j *RoleResyncJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return jobmetrics.NewMetrics(nil)
}
