// Package jobs holds the asynq task definitions and the worker runtime.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskGroupIconRefresh re-resolves the cached group icon URLs.
	TaskGroupIconRefresh = "groups:icon_refresh"
	// TaskRoleResync reconciles every linked member of one server.
	TaskRoleResync = "guild:role_resync"
	// TaskRoleResyncSweep fans out a TaskRoleResync per installed server.
	TaskRoleResyncSweep = "guild:role_resync_sweep"
)

// RoleResyncPayload names the server to reconcile.
type RoleResyncPayload struct {
	ServerID string `json:"serverId"`
}

// NewGroupIconRefreshTask constructs the icon refresh task.
func NewGroupIconRefreshTask() *asynq.Task {
	return asynq.NewTask(TaskGroupIconRefresh, nil)
}

// NewRoleResyncSweepTask constructs the periodic re-sync sweep task.
func NewRoleResyncSweepTask() *asynq.Task {
	return asynq.NewTask(TaskRoleResyncSweep, nil)
}

// NewRoleResyncTask constructs a re-sync task for one server.
func NewRoleResyncTask(serverID string) (*asynq.Task, error) {
	data, err := json.Marshal(RoleResyncPayload{ServerID: serverID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRoleResync, data), nil
}
