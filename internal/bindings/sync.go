package bindings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/rolelink/rolelink/internal/guilds"
	"github.com/rolelink/rolelink/internal/shared"
)

// RankSource reports a player's current rank per group, keyed by group
// name. Rank 0 (or an absent key) means not a member.
type RankSource interface {
	Ranks(ctx context.Context, robloxID string) (map[string]int, error)
}

// MutationRecorder counts applied role grants and revocations.
type MutationRecorder interface {
	AddRoleMutations(action string, count int)
}

// Syncer reconciles a member's Discord roles with their group ranks:
// load rules, resolve entitlement, diff against held roles, apply.
type Syncer struct {
	store     Store
	directory guilds.Directory
	ranks     RankSource
	logger    *slog.Logger
	recorder  MutationRecorder
}

// NewSyncer constructs a Syncer.
func NewSyncer(store Store, directory guilds.Directory, ranks RankSource, logger *slog.Logger) *Syncer {
	return &Syncer{store: store, directory: directory, ranks: ranks, logger: logger}
}

// WithRecorder installs a recorder fed with every applied role mutation.
func (s *Syncer) WithRecorder(recorder MutationRecorder) *Syncer {
	s.recorder = recorder
	return s
}

// SyncMember reconciles one linked member and returns the applied diff.
// Role mutations are idempotent at the directory boundary, so re-running
// a sync that partially failed converges rather than erroring.
func (s *Syncer) SyncMember(ctx context.Context, serverID, discordID, robloxID string) (RoleDiff, error) {
	rules, err := s.store.List(ctx, serverID)
	if err != nil {
		return RoleDiff{}, err
	}
	if len(rules) == 0 {
		return RoleDiff{}, nil
	}

	ranks, err := s.ranks.Ranks(ctx, robloxID)
	if err != nil {
		return RoleDiff{}, fmt.Errorf("load ranks for %s: %w", robloxID, err)
	}

	member, err := s.directory.Member(ctx, serverID, discordID)
	if err != nil {
		return RoleDiff{}, err
	}
	liveRoles, err := s.directory.Roles(ctx, serverID)
	if err != nil {
		return RoleDiff{}, err
	}
	bot, err := s.directory.BotMember(ctx, serverID)
	if err != nil {
		return RoleDiff{}, err
	}

	entitled := ResolveAll(ranks, rules)
	manageable := guilds.Manageable(liveRoles, bot, serverID)
	diff := Diff(RoleSet(member.RoleIDs), entitled, manageable)
	if diff.Empty() {
		return diff, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, roleID := range diff.ToAdd {
		g.Go(func() error {
			return s.directory.AddRole(gctx, serverID, discordID, roleID)
		})
	}
	for _, roleID := range diff.ToRemove {
		g.Go(func() error {
			return s.directory.RemoveRole(gctx, serverID, discordID, roleID)
		})
	}
	if err := g.Wait(); err != nil {
		return RoleDiff{}, err
	}

	if s.recorder != nil {
		s.recorder.AddRoleMutations("add", len(diff.ToAdd))
		s.recorder.AddRoleMutations("remove", len(diff.ToRemove))
	}

	if s.logger != nil {
		s.logger.Info("roles synced",
			slog.String("server_id", serverID),
			slog.String("discord_id", discordID),
			slog.Int("added", len(diff.ToAdd)),
			slog.Int("removed", len(diff.ToRemove)))
	}
	return diff, nil
}

// SyncServer reconciles every linked member of a server and returns how
// many members were processed. Unlinked members are skipped. Linked is
// the identity lookup keyed by discord id; it returns shared.ErrNotFound
// for unlinked members.
func (s *Syncer) SyncServer(ctx context.Context, serverID string, linked func(ctx context.Context, discordID string) (string, error)) (int, error) {
	members, err := s.directory.Members(ctx, serverID)
	if err != nil {
		return 0, err
	}
	synced := 0
	for _, member := range members {
		robloxID, err := linked(ctx, member.UserID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				continue
			}
			return synced, err
		}
		if _, err := s.SyncMember(ctx, serverID, member.UserID, robloxID); err != nil {
			if s.logger != nil {
				s.logger.Warn("member sync failed",
					slog.String("server_id", serverID),
					slog.String("discord_id", member.UserID),
					slog.Any("error", err))
			}
			continue
		}
		synced++
	}
	return synced, nil
}
