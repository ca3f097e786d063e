package ranks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rolelink/rolelink/internal/groups"
	"github.com/rolelink/rolelink/internal/identity"
	"github.com/rolelink/rolelink/internal/shared"
)

// Source reports a player's current rank per group.
type Source interface {
	Ranks(ctx context.Context, robloxID string) (map[string]int, error)
}

// Writer persists a rank change to the game backend.
type Writer interface {
	SetRank(ctx context.Context, robloxID, group string, rank int) error
}

// Service runs the set-rank command: resolve both linked identities, load
// their current ranks, apply the authorization policy, then write.
type Service struct {
	identities identity.Repository
	catalog    *groups.Catalog
	source     Source
	writer     Writer
	logger     *slog.Logger
}

// NewService constructs a Service.
func NewService(identities identity.Repository, catalog *groups.Catalog, source Source, writer Writer, logger *slog.Logger) *Service {
	return &Service{
		identities: identities,
		catalog:    catalog,
		source:     source,
		writer:     writer,
		logger:     logger,
	}
}

// SetRank moves the target to requestedRank in the group, on behalf of
// the setter. Both parties must be linked. Policy violations come back as
// shared.ErrForbidden, distinct from validation failures.
func (s *Service) SetRank(ctx context.Context, setterDiscordID, targetDiscordID, groupName string, requestedRank int) error {
	group, ok := s.catalog.Lookup(groupName)
	if !ok {
		return fmt.Errorf("%w: group %q", shared.ErrNotFound, groupName)
	}
	if requestedRank < 0 || requestedRank > group.RankCount() {
		return fmt.Errorf("%w: rank %d outside [0,%d]", shared.ErrValidation, requestedRank, group.RankCount())
	}

	setter, err := s.linkedActor(ctx, setterDiscordID, groupName)
	if err != nil {
		return err
	}
	target, err := s.linkedActor(ctx, targetDiscordID, groupName)
	if err != nil {
		return err
	}

	if !Authorize(setter, target, group, requestedRank) {
		return fmt.Errorf("%w: cannot set %s to rank %d", shared.ErrForbidden, targetDiscordID, requestedRank)
	}

	if err := s.writer.SetRank(ctx, target.RobloxID, groupName, requestedRank); err != nil {
		return err
	}

	rankName, _ := group.RankName(requestedRank)
	s.logger.Info("rank set",
		slog.String("group", groupName),
		slog.String("setter", setter.RobloxID),
		slog.String("target", target.RobloxID),
		slog.Int("rank", requestedRank),
		slog.String("rank_name", rankName))
	return nil
}

// Exile removes the target from the group entirely (rank 0).
func (s *Service) Exile(ctx context.Context, setterDiscordID, targetDiscordID, groupName string) error {
	return s.SetRank(ctx, setterDiscordID, targetDiscordID, groupName, 0)
}

func (s *Service) linkedActor(ctx context.Context, discordID, groupName string) (Actor, error) {
	ident, err := s.identities.GetByDiscordID(ctx, discordID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Actor{}, fmt.Errorf("%w: %s is not linked", shared.ErrValidation, discordID)
		}
		return Actor{}, err
	}
	if !ident.Linked() {
		return Actor{}, fmt.Errorf("%w: %s is not linked", shared.ErrValidation, discordID)
	}

	ranks, err := s.source.Ranks(ctx, *ident.RobloxID)
	if err != nil {
		return Actor{}, err
	}
	return Actor{RobloxID: *ident.RobloxID, Rank: ranks[groupName]}, nil
}
