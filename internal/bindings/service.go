package bindings

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/rolelink/rolelink/internal/groups"
	"github.com/rolelink/rolelink/internal/guilds"
	"github.com/rolelink/rolelink/internal/shared"
)

var numericID = regexp.MustCompile(`^[0-9]+$`)

// Service validates and applies binding rule mutations.
type Service struct {
	store     Store
	catalog   *groups.Catalog
	directory guilds.Directory
	validate  *validator.Validate
}

// NewService constructs a Service.
func NewService(store Store, catalog *groups.Catalog, directory guilds.Directory) *Service {
	return &Service{
		store:     store,
		catalog:   catalog,
		directory: directory,
		validate:  validator.New(),
	}
}

// List returns the rules configured for a server.
func (s *Service) List(ctx context.Context, serverID string) ([]Rule, error) {
	return s.store.List(ctx, serverID)
}

// SaveBatch validates the whole batch up front and then applies it in one
// transaction. Validation failures reject the batch wholesale; no partial
// side effects. The live role catalog is fetched fresh from the directory,
// so a stale role id in any row rejects everything. Returns committed ids.
func (s *Service) SaveBatch(ctx context.Context, serverID string, batch MutationBatch) ([]int64, error) {
	if batch.Empty() {
		return nil, fmt.Errorf("%w: no bindings provided", shared.ErrValidation)
	}
	if len(batch.Insert)+len(batch.Update) > MaxBatchRows {
		return nil, fmt.Errorf("%w: batch exceeds %d rows", shared.ErrValidation, MaxBatchRows)
	}
	if err := s.validate.Struct(batch); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}

	// One live fetch covers every row. Never cached: a deleted role must
	// reject the batch even if it existed moments ago.
	liveRoles, err := s.directory.Roles(ctx, serverID)
	if err != nil {
		return nil, err
	}
	roleCatalog := make(map[string]struct{}, len(liveRoles))
	for _, role := range liveRoles {
		roleCatalog[role.ID] = struct{}{}
	}

	insert := make([]Rule, 0, len(batch.Insert))
	for _, input := range batch.Insert {
		rule, err := s.toRule(serverID, input, roleCatalog)
		if err != nil {
			return nil, err
		}
		insert = append(insert, rule)
	}

	update := make([]Rule, 0, len(batch.Update))
	for _, input := range batch.Update {
		rule, err := s.toRule(serverID, input, roleCatalog)
		if err != nil {
			return nil, err
		}
		// A non-numeric update id is a client bug; surfacing it beats
		// silently re-inserting the row and diverging state.
		if input.ID == nil || !numericID.MatchString(*input.ID) {
			return nil, fmt.Errorf("%w: update row carries no numeric id", shared.ErrValidation)
		}
		rule.ID, _ = strconv.ParseInt(*input.ID, 10, 64)
		update = append(update, rule)
	}

	deleteIDs := make([]int64, 0, len(batch.Delete))
	for _, raw := range batch.Delete {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: delete id %q is not numeric", shared.ErrValidation, raw)
		}
		deleteIDs = append(deleteIDs, id)
	}

	return s.store.ApplyBatch(ctx, serverID, insert, update, deleteIDs)
}

func (s *Service) toRule(serverID string, input RuleInput, roleCatalog map[string]struct{}) (Rule, error) {
	group, ok := s.catalog.Lookup(input.GroupName)
	if !ok {
		return Rule{}, fmt.Errorf("%w: group %q", shared.ErrNotFound, input.GroupName)
	}
	if !input.Operator.Valid() {
		return Rule{}, fmt.Errorf("%w: operator %q", shared.ErrValidation, input.Operator)
	}

	rankCount := group.RankCount()
	if input.Rank < 0 || input.Rank > rankCount {
		return Rule{}, fmt.Errorf("%w: rank %d outside [0,%d]", shared.ErrValidation, input.Rank, rankCount)
	}

	if input.Operator == OpBetween {
		if input.SecondaryRank == nil {
			return Rule{}, fmt.Errorf("%w: between rule requires a secondary rank", shared.ErrValidation)
		}
		if *input.SecondaryRank <= input.Rank {
			return Rule{}, fmt.Errorf("%w: secondary rank must exceed the primary rank", shared.ErrValidation)
		}
		if *input.SecondaryRank > rankCount {
			return Rule{}, fmt.Errorf("%w: secondary rank %d outside [0,%d]", shared.ErrValidation, *input.SecondaryRank, rankCount)
		}
	} else if input.SecondaryRank != nil {
		return Rule{}, fmt.Errorf("%w: secondary rank is only allowed with the between operator", shared.ErrValidation)
	}

	for _, roleID := range input.Roles {
		if _, ok := roleCatalog[roleID]; !ok {
			return Rule{}, fmt.Errorf("%w: role %q does not exist in the server", shared.ErrValidation, roleID)
		}
	}

	return Rule{
		ServerID:      serverID,
		GroupName:     input.GroupName,
		Operator:      input.Operator,
		Rank:          input.Rank,
		SecondaryRank: input.SecondaryRank,
		Roles:         input.Roles,
	}, nil
}
