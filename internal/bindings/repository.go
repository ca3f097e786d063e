package bindings

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rolelink/rolelink/internal/platform/db"
	"github.com/rolelink/rolelink/internal/shared"
)

// Store is the persistence contract the service and syncer depend on.
type Store interface {
	List(ctx context.Context, serverID string) ([]Rule, error)
	ApplyBatch(ctx context.Context, serverID string, insert, update []Rule, deleteIDs []int64) ([]int64, error)
}

// Repository provides PostgreSQL backed persistence for binding rules.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// List returns every rule configured for a server.
func (r *Repository) List(ctx context.Context, serverID string) ([]Rule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, server_id, group_name, operator, rank, secondary_rank, roles
		FROM bindings
		WHERE server_id = $1
		ORDER BY id`, serverID)
	if err != nil {
		return nil, db.Classify(err)
	}
	defer rows.Close()

	var rules []Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify(err)
	}
	return rules, nil
}

// ApplyBatch commits inserts, updates, and deletes in a single transaction.
// Nothing is written when any row fails. Updates and deletes are scoped to
// the server id as well as the row id, making cross-tenant writes
// structurally impossible. Returns the ids touched by the batch.
func (r *Repository) ApplyBatch(ctx context.Context, serverID string, insert, update []Rule, deleteIDs []int64) ([]int64, error) {
	var committed []int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, rule := range insert {
			roles, err := json.Marshal(rule.Roles)
			if err != nil {
				return err
			}
			var id int64
			err = tx.QueryRow(ctx, `
				INSERT INTO bindings (server_id, group_name, operator, rank, secondary_rank, roles)
				VALUES ($1, $2, $3, $4, $5, $6)
				RETURNING id`,
				serverID, rule.GroupName, string(rule.Operator), rule.Rank, rule.SecondaryRank, roles,
			).Scan(&id)
			if err != nil {
				return db.Classify(err)
			}
			committed = append(committed, id)
		}

		for _, rule := range update {
			roles, err := json.Marshal(rule.Roles)
			if err != nil {
				return err
			}
			tag, err := tx.Exec(ctx, `
				UPDATE bindings
				SET group_name = $1, operator = $2, rank = $3, secondary_rank = $4, roles = $5
				WHERE id = $6 AND server_id = $7`,
				rule.GroupName, string(rule.Operator), rule.Rank, rule.SecondaryRank, roles, rule.ID, serverID)
			if err != nil {
				return db.Classify(err)
			}
			if tag.RowsAffected() == 0 {
				return fmt.Errorf("bindings: update rule %d: %w", rule.ID, shared.ErrNotFound)
			}
			committed = append(committed, rule.ID)
		}

		if len(deleteIDs) > 0 {
			_, err := tx.Exec(ctx, `
				DELETE FROM bindings
				WHERE id = ANY($1) AND server_id = $2`, deleteIDs, serverID)
			if err != nil {
				return db.Classify(err)
			}
			committed = append(committed, deleteIDs...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return committed, nil
}

func scanRule(rows pgx.Rows) (Rule, error) {
	var (
		rule  Rule
		roles []byte
	)
	if err := rows.Scan(&rule.ID, &rule.ServerID, &rule.GroupName, &rule.Operator, &rule.Rank, &rule.SecondaryRank, &roles); err != nil {
		return Rule{}, db.Classify(err)
	}
	if err := json.Unmarshal(roles, &rule.Roles); err != nil {
		return Rule{}, fmt.Errorf("bindings: decode roles for rule %d: %w", rule.ID, err)
	}
	return rule, nil
}
