package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ConsumptionRepository persists per-story consumed-entry records. Rows
// are keyed (table_key, story_id, description); the engine rehydrates
// them as its combined "tablekey_storyid" consumption map.
type ConsumptionRepository struct {
	db *pgxpool.Pool
}

// NewConsumptionRepository creates a ConsumptionRepository backed by the
// given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewConsumptionRepository(db *pgxpool.Pool) *ConsumptionRepository {
	return &ConsumptionRepository{db: db}
}

// LoadStory returns every consumed description for storyID, keyed by
// the combined "tablekey_storyid" form the engine's tracker restores
// from.
func (r *ConsumptionRepository) LoadStory(ctx context.Context, storyID string) (map[string][]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT table_key, description
		 FROM consumed_entries
		 WHERE story_id = $1
		 ORDER BY table_key, description`,
		storyID)
	if err != nil {
		return nil, fmt.Errorf("loading consumption for story %q: %w", storyID, err)
	}
	defer rows.Close()

	out := make(map[string][]string)
	for rows.Next() {
		var tableKey, description string
		if err := rows.Scan(&tableKey, &description); err != nil {
			return nil, fmt.Errorf("scanning consumption row: %w", err)
		}
		combined := tableKey + "_" + storyID
		out[combined] = append(out[combined], description)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating consumption rows: %w", err)
	}
	return out, nil
}

// ReplaceSet replaces the consumed set for (tableKey, storyID) in one
// transaction so a concurrent reader never observes a partial set.
func (r *ConsumptionRepository) ReplaceSet(ctx context.Context, tableKey, storyID string, descriptions []string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning consumption transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM consumed_entries WHERE table_key = $1 AND story_id = $2`,
		tableKey, storyID); err != nil {
		return fmt.Errorf("clearing consumption set: %w", err)
	}
	for _, d := range descriptions {
		if _, err := tx.Exec(ctx,
			`INSERT INTO consumed_entries (table_key, story_id, description)
			 VALUES ($1, $2, $3)
			 ON CONFLICT DO NOTHING`,
			tableKey, storyID, d); err != nil {
			return fmt.Errorf("inserting consumption row: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing consumption transaction: %w", err)
	}
	return nil
}

// DeleteStory removes every consumption record for storyID.
func (r *ConsumptionRepository) DeleteStory(ctx context.Context, storyID string) error {
	if _, err := r.db.Exec(ctx,
		`DELETE FROM consumed_entries WHERE story_id = $1`,
		storyID); err != nil {
		return fmt.Errorf("deleting consumption for story %q: %w", storyID, err)
	}
	return nil
}
