package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrTableNotFound is returned when a stored table lookup yields no rows.
var ErrTableNotFound = errors.New("stored table not found")

// StoredTable is one persisted table definition. Source is the YAML
// document the loader consumes; the engine never queries entry rows.
type StoredTable struct {
	Key       string
	Name      string
	Source    string
	Enhanced  bool
	UpdatedAt time.Time
}

// TableRepository persists table definitions.
type TableRepository struct {
	db *pgxpool.Pool
}

// NewTableRepository creates a TableRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewTableRepository(db *pgxpool.Pool) *TableRepository {
	return &TableRepository{db: db}
}

// Upsert inserts or replaces the definition for name. The key is the
// lower-cased name, matching the registry's case-insensitive lookup.
//
// Precondition: name and source must be non-empty.
// Postcondition: Returns the stored row with UpdatedAt set.
func (r *TableRepository) Upsert(ctx context.Context, name, source string, enhanced bool) (StoredTable, error) {
	var st StoredTable
	err := r.db.QueryRow(ctx,
		`INSERT INTO story_tables (key, name, source, enhanced)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (key) DO UPDATE
		 SET name = EXCLUDED.name,
		     source = EXCLUDED.source,
		     enhanced = EXCLUDED.enhanced,
		     updated_at = now()
		 RETURNING key, name, source, enhanced, updated_at`,
		strings.ToLower(name), name, source, enhanced,
	).Scan(&st.Key, &st.Name, &st.Source, &st.Enhanced, &st.UpdatedAt)
	if err != nil {
		return StoredTable{}, fmt.Errorf("upserting table %q: %w", name, err)
	}
	return st, nil
}

// Get retrieves the definition stored under key (case-insensitive).
//
// Postcondition: Returns the stored row, or ErrTableNotFound.
func (r *TableRepository) Get(ctx context.Context, key string) (StoredTable, error) {
	var st StoredTable
	err := r.db.QueryRow(ctx,
		`SELECT key, name, source, enhanced, updated_at
		 FROM story_tables WHERE key = $1`,
		strings.ToLower(key),
	).Scan(&st.Key, &st.Name, &st.Source, &st.Enhanced, &st.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StoredTable{}, ErrTableNotFound
		}
		return StoredTable{}, fmt.Errorf("querying table %q: %w", key, err)
	}
	return st, nil
}

// List returns every stored table ordered by key.
func (r *TableRepository) List(ctx context.Context) ([]StoredTable, error) {
	rows, err := r.db.Query(ctx,
		`SELECT key, name, source, enhanced, updated_at
		 FROM story_tables ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	defer rows.Close()

	var out []StoredTable
	for rows.Next() {
		var st StoredTable
		if err := rows.Scan(&st.Key, &st.Name, &st.Source, &st.Enhanced, &st.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning table row: %w", err)
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating table rows: %w", err)
	}
	return out, nil
}

// Delete removes the definition stored under key (case-insensitive).
//
// Postcondition: Returns ErrTableNotFound if no row matched.
func (r *TableRepository) Delete(ctx context.Context, key string) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM story_tables WHERE key = $1`,
		strings.ToLower(key))
	if err != nil {
		return fmt.Errorf("deleting table %q: %w", key, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTableNotFound
	}
	return nil
}
