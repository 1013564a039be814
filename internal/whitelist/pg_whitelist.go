package whitelist

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PgWhitelist reads operators from the operators table and unions them
// with a config-seeded set, so a fresh deployment has at least one
// operator before the table is populated.
type PgWhitelist struct {
	pool *pgxpool.Pool
	seed map[string]struct{}
}

func NewPgWhitelist(pool *pgxpool.Pool, seedIDs []string) *PgWhitelist {
	seed := make(map[string]struct{}, len(seedIDs))
	for _, id := range seedIDs {
		if id == "" {
			continue
		}
		seed[id] = struct{}{}
	}
	return &PgWhitelist{pool: pool, seed: seed}
}

func (w *PgWhitelist) IsOperator(ctx context.Context, recipient string) (bool, error) {
	if _, ok := w.seed[recipient]; ok {
		return true, nil
	}
	var exists bool
	err := w.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM operators WHERE recipient = $1)`, recipient,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check operator: %w", err)
	}
	return exists, nil
}

func (w *PgWhitelist) ListOperators(ctx context.Context) ([]string, error) {
	rows, err := w.pool.Query(ctx, `SELECT recipient FROM operators`)
	if err != nil {
		return nil, fmt.Errorf("list operators: %w", err)
	}
	defer rows.Close()

	set := make(map[string]struct{}, len(w.seed))
	for id := range w.seed {
		set[id] = struct{}{}
	}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		set[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

// compile-time check that PgWhitelist implements Whitelist
var _ Whitelist = (*PgWhitelist)(nil)
