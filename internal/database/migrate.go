package database

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

// Migrate creates the schema if it does not exist yet. It is safe to run on
// every deploy.
func Migrate(ctx context.Context, db *bun.DB) error {
	return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewCreateTable().
			Model((*Account)(nil)).
			IfNotExists().
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to create accounts table: %w", err)
		}

		indexes := []struct {
			name    string
			columns []string
		}{
			{"accounts_status_idx", []string{"status"}},
			{"accounts_created_at_idx", []string{"created_at"}},
		}
		for _, idx := range indexes {
			if _, err := tx.NewCreateIndex().
				Model((*Account)(nil)).
				Index(idx.name).
				Column(idx.columns...).
				IfNotExists().
				Exec(ctx); err != nil {
				return fmt.Errorf("failed to create index %s: %w", idx.name, err)
			}
		}

		return nil
	})
}
