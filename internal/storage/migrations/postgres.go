package migrations

import (
	"context"
	"fmt"

	"fee-token-lab/internal/storage/postgres"
)

// RunPostgresMigrations applies the embedded SQL files in lexical order.
// Every file must be safe to re-apply.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) error {
	migs, err := loadMigrations(PostgresFS, "postgres")
	if err != nil {
		return err
	}
	for _, m := range migs {
		if _, err := pool.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("apply migration %s: %w", m.name, err)
		}
	}
	return nil
}
