package pgxutil_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/mmk-moderation/internal/data/pgxutil"
	"github.com/target/mmk-moderation/internal/testutil"
)

func TestQueryAllAndOne(t *testing.T) {
	testutil.SkipIfNoTestDB(t)
	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()

		nums, err := pgxutil.QueryAll(ctx, db, pgxutil.Query{SQL: "SELECT generate_series(1, $1::int)", Args: []any{3}},
			pgx.RowTo[int32])
		require.NoError(t, err)
		assert.Equal(t, []int32{1, 2, 3}, nums)

		_, err = pgxutil.QueryOne(ctx, db, pgxutil.Query{SQL: "SELECT 1 WHERE false"}, pgx.RowTo[int32])
		require.ErrorIs(t, err, pgx.ErrNoRows)
	})
}

func TestInPgxTx_RollsBackOnError(t *testing.T) {
	testutil.SkipIfNoTestDB(t)
	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		_, err := db.ExecContext(ctx, "CREATE TABLE tx_probe (n int)")
		require.NoError(t, err)

		boom := errors.New("boom")
		err = pgxutil.InPgxTx(ctx, db, pgx.ReadCommitted, func(tx pgx.Tx) error {
			if _, execErr := tx.Exec(ctx, "INSERT INTO tx_probe VALUES (1)"); execErr != nil {
				return execErr
			}
			return boom
		})
		require.ErrorIs(t, err, boom)

		err = pgxutil.InTx(ctx, db, func(tx *sql.Tx) error {
			_, execErr := tx.ExecContext(ctx, "INSERT INTO tx_probe VALUES (2)")
			return execErr
		})
		require.NoError(t, err)

		var total int
		require.NoError(t, db.QueryRowContext(ctx, "SELECT coalesce(sum(n), 0) FROM tx_probe").Scan(&total))
		assert.Equal(t, 2, total)
	})
}
