package sqlite

import (
	"context"
	"database/sql"
)

type noncesRepo struct {
	db *sql.DB
}

func (r *noncesRepo) MarkUsed(ctx context.Context, nonce string, maxEpoch uint64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO nonces (nonce, max_epoch) VALUES (?, ?)`,
		nonce, maxEpoch,
	)
	return mapConflict(err)
}

func (r *noncesRepo) DeleteExpired(ctx context.Context, currentEpoch uint64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM nonces WHERE max_epoch < ?`, currentEpoch)
	return err
}
