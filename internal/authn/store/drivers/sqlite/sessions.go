package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/farelight/zkauth/internal/authn/domain"
	"github.com/farelight/zkauth/internal/authn/store"
	"github.com/farelight/zkauth/pkg/cryptox"
	"github.com/farelight/zkauth/pkg/idx"
)

type sessionsRepo struct {
	db *sql.DB
}

const sessionColumns = `id, provider, network, public_key, private_key_sealed,
	jwt_randomness, raw_token, issuer, audience, subject, key_claim_value,
	nonce, kid, salt_sealed, proof, public_input_digest, address, max_epoch,
	created_at`

func (r *sessionsRepo) Create(ctx context.Context, s domain.Session) error {
	sealedKey, err := cryptox.Seal(s.KeyPair.PrivateKey)
	if err != nil {
		return fmt.Errorf("seal private key: %w", err)
	}

	sealedSalt, err := cryptox.Seal(s.Salt)
	if err != nil {
		return fmt.Errorf("seal salt: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID.String(), s.Provider, string(s.Network),
		[]byte(s.KeyPair.PublicKey), sealedKey, s.KeyPair.JWTRandomness,
		s.Token.Raw, s.Token.Issuer, s.Token.Audience, s.Token.Subject,
		s.Token.KeyClaimValue, s.Token.Nonce, s.Token.Kid,
		sealedSalt, s.Proof.ProofBytes, s.Proof.PublicInputDigest,
		string(s.Address), s.MaxEpoch, s.CreatedAt.UTC(),
	)
	return mapConflict(err)
}

func (r *sessionsRepo) Get(ctx context.Context, id idx.ID, currentEpoch uint64) (domain.Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE id = ?`,
		id.String(),
	)

	s, err := scanSession(row)
	if err != nil {
		return domain.Session{}, mapNotFound(err)
	}

	if s.Expired(currentEpoch) {
		return domain.Session{}, store.ErrExpired
	}
	return s, nil
}

func (r *sessionsRepo) Revoke(ctx context.Context, id idx.ID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id.String())
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *sessionsRepo) ListActive(ctx context.Context, currentEpoch uint64) ([]domain.Session, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE max_epoch >= ?
		ORDER BY created_at ASC`,
		currentEpoch,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *sessionsRepo) DeleteExpired(ctx context.Context, currentEpoch uint64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE max_epoch < ?`, currentEpoch)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (domain.Session, error) {
	var (
		s         domain.Session
		rawID     string
		network   string
		address   string
		sealedKey []byte
		sealed    []byte
		createdAt time.Time
	)

	err := row.Scan(
		&rawID, &s.Provider, &network,
		(*[]byte)(&s.KeyPair.PublicKey), &sealedKey, &s.KeyPair.JWTRandomness,
		&s.Token.Raw, &s.Token.Issuer, &s.Token.Audience, &s.Token.Subject,
		&s.Token.KeyClaimValue, &s.Token.Nonce, &s.Token.Kid,
		&sealed, &s.Proof.ProofBytes, &s.Proof.PublicInputDigest,
		&address, &s.MaxEpoch, &createdAt,
	)
	if err != nil {
		return domain.Session{}, err
	}

	s.ID, err = idx.Parse(rawID)
	if err != nil {
		return domain.Session{}, fmt.Errorf("corrupt session id %q: %w", rawID, err)
	}

	privateKey, err := cryptox.Open(sealedKey)
	if err != nil {
		return domain.Session{}, fmt.Errorf("open private key: %w", err)
	}
	s.KeyPair.PrivateKey = privateKey

	salt, err := cryptox.Open(sealed)
	if err != nil {
		return domain.Session{}, fmt.Errorf("open salt: %w", err)
	}
	s.Salt = salt

	s.Network = domain.Network(network)
	s.Address = domain.Address(address)
	s.KeyPair.MaxEpoch = s.MaxEpoch
	s.CreatedAt = createdAt.UTC()
	return s, nil
}
