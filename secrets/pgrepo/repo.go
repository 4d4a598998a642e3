package pgrepo

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/jrsteele09/go-gate-pass/internal/utils"
	"github.com/jrsteele09/go-gate-pass/secrets"
)

var _ secrets.Repo = (*Store)(nil)

// Store is the PostgreSQL implementation of secrets.Repo. Secret bytes never reach the database
// unsealed.
type Store struct {
	pool   *pgxpool.Pool
	sealer *Sealer
}

func NewStore(pool *pgxpool.Pool, sealer *Sealer) *Store {
	return &Store{pool: pool, sealer: sealer}
}

func (s *Store) Put(ctx context.Context, key secrets.Key) error {
	sealed, err := s.sealer.Seal(key.UserID, key.Version, key.Secret)
	if err != nil {
		return errors.Wrap(err, "Store.Put seal")
	}

	cmd := `INSERT INTO ` + tableIdentitySecrets + ` (` +
		colUserID + `, ` + colVersion + `, ` + colSealedSecret + `, ` + colActiveFrom + `, ` + colRetiredAt + `)
            VALUES ($1,$2,$3,$4,$5)`
	if _, err := s.pool.Exec(ctx, cmd, key.UserID, key.Version, sealed, key.ActiveFrom.UTC(), utils.NonZeroPtr(key.RetiredAt)); err != nil {
		return errors.Wrap(err, "Store.Put insert")
	}
	return nil
}

func (s *Store) Keys(ctx context.Context, userID string) ([]secrets.Key, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+colVersion+`, `+colSealedSecret+`, `+colActiveFrom+`, `+colRetiredAt+
		` FROM `+tableIdentitySecrets+` WHERE `+colUserID+`=$1 ORDER BY `+colVersion, userID)
	if err != nil {
		return nil, errors.Wrap(err, "Store.Keys query")
	}
	defer rows.Close()

	var out []secrets.Key
	for rows.Next() {
		var (
			k         secrets.Key
			sealed    []byte
			retiredAt *time.Time
		)
		if err := rows.Scan(&k.Version, &sealed, &k.ActiveFrom, &retiredAt); err != nil {
			return nil, errors.Wrap(err, "Store.Keys scan")
		}
		k.UserID = userID
		k.RetiredAt = utils.Value(retiredAt)
		if k.Secret, err = s.sealer.Open(userID, k.Version, sealed); err != nil {
			return nil, errors.Wrapf(err, "Store.Keys open version %d", k.Version)
		}
		out = append(out, k)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "Store.Keys rows")
	}
	if len(out) == 0 {
		return nil, secrets.ErrNotFound
	}
	return out, nil
}

func (s *Store) Retire(ctx context.Context, userID string, version int, at time.Time) error {
	cmd := `UPDATE ` + tableIdentitySecrets + ` SET ` + colRetiredAt + `=$1 WHERE ` + colUserID + `=$2 AND ` + colVersion + `=$3`
	tag, err := s.pool.Exec(ctx, cmd, at.UTC(), userID, version)
	return rowsAffected(tag, err, "Store.Retire")
}

func (s *Store) Delete(ctx context.Context, userID string, version int) error {
	cmd := `DELETE FROM ` + tableIdentitySecrets + ` WHERE ` + colUserID + `=$1 AND ` + colVersion + `=$2`
	tag, err := s.pool.Exec(ctx, cmd, userID, version)
	return rowsAffected(tag, err, "Store.Delete")
}

func (s *Store) DeleteAll(ctx context.Context, userID string) error {
	cmd := `DELETE FROM ` + tableIdentitySecrets + ` WHERE ` + colUserID + `=$1`
	if _, err := s.pool.Exec(ctx, cmd, userID); err != nil {
		return errors.Wrap(err, "Store.DeleteAll")
	}
	return nil
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func rowsAffected(tag pgconn.CommandTag, err error, op string) error {
	if err != nil {
		return errors.Wrap(err, op)
	}
	if tag.RowsAffected() == 0 {
		return secrets.ErrNotFound
	}
	return nil
}
