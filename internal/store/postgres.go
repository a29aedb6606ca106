package store

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"streamxAPI/internal/customer"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// PostgresStore keeps customer records in three tables. api_keys doubles as
// the reverse key index: its primary key is the key string itself, so
// FindByKey is a single indexed lookup and the index can never drift from
// the record it derives from.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// InitSchema creates the tables on startup if they are missing.
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	ddl := `
	CREATE TABLE IF NOT EXISTS customers (
		userid     BIGINT PRIMARY KEY,
		username   TEXT NOT NULL,
		quota      BIGINT NOT NULL DEFAULT 0,
		last_usage TIMESTAMPTZ
	);
	CREATE TABLE IF NOT EXISTS api_keys (
		key       TEXT PRIMARY KEY,
		userid    BIGINT NOT NULL REFERENCES customers(userid) ON DELETE CASCADE,
		reason    TEXT,
		op_token  TEXT NOT NULL DEFAULT '',
		issued_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE INDEX IF NOT EXISTS api_keys_userid_idx ON api_keys(userid);
	CREATE TABLE IF NOT EXISTS whitelist (
		userid BIGINT NOT NULL REFERENCES customers(userid) ON DELETE CASCADE,
		gameid BIGINT NOT NULL,
		PRIMARY KEY (userid, gameid)
	);
	`
	if _, err := s.db.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create schema: %w", wrapPgErr(err))
	}
	return nil
}

func (s *PostgresStore) GetRecord(ctx context.Context, userID int64) (*customer.Record, error) {
	var rec customer.Record
	query := `SELECT userid, username, quota, last_usage FROM customers WHERE userid = $1`
	err := s.db.QueryRow(ctx, query, userID).Scan(&rec.UserID, &rec.Username, &rec.Quota, &rec.LastUsage)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get customer: %w", wrapPgErr(err))
	}

	keys, err := s.keysFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	rec.APIKeys = keys

	games, err := s.gamesFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	rec.Whitelist = games

	return &rec, nil
}

func (s *PostgresStore) keysFor(ctx context.Context, userID int64) ([]customer.APIKey, error) {
	query := `SELECT key, reason, op_token, issued_at FROM api_keys WHERE userid = $1 ORDER BY issued_at, key`
	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get api keys: %w", wrapPgErr(err))
	}
	defer rows.Close()

	var keys []customer.APIKey
	for rows.Next() {
		var k customer.APIKey
		if err := rows.Scan(&k.Key, &k.Reason, &k.OpToken, &k.IssuedAt); err != nil {
			return nil, fmt.Errorf("failed to scan api key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read api keys: %w", wrapPgErr(err))
	}
	return keys, nil
}

func (s *PostgresStore) gamesFor(ctx context.Context, userID int64) ([]int64, error) {
	query := `SELECT gameid FROM whitelist WHERE userid = $1 ORDER BY gameid`
	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get whitelist: %w", wrapPgErr(err))
	}
	defer rows.Close()

	var games []int64
	for rows.Next() {
		var g int64
		if err := rows.Scan(&g); err != nil {
			return nil, fmt.Errorf("failed to scan whitelist entry: %w", err)
		}
		games = append(games, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read whitelist: %w", wrapPgErr(err))
	}
	return games, nil
}

func (s *PostgresStore) CreateRecord(ctx context.Context, rec *customer.Record) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", wrapPgErr(err))
	}
	defer tx.Rollback(ctx)

	insertCustomer := `INSERT INTO customers (userid, username, quota, last_usage) VALUES ($1, $2, $3, $4)`
	if _, err := tx.Exec(ctx, insertCustomer, rec.UserID, rec.Username, rec.Quota, rec.LastUsage); err != nil {
		if isPgCode(err, pgUniqueViolation) {
			return ErrExists
		}
		return fmt.Errorf("failed to insert customer: %w", wrapPgErr(err))
	}

	insertKey := `INSERT INTO api_keys (key, userid, reason, op_token, issued_at) VALUES ($1, $2, $3, $4, $5)`
	for _, k := range rec.APIKeys {
		if _, err := tx.Exec(ctx, insertKey, k.Key, rec.UserID, k.Reason, k.OpToken, k.IssuedAt); err != nil {
			return fmt.Errorf("failed to insert api key: %w", wrapPgErr(err))
		}
	}

	insertGame := `INSERT INTO whitelist (userid, gameid) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	for _, g := range rec.Whitelist {
		if _, err := tx.Exec(ctx, insertGame, rec.UserID, g); err != nil {
			return fmt.Errorf("failed to insert whitelist entry: %w", wrapPgErr(err))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit customer: %w", wrapPgErr(err))
	}
	return nil
}

func (s *PostgresStore) AddQuota(ctx context.Context, userID int64, days int64) (int64, error) {
	// Single-statement increment; concurrent renewals for the same user
	// serialize on the row and both land.
	query := `UPDATE customers SET quota = quota + $2 WHERE userid = $1 RETURNING quota`
	var newQuota int64
	err := s.db.QueryRow(ctx, query, userID, days).Scan(&newQuota)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("failed to extend quota: %w", wrapPgErr(err))
	}
	return newQuota, nil
}

func (s *PostgresStore) FindByKey(ctx context.Context, key string) (*customer.Record, *customer.APIKey, error) {
	var (
		userID int64
		entry  customer.APIKey
	)
	query := `SELECT userid, key, reason, op_token, issued_at FROM api_keys WHERE key = $1`
	err := s.db.QueryRow(ctx, query, key).Scan(&userID, &entry.Key, &entry.Reason, &entry.OpToken, &entry.IssuedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("failed to look up api key: %w", wrapPgErr(err))
	}

	rec, err := s.GetRecord(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	return rec, &entry, nil
}

func (s *PostgresStore) RotateKeys(ctx context.Context, userID int64, reason string, replacement customer.APIKey) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", wrapPgErr(err))
	}
	defer tx.Rollback(ctx)

	// Lock the customer row so concurrent rotations for one user serialize.
	var exists int
	err = tx.QueryRow(ctx, `SELECT 1 FROM customers WHERE userid = $1 FOR UPDATE`, userID).Scan(&exists)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to lock customer: %w", wrapPgErr(err))
	}

	// Invalidates every live key, not just the expected single one, so a
	// data anomaly with two live keys is repaired instead of propagated.
	invalidate := `UPDATE api_keys SET reason = $2 WHERE userid = $1 AND reason IS NULL`
	if _, err := tx.Exec(ctx, invalidate, userID, reason); err != nil {
		return fmt.Errorf("failed to invalidate keys: %w", wrapPgErr(err))
	}

	insert := `INSERT INTO api_keys (key, userid, reason, op_token, issued_at) VALUES ($1, $2, NULL, $3, $4)`
	if _, err := tx.Exec(ctx, insert, replacement.Key, userID, replacement.OpToken, replacement.IssuedAt); err != nil {
		return fmt.Errorf("failed to insert replacement key: %w", wrapPgErr(err))
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit key rotation: %w", wrapPgErr(err))
	}
	return nil
}

func (s *PostgresStore) DeleteRecord(ctx context.Context, userID int64) error {
	// api_keys and whitelist rows go with the customer via ON DELETE CASCADE.
	tag, err := s.db.Exec(ctx, `DELETE FROM customers WHERE userid = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete customer: %w", wrapPgErr(err))
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) AddGame(ctx context.Context, userID, gameID int64) error {
	query := `INSERT INTO whitelist (userid, gameid) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	if _, err := s.db.Exec(ctx, query, userID, gameID); err != nil {
		if isPgCode(err, pgForeignKeyViolation) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to add whitelist entry: %w", wrapPgErr(err))
	}
	return nil
}

func (s *PostgresStore) RemoveGame(ctx context.Context, userID, gameID int64) error {
	var exists int
	err := s.db.QueryRow(ctx, `SELECT 1 FROM customers WHERE userid = $1`, userID).Scan(&exists)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to check customer: %w", wrapPgErr(err))
	}

	if _, err := s.db.Exec(ctx, `DELETE FROM whitelist WHERE userid = $1 AND gameid = $2`, userID, gameID); err != nil {
		return fmt.Errorf("failed to remove whitelist entry: %w", wrapPgErr(err))
	}
	return nil
}

func (s *PostgresStore) TouchUsage(ctx context.Context, userID int64, at time.Time) error {
	if _, err := s.db.Exec(ctx, `UPDATE customers SET last_usage = $2 WHERE userid = $1`, userID, at); err != nil {
		return fmt.Errorf("failed to stamp last usage: %w", wrapPgErr(err))
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *PostgresStore) Close() {
	s.db.Close()
}

// wrapPgErr folds timeouts and connection failures into ErrUnavailable so
// callers can map them without knowing pgx.
func wrapPgErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || pgconn.Timeout(err) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}

func isPgCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
