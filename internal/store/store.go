// Package store is the persistence adapter for customer records. The
// entitlement service only talks to the Store interface; the concrete driver
// (postgres or memory) is picked at startup.
package store

import (
	"context"
	"errors"
	"time"

	"streamxAPI/internal/customer"
)

var (
	ErrNotFound = errors.New("customer not found")
	// ErrExists is returned by CreateRecord when the user ID is already
	// taken, which callers treat as "lost the creation race, renew instead".
	ErrExists      = errors.New("customer already exists")
	ErrUnavailable = errors.New("store unavailable")
)

// Store is the contract every driver implements. All mutations are atomic
// per user ID: concurrent calls for the same user serialize inside the
// driver, never behind a process-wide lock.
type Store interface {
	// GetRecord returns the full record or ErrNotFound.
	GetRecord(ctx context.Context, userID int64) (*customer.Record, error)

	// CreateRecord inserts a brand new record (including its initial keys
	// and whitelist). Returns ErrExists if the user ID is taken.
	CreateRecord(ctx context.Context, rec *customer.Record) error

	// AddQuota atomically extends a customer's quota and returns the new
	// value. Returns ErrNotFound if the record is absent.
	AddQuota(ctx context.Context, userID int64, days int64) (int64, error)

	// FindByKey resolves an API key to its owning record and the matching
	// key entry. Returns ErrNotFound for unknown keys.
	FindByKey(ctx context.Context, key string) (*customer.Record, *customer.APIKey, error)

	// RotateKeys invalidates every currently-live key with the given reason
	// and appends the replacement, as a single atomic transition. Returns
	// ErrNotFound if the record is absent.
	RotateKeys(ctx context.Context, userID int64, reason string, replacement customer.APIKey) error

	// DeleteRecord removes the record and every derived key/whitelist entry.
	// Returns ErrNotFound if the record is absent, including on repeat.
	DeleteRecord(ctx context.Context, userID int64) error

	// AddGame adds a game ID to the whitelist with set semantics: adding a
	// present ID is a no-op success. Returns ErrNotFound if the record is
	// absent.
	AddGame(ctx context.Context, userID, gameID int64) error

	// RemoveGame removes a game ID from the whitelist; removing an absent ID
	// is a no-op success. Returns ErrNotFound if the record is absent.
	RemoveGame(ctx context.Context, userID, gameID int64) error

	// TouchUsage stamps the record's last-usage time. Informational only.
	TouchUsage(ctx context.Context, userID int64, at time.Time) error

	Ping(ctx context.Context) error
	Close()
}
