package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"streamxAPI/internal/apikey"
	"streamxAPI/internal/customer"
	"streamxAPI/internal/logger"
	"streamxAPI/internal/store"
)

var (
	ErrInvalidIdentifier = errors.New("invalid identifier")
	ErrMissingArgument   = errors.New("missing required argument")
)

// CustomerService owns the entitlement state machine: subscription records,
// key lifecycle, quota and whitelist. It holds no mutable state of its own;
// every atomicity guarantee comes from the store.
type CustomerService struct {
	store store.Store
}

func NewCustomerService(st store.Store) *CustomerService {
	return &CustomerService{store: st}
}

func validUserID(userID int64) bool {
	return userID > 0 && userID <= customer.MaxUserID
}

// Activate creates a customer on first call and extends quota on every call
// after that. Renewal is an atomic increment: two concurrent renewals both
// land. Renewal never rotates the key and never touches username or
// whitelist.
func (s *CustomerService) Activate(ctx context.Context, userID int64, username string, days int64) (*customer.ActivateResult, error) {
	if !validUserID(userID) {
		return nil, fmt.Errorf("%w: userid %d", ErrInvalidIdentifier, userID)
	}
	if days <= 0 {
		return nil, fmt.Errorf("%w: expires must be positive", ErrInvalidIdentifier)
	}

	_, err := s.store.GetRecord(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		if username == "" {
			return nil, fmt.Errorf("%w: username", ErrMissingArgument)
		}
		key, err := apikey.New()
		if err != nil {
			return nil, err
		}
		rec := &customer.Record{
			UserID:   userID,
			Username: username,
			Quota:    days,
			APIKeys: []customer.APIKey{{
				Key:      key,
				OpToken:  uuid.NewString(),
				IssuedAt: time.Now().UTC(),
			}},
		}
		err = s.store.CreateRecord(ctx, rec)
		if err == nil {
			logger.Info("customer activated",
				zap.Int64("userid", userID),
				zap.Int64("quota", days),
				zap.String("apikey", truncateKey(key)))
			return &customer.ActivateResult{Created: true, APIKey: key, Quota: days}, nil
		}
		if !errors.Is(err, store.ErrExists) {
			return nil, err
		}
		// Lost the creation race; fall through and renew instead.
	} else if err != nil {
		return nil, err
	}

	newQuota, err := s.store.AddQuota(ctx, userID, days)
	if err != nil {
		return nil, err
	}
	logger.Info("customer renewed",
		zap.Int64("userid", userID),
		zap.Int64("days", days),
		zap.Int64("quota", newQuota))
	return &customer.ActivateResult{
		Created:  false,
		OldQuota: newQuota - days,
		NewQuota: newQuota,
	}, nil
}

// CheckKeyActive reports whether an API key currently grants access. A key
// is active iff it carries no invalidation reason AND its owner still has
// quota; an unknown key is inactive, not an error. Hits on a live key stamp
// the owner's last-usage time, best effort.
func (s *CustomerService) CheckKeyActive(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, fmt.Errorf("%w: key", ErrMissingArgument)
	}

	rec, entry, err := s.store.FindByKey(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	active := entry.Live() && rec.Quota > 0
	if active {
		if err := s.store.TouchUsage(ctx, rec.UserID, time.Now().UTC()); err != nil {
			logger.Warn("failed to stamp last usage", zap.Int64("userid", rec.UserID), zap.Error(err))
		}
	}
	return active, nil
}

// Invalidate is the sole key-rotation path: it revokes every currently-live
// key with the given reason and issues exactly one replacement, as a single
// atomic transition. The replacement carries a fresh operation token, so a
// retried request after a timeout is distinguishable from a second rotation.
func (s *CustomerService) Invalidate(ctx context.Context, userID int64, reason string) (string, error) {
	if !validUserID(userID) {
		return "", fmt.Errorf("%w: userid %d", ErrInvalidIdentifier, userID)
	}
	if reason == "" {
		return "", fmt.Errorf("%w: reason", ErrMissingArgument)
	}

	key, err := apikey.New()
	if err != nil {
		return "", err
	}
	replacement := customer.APIKey{
		Key:      key,
		OpToken:  uuid.NewString(),
		IssuedAt: time.Now().UTC(),
	}
	if err := s.store.RotateKeys(ctx, userID, reason, replacement); err != nil {
		return "", err
	}
	logger.Info("api key rotated",
		zap.Int64("userid", userID),
		zap.String("reason", reason),
		zap.String("apikey", truncateKey(key)))
	return key, nil
}

// Delete removes the customer and every derived key and whitelist entry.
// Repeat deletes report not-found, never success.
func (s *CustomerService) Delete(ctx context.Context, userID int64) error {
	if !validUserID(userID) {
		return fmt.Errorf("%w: userid %d", ErrInvalidIdentifier, userID)
	}
	if err := s.store.DeleteRecord(ctx, userID); err != nil {
		return err
	}
	logger.Info("customer deleted", zap.Int64("userid", userID))
	return nil
}

// WhitelistAdd covers a game with the customer's entitlement. Set semantics:
// adding a present ID is a no-op success.
func (s *CustomerService) WhitelistAdd(ctx context.Context, userID, gameID int64) error {
	if !validUserID(userID) {
		return fmt.Errorf("%w: userid %d", ErrInvalidIdentifier, userID)
	}
	if gameID <= 0 {
		return fmt.Errorf("%w: gameid %d", ErrInvalidIdentifier, gameID)
	}
	return s.store.AddGame(ctx, userID, gameID)
}

// WhitelistRemove uncovers a game; removing an absent ID is a no-op success.
func (s *CustomerService) WhitelistRemove(ctx context.Context, userID, gameID int64) error {
	if !validUserID(userID) {
		return fmt.Errorf("%w: userid %d", ErrInvalidIdentifier, userID)
	}
	if gameID <= 0 {
		return fmt.Errorf("%w: gameid %d", ErrInvalidIdentifier, gameID)
	}
	return s.store.RemoveGame(ctx, userID, gameID)
}

// GetInfo returns the customer's full record.
func (s *CustomerService) GetInfo(ctx context.Context, userID int64) (*customer.Record, error) {
	if !validUserID(userID) {
		return nil, fmt.Errorf("%w: userid %d", ErrInvalidIdentifier, userID)
	}
	return s.store.GetRecord(ctx, userID)
}

// Ping reports store reachability for the health endpoint.
func (s *CustomerService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// truncateKey keeps full key material out of the logs.
func truncateKey(key string) string {
	if len(key) <= 11 {
		return key
	}
	return key[:11] + "..."
}
