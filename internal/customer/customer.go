package customer

import (
	"time"
)

// MaxUserID bounds the platform user IDs we accept. Real IDs are well below
// this; anything larger is a malformed request, not a customer.
const MaxUserID = int64(10_000_000_000)

// Well-known invalidation reasons. The reason column is free-form so new
// codes can ship without a migration; these are the ones the operator CLI
// suggests.
const (
	ReasonAbuse = "abuse"
	ReasonRegen = "regen"
)

// APIKey is one entry in a customer's key history. A nil Reason means the key
// is live; a rotated or revoked key keeps its row with the reason set.
type APIKey struct {
	Key      string    `json:"key" db:"key"`
	Reason   *string   `json:"reason" db:"reason"`
	OpToken  string    `json:"-" db:"op_token"`
	IssuedAt time.Time `json:"issued_at" db:"issued_at"`
}

func (k APIKey) Live() bool {
	return k.Reason == nil
}

// Record is one customer's full entitlement state.
type Record struct {
	UserID    int64      `json:"userid" db:"userid"`
	Username  string     `json:"username" db:"username"`
	Quota     int64      `json:"quota" db:"quota"`
	APIKeys   []APIKey   `json:"apikeys"`
	Whitelist []int64    `json:"whitelist"`
	LastUsage *time.Time `json:"last_usage,omitempty" db:"last_usage"`
}

// LiveKeys returns the keys with no invalidation reason. Anything other than
// a single entry here is a data anomaly that Invalidate repairs.
func (r *Record) LiveKeys() []APIKey {
	var live []APIKey
	for _, k := range r.APIKeys {
		if k.Live() {
			live = append(live, k)
		}
	}
	return live
}

// Whitelisted reports whether a game ID is covered by the entitlement.
func (r *Record) Whitelisted(gameID int64) bool {
	for _, g := range r.Whitelist {
		if g == gameID {
			return true
		}
	}
	return false
}

// ActivateResult is the outcome of an activation request. APIKey and Quota
// are set on first activation; OldQuota/NewQuota on renewal.
type ActivateResult struct {
	Created  bool
	APIKey   string
	Quota    int64
	OldQuota int64
	NewQuota int64
}
