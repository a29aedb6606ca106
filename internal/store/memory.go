package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"streamxAPI/internal/customer"
)

// MemoryStore keeps everything in process memory. It backs the test suite
// and the STORE_DRIVER=memory dev mode; data does not survive a restart.
type MemoryStore struct {
	records  map[int64]*customer.Record
	keyOwner map[string]int64
	mu       sync.RWMutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:  make(map[int64]*customer.Record),
		keyOwner: make(map[string]int64),
	}
}

func (m *MemoryStore) GetRecord(ctx context.Context, userID int64) (*customer.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, exists := m.records[userID]
	if !exists {
		return nil, ErrNotFound
	}
	return copyRecord(rec), nil
}

func (m *MemoryStore) CreateRecord(ctx context.Context, rec *customer.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.records[rec.UserID]; exists {
		return ErrExists
	}
	stored := copyRecord(rec)
	sort.Slice(stored.Whitelist, func(i, j int) bool { return stored.Whitelist[i] < stored.Whitelist[j] })
	m.records[rec.UserID] = stored
	for _, k := range stored.APIKeys {
		m.keyOwner[k.Key] = rec.UserID
	}
	return nil
}

func (m *MemoryStore) AddQuota(ctx context.Context, userID int64, days int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, exists := m.records[userID]
	if !exists {
		return 0, ErrNotFound
	}
	rec.Quota += days
	return rec.Quota, nil
}

func (m *MemoryStore) FindByKey(ctx context.Context, key string) (*customer.Record, *customer.APIKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	userID, exists := m.keyOwner[key]
	if !exists {
		return nil, nil, ErrNotFound
	}
	rec, exists := m.records[userID]
	if !exists {
		return nil, nil, ErrNotFound
	}
	out := copyRecord(rec)
	for i := range out.APIKeys {
		if out.APIKeys[i].Key == key {
			return out, &out.APIKeys[i], nil
		}
	}
	return nil, nil, ErrNotFound
}

func (m *MemoryStore) RotateKeys(ctx context.Context, userID int64, reason string, replacement customer.APIKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, exists := m.records[userID]
	if !exists {
		return ErrNotFound
	}
	for i := range rec.APIKeys {
		if rec.APIKeys[i].Live() {
			r := reason
			rec.APIKeys[i].Reason = &r
		}
	}
	rec.APIKeys = append(rec.APIKeys, replacement)
	m.keyOwner[replacement.Key] = userID
	return nil
}

func (m *MemoryStore) DeleteRecord(ctx context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, exists := m.records[userID]
	if !exists {
		return ErrNotFound
	}
	for _, k := range rec.APIKeys {
		delete(m.keyOwner, k.Key)
	}
	delete(m.records, userID)
	return nil
}

func (m *MemoryStore) AddGame(ctx context.Context, userID, gameID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, exists := m.records[userID]
	if !exists {
		return ErrNotFound
	}
	if rec.Whitelisted(gameID) {
		return nil
	}
	rec.Whitelist = append(rec.Whitelist, gameID)
	sort.Slice(rec.Whitelist, func(i, j int) bool { return rec.Whitelist[i] < rec.Whitelist[j] })
	return nil
}

func (m *MemoryStore) RemoveGame(ctx context.Context, userID, gameID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, exists := m.records[userID]
	if !exists {
		return ErrNotFound
	}
	for i, g := range rec.Whitelist {
		if g == gameID {
			rec.Whitelist = append(rec.Whitelist[:i], rec.Whitelist[i+1:]...)
			break
		}
	}
	return nil
}

func (m *MemoryStore) TouchUsage(ctx context.Context, userID int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rec, exists := m.records[userID]; exists {
		t := at
		rec.LastUsage = &t
	}
	return nil
}

func (m *MemoryStore) Ping(ctx context.Context) error { return nil }

func (m *MemoryStore) Close() {}

// copyRecord deep-copies a record so callers never share slices with the
// stored state.
func copyRecord(rec *customer.Record) *customer.Record {
	out := &customer.Record{
		UserID:   rec.UserID,
		Username: rec.Username,
		Quota:    rec.Quota,
	}
	if rec.LastUsage != nil {
		t := *rec.LastUsage
		out.LastUsage = &t
	}
	out.APIKeys = make([]customer.APIKey, len(rec.APIKeys))
	for i, k := range rec.APIKeys {
		out.APIKeys[i] = k
		if k.Reason != nil {
			r := *k.Reason
			out.APIKeys[i].Reason = &r
		}
	}
	out.Whitelist = append([]int64(nil), rec.Whitelist...)
	return out
}
