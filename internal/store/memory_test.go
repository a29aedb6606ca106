package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamxAPI/internal/customer"
)

func seedRecord(t *testing.T, st *MemoryStore, userID int64) {
	t.Helper()
	err := st.CreateRecord(context.Background(), &customer.Record{
		UserID:   userID,
		Username: "seed",
		Quota:    10,
		APIKeys:  []customer.APIKey{{Key: fmt.Sprintf("sx-seed-%d", userID), IssuedAt: time.Now()}},
	})
	require.NoError(t, err)
}

func TestCreateRecordRace(t *testing.T) {
	st := NewMemoryStore()
	seedRecord(t, st, 1)

	err := st.CreateRecord(context.Background(), &customer.Record{UserID: 1, Username: "again"})
	assert.ErrorIs(t, err, ErrExists)
}

func TestConcurrentAddQuotaLosesNothing(t *testing.T) {
	st := NewMemoryStore()
	seedRecord(t, st, 1)

	const workers = 50
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, err := st.AddQuota(context.Background(), 1, 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	rec, err := st.GetRecord(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(10+workers), rec.Quota)
}

func TestConcurrentRotationsKeepOneLiveKey(t *testing.T) {
	st := NewMemoryStore()
	seedRecord(t, st, 1)

	const rotations = 20
	var wg sync.WaitGroup
	wg.Add(rotations)
	for i := 0; i < rotations; i++ {
		i := i
		go func() {
			defer wg.Done()
			err := st.RotateKeys(context.Background(), 1, customer.ReasonRegen, customer.APIKey{
				Key:      fmt.Sprintf("sx-rot-%d", i),
				IssuedAt: time.Now(),
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	rec, err := st.GetRecord(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, rec.LiveKeys(), 1)
	assert.Len(t, rec.APIKeys, rotations+1)

	// Every key ever issued still resolves through the index.
	for _, k := range rec.APIKeys {
		got, entry, err := st.FindByKey(context.Background(), k.Key)
		require.NoError(t, err)
		assert.Equal(t, int64(1), got.UserID)
		assert.Equal(t, k.Key, entry.Key)
	}
}

func TestReturnedRecordsAreCopies(t *testing.T) {
	st := NewMemoryStore()
	seedRecord(t, st, 1)
	require.NoError(t, st.AddGame(context.Background(), 1, 100))

	rec, err := st.GetRecord(context.Background(), 1)
	require.NoError(t, err)
	rec.Whitelist[0] = 999
	rec.Quota = 0

	again, err := st.GetRecord(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{100}, again.Whitelist)
	assert.Equal(t, int64(10), again.Quota)
}

func TestDeleteDropsKeyIndex(t *testing.T) {
	st := NewMemoryStore()
	seedRecord(t, st, 1)

	require.NoError(t, st.DeleteRecord(context.Background(), 1))
	assert.ErrorIs(t, st.DeleteRecord(context.Background(), 1), ErrNotFound)

	_, _, err := st.FindByKey(context.Background(), "sx-seed-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWhitelistOrderIsStable(t *testing.T) {
	st := NewMemoryStore()
	seedRecord(t, st, 1)

	for _, g := range []int64{300, 100, 200, 100} {
		require.NoError(t, st.AddGame(context.Background(), 1, g))
	}
	rec, err := st.GetRecord(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{100, 200, 300}, rec.Whitelist)
}

func TestTouchUsage(t *testing.T) {
	st := NewMemoryStore()
	seedRecord(t, st, 1)

	at := time.Now().UTC()
	require.NoError(t, st.TouchUsage(context.Background(), 1, at))

	rec, err := st.GetRecord(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, rec.LastUsage)
	assert.True(t, rec.LastUsage.Equal(at))
}
