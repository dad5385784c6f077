package stellar

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequencerCache_LoadsOnceAndAdvances(t *testing.T) {
	cache := NewSequencerCache()

	loads := 0
	load := func() (int64, error) {
		loads++
		return 41, nil
	}

	var seen []int64
	submit := func(sequence int64) error {
		seen = append(seen, sequence)
		return nil
	}

	for i := 0; i < 3; i++ {
		require.NoError(t, cache.Submit("GACC", load, submit))
	}

	assert.Equal(t, 1, loads)
	assert.Equal(t, []int64{41, 42, 43}, seen)
}

func TestSequencerCache_FailedSubmitDoesNotAdvance(t *testing.T) {
	cache := NewSequencerCache()

	load := func() (int64, error) { return 10, nil }
	attempt := 0

	err := cache.Submit("GACC", load, func(sequence int64) error {
		attempt++
		return errors.New("boom")
	})
	require.Error(t, err)

	var sequence int64
	require.NoError(t, cache.Submit("GACC", load, func(s int64) error {
		sequence = s
		return nil
	}))

	assert.Equal(t, int64(10), sequence, "failed submission must not consume the sequence number")
}

func TestSequencerCache_BadSequenceForcesReload(t *testing.T) {
	cache := NewSequencerCache()

	loads := 0
	load := func() (int64, error) {
		loads++
		return int64(100 * loads), nil
	}

	err := cache.Submit("GACC", load, func(sequence int64) error {
		return rejectionError("tx_bad_seq")
	})
	require.Error(t, err)

	var sequence int64
	require.NoError(t, cache.Submit("GACC", load, func(s int64) error {
		sequence = s
		return nil
	}))

	assert.Equal(t, 2, loads)
	assert.Equal(t, int64(200), sequence)
}

func TestSequencerCache_LoadErrorPropagates(t *testing.T) {
	cache := NewSequencerCache()

	wantErr := errors.New("unreachable")
	err := cache.Submit("GACC", func() (int64, error) { return 0, wantErr }, func(int64) error {
		t.Fatal("submit must not run when the load fails")
		return nil
	})

	assert.ErrorIs(t, err, wantErr)
}

func TestSequencerCache_SerializesPerAccount(t *testing.T) {
	cache := NewSequencerCache()

	load := func() (int64, error) { return 0, nil }

	var mu sync.Mutex
	seen := make(map[int64]bool)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = cache.Submit("GACC", load, func(sequence int64) error {
				mu.Lock()
				defer mu.Unlock()
				seen[sequence] = true
				return nil
			})
		}()
	}
	wg.Wait()

	// every submission observed a distinct sequence number
	assert.Len(t, seen, 20)
}

func TestSequencerCache_EvictDropsAccount(t *testing.T) {
	cache := NewSequencerCache()

	loads := 0
	load := func() (int64, error) {
		loads++
		return 7, nil
	}
	noop := func(int64) error { return nil }

	require.NoError(t, cache.Submit("GACC", load, noop))
	cache.Evict("GACC")
	require.NoError(t, cache.Submit("GACC", load, noop))

	assert.Equal(t, 2, loads)
}
