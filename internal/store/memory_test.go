package store

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryAppendAssignsSequentialIDs(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	first, err := m.Append(ctx, "alice", "hi")
	require.NoError(t, err)
	second, err := m.Append(ctx, "bob", "hello")
	require.NoError(t, err)

	require.Equal(t, int64(1), first)
	require.Equal(t, int64(2), second)

	notified, err := m.Notified(ctx, first)
	require.NoError(t, err)
	require.False(t, notified)
}

func TestMemoryRecentReturnsNewestOldestFirst(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	for _, content := range []string{"one", "two", "three", "four"} {
		_, err := m.Append(ctx, "alice", content)
		require.NoError(t, err)
	}

	recent, err := m.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	require.Equal(t, "three", recent[0].Content)
	require.Equal(t, "four", recent[1].Content)

	all, err := m.Recent(ctx, 100)
	require.NoError(t, err)
	require.Len(t, all, 4)
	require.Equal(t, "one", all[0].Content)
}

func TestMemoryClaimHasSingleWinner(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	id, err := m.Append(ctx, "alice", "hi")
	require.NoError(t, err)

	const claimants = 50
	var wg sync.WaitGroup
	wins := make(chan bool, claimants)

	for i := 0; i < claimants; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			won, err := m.ClaimNotification(ctx, id)
			require.NoError(t, err)
			wins <- won
		}()
	}
	wg.Wait()
	close(wins)

	winners := 0
	for won := range wins {
		if won {
			winners++
		}
	}
	require.Equal(t, 1, winners)
}

func TestMemoryNotifiedNeverReverts(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	id, err := m.Append(ctx, "alice", "hi")
	require.NoError(t, err)

	won, err := m.ClaimNotification(ctx, id)
	require.NoError(t, err)
	require.True(t, won)

	// Repeated claims and repeated sets must leave the flag true.
	won, err = m.ClaimNotification(ctx, id)
	require.NoError(t, err)
	require.False(t, won)
	require.NoError(t, m.SetNotified(ctx, id))

	notified, err := m.Notified(ctx, id)
	require.NoError(t, err)
	require.True(t, notified)
}

func TestMemoryUnknownID(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, err := m.Notified(ctx, 42)
	require.ErrorIs(t, err, ErrNotFound)

	err = m.SetNotified(ctx, 42)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = m.ClaimNotification(ctx, 42)
	require.ErrorIs(t, err, ErrNotFound)
}
