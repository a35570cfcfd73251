package push

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"pushchat/internal/store"
)

func TestClaimAuthorizesExactlyOnce(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	id, err := m.Append(ctx, "alice", "hi")
	require.NoError(t, err)

	c := NewCoordinator(m)

	const claimants = 32
	var wg sync.WaitGroup
	wins := make(chan bool, claimants)

	for i := 0; i < claimants; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			won, err := c.Claim(ctx, id)
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

	notified, err := m.Notified(ctx, id)
	require.NoError(t, err)
	require.True(t, notified)
}
