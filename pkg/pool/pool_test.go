package pool

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPoolReserveReleaseRoundTrip(t *testing.T) {
	p := New(Config{InitialSize: 2, HighWater: 2}, func() []byte { return make([]byte, 4) }, nil)

	ctx := context.Background()
	a, err := p.Reserve(ctx)
	require.NoError(t, err)
	b, err := p.Reserve(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, p.Outstanding())

	p.Release(a)
	p.Release(b)
	require.Equal(t, 0, p.Outstanding())
}

func TestPoolBlocksAtHighWaterUntilRelease(t *testing.T) {
	p := New(Config{InitialSize: 1, HighWater: 1}, func() []byte { return make([]byte, 4) }, nil)
	ctx := context.Background()

	v, err := p.Reserve(ctx)
	require.NoError(t, err)

	reserved := make(chan struct{})
	go func() {
		_, err := p.Reserve(context.Background())
		require.NoError(t, err)
		close(reserved)
	}()

	select {
	case <-reserved:
		t.Fatal("second reserve should have blocked at HighWater=1")
	case <-time.After(50 * time.Millisecond):
	}

	p.Release(v)

	select {
	case <-reserved:
	case <-time.After(2 * time.Second):
		t.Fatal("second reserve never unblocked after release")
	}
}
