package arena

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/platsvc/pkg/errs"
)

func newTestQueue(t *testing.T, name string) *Queue[string] {
	t.Helper()
	a, err := Open("")
	require.NoError(t, err)
	mu, err := NewProcessMutex(name, "")
	require.NoError(t, err)
	sem := NewSemaphore(name)
	codec := Codec[string]{
		Marshal:   func(s string) ([]byte, error) { return json.Marshal(s) },
		Unmarshal: func(b []byte) (string, error) { var s string; err := json.Unmarshal(b, &s); return s, err },
	}
	return NewQueue(a, name, mu, sem, codec)
}

func TestQueueFIFOOrder(t *testing.T) {
	q := newTestQueue(t, "TestQueue")
	require.NoError(t, q.EnqueueTail("a"))
	require.NoError(t, q.EnqueueTail("b"))
	require.NoError(t, q.EnqueueTail("c"))

	for _, want := range []string{"a", "b", "c"} {
		got, err := q.DequeueHead()
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	_, err := q.DequeueHead()
	require.ErrorIs(t, err, errs.ErrQueueEmpty)
}

func TestQueueIsEmptyAndClear(t *testing.T) {
	q := newTestQueue(t, "TestQueue2")
	require.True(t, q.IsEmpty())
	require.NoError(t, q.EnqueueTail("x"))
	require.False(t, q.IsEmpty())
	q.Clear()
	require.True(t, q.IsEmpty())
}

func TestQueueSemaphoreWakesConsumer(t *testing.T) {
	q := newTestQueue(t, "TestQueue3")

	done := make(chan string, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := q.Semaphore().Wait(ctx); err != nil {
			done <- ""
			return
		}
		v, err := q.DequeueHead()
		if err != nil {
			done <- ""
			return
		}
		done <- v
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, q.EnqueueTail("woke"))

	select {
	case v := <-done:
		require.Equal(t, "woke", v)
	case <-time.After(3 * time.Second):
		t.Fatal("consumer never woke")
	}
}

func TestArenaBindFindOneShot(t *testing.T) {
	a, err := Open("")
	require.NoError(t, err)
	ref, err := a.Allocate(16)
	require.NoError(t, err)
	require.NoError(t, a.Bind("Thing", ref))

	found, ok := a.Find("Thing")
	require.True(t, ok)
	require.Equal(t, ref, found)

	err = a.Bind("Thing", ref)
	require.Error(t, err)
}

func TestArenaGrowsBeyondInitialCapacity(t *testing.T) {
	a, err := Open("")
	require.NoError(t, err)
	for i := 0; i < 2000; i++ {
		_, err := a.Allocate(4096)
		require.NoError(t, err)
	}
}
