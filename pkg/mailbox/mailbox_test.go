package mailbox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/platsvc/pkg/errs"
)

type testMessage struct {
	id       uint16
	priority int
	payload  string
}

func (m testMessage) ID() uint16     { return m.id }
func (m testMessage) Priority() int  { return m.priority }
func (m testMessage) Version() uint8 { return 1 }
func (m testMessage) Serialize() ([]byte, error) {
	return []byte(m.payload), nil
}

// TestMailboxPriorityOrder posts messages with priorities [1,5,1,3] and
// ids [A,B,C,D] in that order and checks they dequeue as [B,D,A,C]:
// higher priority first, FIFO among equal priorities.
func TestMailboxPriorityOrder(t *testing.T) {
	mb, owner := NewLocalMailbox("priority-test", 0)
	require.NoError(t, mb.Activate(owner))

	posts := []testMessage{
		{id: 1, priority: 1, payload: "A"},
		{id: 2, priority: 5, payload: "B"},
		{id: 3, priority: 1, payload: "C"},
		{id: 4, priority: 3, payload: "D"},
	}
	for _, m := range posts {
		require.NoError(t, mb.Post(m, 0))
	}

	var order []string
	for i := 0; i < len(posts); i++ {
		msg, err := mb.GetMessageNonBlocking()
		require.NoError(t, err)
		order = append(order, string(msg.(testMessage).payload))
	}
	require.Equal(t, []string{"B", "D", "A", "C"}, order)
}

func TestMailboxPostBeforeActivateFails(t *testing.T) {
	mb, _ := NewLocalMailbox("inactive-test", 0)
	err := mb.Post(testMessage{id: 1}, 0)
	require.ErrorIs(t, err, errs.ErrNotActive)
}

func TestMailboxGetMessageBlocksThenWakes(t *testing.T) {
	mb, owner := NewLocalMailbox("blocking-test", 0)
	require.NoError(t, mb.Activate(owner))

	result := make(chan Message, 1)
	go func() {
		msg, err := mb.GetMessage(2 * time.Second)
		if err == nil {
			result <- msg
		}
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, mb.Post(testMessage{id: 7, payload: "woke"}, 0))

	select {
	case msg := <-result:
		require.Equal(t, "woke", msg.(testMessage).payload)
	case <-time.After(3 * time.Second):
		t.Fatal("GetMessage never woke for the posted message")
	}
}

func TestLookupServiceRegisterFindDeregister(t *testing.T) {
	mb, owner := NewLocalMailbox("looked-up", 0)
	require.NoError(t, mb.Activate(owner))

	lookup := NewLookupService()
	lookup.Register(owner, mb)

	handle, err := lookup.Find("looked-up")
	require.NoError(t, err)
	require.NoError(t, handle.Post(testMessage{id: 9, payload: "via-lookup"}))

	msg, err := mb.GetMessageNonBlocking()
	require.NoError(t, err)
	require.Equal(t, "via-lookup", msg.(testMessage).payload)

	lookup.Deregister(owner)
	_, err = lookup.Find("looked-up")
	require.Error(t, err)
}

func TestRegistryDecodesRegisteredMessage(t *testing.T) {
	reg := NewRegistry()
	reg.Register(42, func(buf []byte) (Message, error) {
		return testMessage{id: 42, payload: string(buf)}, nil
	})
	msg, err := reg.Decode(42, []byte("hello"))
	require.NoError(t, err)
	require.Equal(t, "hello", msg.(testMessage).payload)

	_, err = reg.Decode(999, nil)
	require.Error(t, err)
}
