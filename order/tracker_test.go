package order

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fix-market-maker/fix"
)

func TestTrackerRegisterBindLookup(t *testing.T) {
	tr := NewTracker()
	o := newOrder("c1", fix.SideBuy, 100, 1, time.Now())
	tr.Register(o)

	got, ok := tr.ByClientID("c1")
	require.True(t, ok)
	assert.Same(t, o, got)
	_, ok = tr.ByExchangeID("e1")
	assert.False(t, ok)

	assert.True(t, tr.BindExchangeID("c1", "e1"))
	assert.False(t, tr.BindExchangeID("c1", "e2"), "binds only once")
	assert.False(t, tr.BindExchangeID("missing", "e3"))
	assert.Equal(t, "e1", o.ExchangeID())

	got, ok = tr.ByExchangeID("e1")
	require.True(t, ok)
	assert.Same(t, o, got)
	_, ok = tr.ByExchangeID("e2")
	assert.False(t, ok)
	assert.Equal(t, 1, tr.Len())
}

func TestTrackerRemoveIdempotent(t *testing.T) {
	tr := NewTracker()
	bound := newOrder("c1", fix.SideBuy, 100, 1, time.Now())
	unbound := newOrder("c2", fix.SideSell, 101, 1, time.Now())
	tr.Register(bound)
	tr.Register(unbound)
	tr.BindExchangeID("c1", "e1")

	tr.Remove(bound)
	tr.Remove(bound)
	tr.Remove(unbound)
	tr.Remove(unbound)

	assert.Equal(t, 0, tr.Len())
	_, ok := tr.ByExchangeID("e1")
	assert.False(t, ok)
}

func TestTrackerBindRacingRemoveLeavesNoIndex(t *testing.T) {
	tr := NewTracker()
	for i := 0; i < 2000; i++ {
		id := "c" + strconv.Itoa(i)
		o := newOrder(id, fix.SideBuy, 100, 1, time.Now())
		tr.Register(o)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			tr.BindExchangeID(id, "e"+id)
		}()
		go func() {
			defer wg.Done()
			tr.Remove(o)
		}()
		wg.Wait()

		_, ok := tr.ByExchangeID("e" + id)
		require.False(t, ok, "stale exchange index for %s", id)
	}
	assert.Equal(t, 0, tr.Len())
}

func TestTrackerBindAfterRemove(t *testing.T) {
	tr := NewTracker()
	o := newOrder("c1", fix.SideBuy, 100, 1, time.Now())
	tr.Register(o)
	tr.Remove(o)

	assert.False(t, tr.BindExchangeID("c1", "e1"))
	_, ok := tr.ByExchangeID("e1")
	assert.False(t, ok)
	assert.Empty(t, o.ExchangeID())
}

func TestTrackerConcurrentAccess(t *testing.T) {
	tr := NewTracker()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			o := newOrder("c"+strconv.Itoa(i), fix.SideBuy, 1, 1, time.Now())
			tr.Register(o)
			tr.BindExchangeID(o.ClientID, "x"+o.ClientID)
			tr.ByExchangeID("x" + o.ClientID)
			tr.Remove(o)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 0, tr.Len())
}

func TestInboxFIFOAndWait(t *testing.T) {
	in := NewInbox()
	for _, id := range []string{"1", "2", "3"} {
		in.Push(fix.Message{fix.FieldClOrdID: id})
	}
	assert.Equal(t, 3, in.Len())

	ctx := context.Background()
	for _, want := range []string{"1", "2", "3"} {
		msg, err := in.Wait(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, msg[fix.FieldClOrdID])
	}
	_, ok := in.TryPop()
	assert.False(t, ok)

	go func() {
		time.Sleep(10 * time.Millisecond)
		in.Push(fix.Message{fix.FieldClOrdID: "late"})
	}()
	msg, err := in.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, "late", msg[fix.FieldClOrdID])

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	_, err = in.Wait(cctx)
	assert.ErrorIs(t, err, context.Canceled)
}
