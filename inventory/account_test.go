package inventory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakySource struct {
	mu     sync.Mutex
	fails  int
	calls  int
	result Holdings
}

func (f *flakySource) Balances(ctx context.Context) (Holdings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.fails {
		return Holdings{}, errors.New("malformed accounts payload")
	}
	return f.result, nil
}

func TestFillAccounting(t *testing.T) {
	a := NewAccount(Holdings{Quote: 1000, Base: 1})
	a.Bought(100, 2)
	assert.Equal(t, Holdings{Quote: 800, Base: 3}, a.Snapshot())
	a.Sold(110, 1)
	assert.Equal(t, Holdings{Quote: 910, Base: 2}, a.Snapshot())

	// 非正数增量不改变持仓
	a.Bought(100, 0)
	a.Sold(100, -1)
	assert.Equal(t, Holdings{Quote: 910, Base: 2}, a.Snapshot())
}

func TestListenerSeesEveryMutation(t *testing.T) {
	a := NewAccount(Holdings{Quote: 10})
	var got []Holdings
	a.SetListener(func(h Holdings) { got = append(got, h) })
	a.Bought(1, 1)
	require.NoError(t, a.Resync(context.Background(), &flakySource{result: Holdings{Quote: 5, Base: 5}}, Retry{Delay: time.Millisecond}))
	assert.Equal(t, []Holdings{{Quote: 9, Base: 1}, {Quote: 5, Base: 5}}, got)
}

func TestResyncRetriesUntilWellFormed(t *testing.T) {
	src := &flakySource{fails: 3, result: Holdings{Quote: 42, Base: 0.5}}
	a := NewAccount(Holdings{Quote: 1, Base: 1})
	failures := 0
	err := a.Resync(context.Background(), src, Retry{Delay: time.Millisecond, OnFailure: func(error) { failures++ }})
	require.NoError(t, err)
	assert.Equal(t, 4, src.calls)
	assert.Equal(t, 3, failures)
	assert.Equal(t, Holdings{Quote: 42, Base: 0.5}, a.Snapshot())
}

func TestResyncHoldsLock(t *testing.T) {
	src := &blockingSource{release: make(chan struct{}), started: make(chan struct{})}
	a := NewAccount(Holdings{})
	done := make(chan struct{})
	go func() {
		_ = a.Resync(context.Background(), src, Retry{})
		close(done)
	}()
	<-src.started

	locked := make(chan struct{})
	go func() {
		a.WithLock(func(Holdings) {})
		close(locked)
	}()
	select {
	case <-locked:
		t.Fatal("account lock acquired while resync in progress")
	case <-time.After(50 * time.Millisecond):
	}
	close(src.release)
	<-done
	<-locked
	assert.Equal(t, Holdings{Quote: 7, Base: 7}, a.Snapshot())
}

type blockingSource struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingSource) Balances(ctx context.Context) (Holdings, error) {
	close(b.started)
	<-b.release
	return Holdings{Quote: 7, Base: 7}, nil
}

func TestResyncStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := &flakySource{fails: 1 << 30}
	a := NewAccount(Holdings{Quote: 3})
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	err := a.Resync(ctx, src, Retry{Delay: 5 * time.Millisecond})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Holdings{Quote: 3}, a.Snapshot())
}

func TestValuation(t *testing.T) {
	h := Holdings{Quote: 100, Base: 2}
	assert.Equal(t, 300.0, h.Valuation(100))
}
