package strategy

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fix-market-maker/fix"
	"fix-market-maker/internal/numeric"
	"fix-market-maker/inventory"
	"fix-market-maker/market"
	"fix-market-maker/order"
)

type capturedOrder struct {
	clientID string
	side     fix.Side
	price    float64
	size     float64
}

type captureSender struct {
	orders chan capturedOrder
}

func (s *captureSender) NewOrder(clientID string, side fix.Side, price, size float64) error {
	s.orders <- capturedOrder{clientID, side, price, size}
	return nil
}

func (s *captureSender) Cancel(string, string) error { return nil }

type noopReplier struct{}

func (noopReplier) Heartbeat(string) error { return nil }

// guardedLauncher 在账户锁内检查在途订单数。
type guardedLauncher struct {
	inner      *order.Lifecycle
	tracker    *order.Tracker
	violations atomic.Int32
	launches   atomic.Int32
}

func (g *guardedLauncher) Launch(ctx context.Context, side fix.Side, price, size float64) *order.Order {
	if g.tracker.Len() != 0 {
		g.violations.Add(1)
	}
	o := g.inner.Launch(ctx, side, price, size)
	if g.tracker.Len() != 1 {
		g.violations.Add(1)
	}
	g.launches.Add(1)
	return o
}

type fixture struct {
	book     *market.OrderBook
	account  *inventory.Account
	tracker  *order.Tracker
	sender   *captureSender
	lc       *order.Lifecycle
	disp     *order.Dispatcher
	launcher *guardedLauncher
	ctrl     *Controller
}

func newFixture(t *testing.T, h inventory.Holdings) *fixture {
	t.Helper()
	f := &fixture{
		book:    market.NewOrderBook(market.Config{}),
		account: inventory.NewAccount(h),
		tracker: order.NewTracker(),
		sender:  &captureSender{orders: make(chan capturedOrder, 16)},
	}
	f.lc = order.NewLifecycle(order.LifecycleConfig{
		Sender:  f.sender,
		Book:    f.book,
		Tracker: f.tracker,
		Account: f.account,
		Valid:   VolumeSideValid,
	})
	f.disp = order.NewDispatcher(nil, f.tracker, noopReplier{}, nil, nil)
	f.launcher = &guardedLauncher{inner: f.lc, tracker: f.tracker}
	f.ctrl = NewController(newTestEngine(t), f.account, f.tracker, f.book, f.launcher, nil)
	return f
}

func (f *fixture) report(t *testing.T, clientID, orderID, status string) {
	t.Helper()
	require.NoError(t, f.disp.Dispatch(fix.Message{
		fix.FieldMsgType:   fix.MsgTypeExecutionReport,
		fix.FieldClOrdID:   clientID,
		fix.FieldOrderID:   orderID,
		fix.FieldOrdStatus: status,
	}))
}

func TestStepBuysAtBestBidAndFills(t *testing.T) {
	f := newFixture(t, inventory.Holdings{Quote: 1000, Base: 0})
	f.book.ApplySnapshot([]market.Level{{Price: 100, Size: 10}}, []market.Level{{Price: 101, Size: 4}})
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		f.lc.Wait()
	}()

	o := f.ctrl.Step(ctx)
	require.NotNil(t, o)
	assert.Nil(t, f.ctrl.Step(ctx), "second order must wait for the first")

	sent := <-f.sender.orders
	wantSize := numeric.Truncate(0.995*1000/100, 8)
	assert.Equal(t, fix.SideBuy, sent.side)
	assert.Equal(t, 100.0, sent.price)
	assert.Equal(t, wantSize, sent.size)

	f.report(t, o.ClientID, "ex-1", fix.StatusNew)
	f.report(t, o.ClientID, "ex-1", fix.StatusFilled)
	select {
	case <-o.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("order not torn down")
	}

	h := f.account.Snapshot()
	assert.InDelta(t, wantSize, h.Base, 1e-12)
	assert.InDelta(t, 1000-100*wantSize, h.Quote, 1e-9)
	assert.Equal(t, 0, f.tracker.Len())
}

func TestStepSkipsUnreadyBook(t *testing.T) {
	f := newFixture(t, inventory.Holdings{Quote: 1000, Base: 1})
	assert.Nil(t, f.ctrl.Step(context.Background()))
	assert.Equal(t, int32(0), f.launcher.launches.Load())
}

func TestRunKeepsSingleOutstandingOrder(t *testing.T) {
	// 每笔买单用掉 99.5% 的报价币，初始资金足够连续买 5 笔
	f := newFixture(t, inventory.Holdings{Quote: 1e9, Base: 1})
	f.book.ApplySnapshot([]market.Level{{Price: 100, Size: 10}}, []market.Level{{Price: 101, Size: 4}})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.ctrl.Run(ctx) }()

	// 每笔订单直接成交，控制器随即启动下一笔
	for i := 0; i < 5; i++ {
		select {
		case sent := <-f.sender.orders:
			o, ok := f.tracker.ByClientID(sent.clientID)
			require.True(t, ok)
			f.report(t, sent.clientID, "ex-"+sent.clientID, fix.StatusFilled)
			<-o.Done()
		case <-time.After(2 * time.Second):
			t.Fatalf("order %d not launched", i)
		}
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("controller did not stop")
	}
	f.lc.Wait()

	assert.Equal(t, int32(0), f.launcher.violations.Load())
	assert.Equal(t, int32(5), f.launcher.launches.Load())
}
