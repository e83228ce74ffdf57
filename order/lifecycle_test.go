package order

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"fix-market-maker/fix"
	"fix-market-maker/inventory"
	"fix-market-maker/market"
)

type sentOrder struct {
	clientID string
	side     fix.Side
	price    float64
	size     float64
}

type sentCancel struct {
	orderID  string
	clientID string
}

type fakeSender struct {
	orders     chan sentOrder
	cancels    chan sentCancel
	failNew    bool
	failCancel bool
}

func newFakeSender() *fakeSender {
	return &fakeSender{orders: make(chan sentOrder, 8), cancels: make(chan sentCancel, 8)}
}

func (f *fakeSender) NewOrder(clientID string, side fix.Side, price, size float64) error {
	if f.failNew {
		return errors.New("broken pipe")
	}
	f.orders <- sentOrder{clientID, side, price, size}
	return nil
}

func (f *fakeSender) Cancel(orderID, clientID string) error {
	if f.failCancel {
		return errors.New("broken pipe")
	}
	f.cancels <- sentCancel{orderID, clientID}
	return nil
}

type fakeReplier struct{ ids chan string }

func (f *fakeReplier) Heartbeat(id string) error {
	f.ids <- id
	return nil
}

type fakeBalances struct {
	calls atomic.Int32
	h     inventory.Holdings
}

func (f *fakeBalances) Balances(context.Context) (inventory.Holdings, error) {
	f.calls.Add(1)
	return f.h, nil
}

// atBest 挂单价仍是本侧最优价即有效。
func atBest(side fix.Side, price float64, top market.Top) bool {
	if side == fix.SideBuy {
		return price == top.BidPrice
	}
	return price == top.AskPrice
}

type harness struct {
	book     *market.OrderBook
	account  *inventory.Account
	balances *fakeBalances
	sender   *fakeSender
	tracker  *Tracker
	lc       *Lifecycle
	disp     *Dispatcher
	closed   chan *Order
	logs     *observer.ObservedLogs
	ctx      context.Context
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	core, logs := observer.New(zapcore.WarnLevel)
	h := &harness{
		logs:     logs,
		book:     market.NewOrderBook(market.Config{}),
		account:  inventory.NewAccount(inventory.Holdings{Quote: 1000, Base: 2}),
		balances: &fakeBalances{h: inventory.Holdings{Quote: 42, Base: 0.5}},
		sender:   newFakeSender(),
		tracker:  NewTracker(),
		closed:   make(chan *Order, 8),
	}
	h.book.ApplySnapshot([]market.Level{{Price: 99, Size: 1}, {Price: 100, Size: 10}}, []market.Level{{Price: 101, Size: 4}})
	h.lc = NewLifecycle(LifecycleConfig{
		Sender:   h.sender,
		Book:     h.book,
		Tracker:  h.tracker,
		Account:  h.account,
		Balances: h.balances,
		Retry:    inventory.Retry{Delay: time.Millisecond},
		Valid:    atBest,
		Logger:   zap.New(core),
		OnClosed: func(o *Order) {
			select {
			case h.closed <- o:
			default:
			}
		},
	})
	h.disp = NewDispatcher(nil, h.tracker, &fakeReplier{ids: make(chan string, 1)}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	h.ctx = ctx
	t.Cleanup(func() {
		cancel()
		h.lc.Wait()
	})
	return h
}

func (h *harness) exec(t *testing.T, clientID, orderID, status string, extra ...string) {
	t.Helper()
	msg := report(status, append([]string{fix.FieldClOrdID, clientID, fix.FieldOrderID, orderID}, extra...)...)
	require.NoError(t, h.disp.Dispatch(msg))
}

func waitDone(t *testing.T, o *Order) {
	t.Helper()
	select {
	case <-o.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("order %s not torn down, state %s", o.ClientID, o.State())
	}
}

func TestLifecycleBuyFilled(t *testing.T) {
	h := newHarness(t)

	o := h.lc.Launch(h.ctx, fix.SideBuy, 100, 9.123456789)
	assert.Equal(t, 9.12345678, o.Size)
	assert.Equal(t, 1, h.tracker.Len())

	sent := <-h.sender.orders
	assert.Equal(t, sentOrder{o.ClientID, fix.SideBuy, 100, 9.12345678}, sent)

	h.exec(t, o.ClientID, "ex-1", fix.StatusNew)
	require.Eventually(t, func() bool { return o.State() == Open }, time.Second, time.Millisecond)

	h.exec(t, o.ClientID, "ex-1", fix.StatusFilled)
	waitDone(t, o)

	assert.Equal(t, Filled, o.State())
	assert.Equal(t, o.Size, o.Filled())
	assert.Equal(t, 0, h.tracker.Len())
	_, ok := h.tracker.ByExchangeID("ex-1")
	assert.False(t, ok)

	got := h.account.Snapshot()
	assert.InDelta(t, 2+9.12345678, got.Base, 1e-12)
	assert.InDelta(t, 1000-100*9.12345678, got.Quote, 1e-9)

	select {
	case closed := <-h.closed:
		assert.Same(t, o, closed)
	case <-time.After(time.Second):
		t.Fatal("close hook not called")
	}
}

func TestLifecycleSellPartialThenDone(t *testing.T) {
	h := newHarness(t)

	o := h.lc.Launch(h.ctx, fix.SideSell, 101, 1.5)
	<-h.sender.orders
	h.exec(t, o.ClientID, "ex-s", fix.StatusNew)
	h.exec(t, o.ClientID, "ex-s", fix.StatusPartiallyFilled, fix.FieldLastShares, "0.5")
	h.exec(t, o.ClientID, "ex-s", fix.StatusDoneForDay)
	waitDone(t, o)

	assert.Equal(t, Filled, o.State())
	assert.Equal(t, 1.5, o.Filled())
	got := h.account.Snapshot()
	assert.InDelta(t, 0.5, got.Base, 1e-12)
	assert.InDelta(t, 1000+101*1.5, got.Quote, 1e-9)
}

func TestLifecycleCancelsWhenPriceMoves(t *testing.T) {
	h := newHarness(t)

	o := h.lc.Launch(h.ctx, fix.SideBuy, 100, 1)
	<-h.sender.orders
	h.exec(t, o.ClientID, "ex-2", fix.StatusNew)
	require.Eventually(t, func() bool { return o.State() == Open }, time.Second, time.Millisecond)

	select {
	case c := <-h.sender.cancels:
		t.Fatalf("unexpected cancel %+v", c)
	case <-time.After(20 * time.Millisecond):
	}

	// 新的更优买价出现，订单不再是买一
	h.book.ApplyDiff(market.Bid, 100.5, 3)

	select {
	case c := <-h.sender.cancels:
		assert.Equal(t, sentCancel{"ex-2", o.ClientID}, c)
	case <-time.After(2 * time.Second):
		t.Fatal("cancel not sent")
	}
	assert.Equal(t, CancelRequested, o.State())

	// 撤单确认：ClOrdID 是撤单请求自己的 id
	h.exec(t, "cancel-req", "ex-2", fix.StatusCanceled, fix.FieldOrigClOrdID, o.ClientID)
	waitDone(t, o)

	assert.Equal(t, Canceled, o.State())
	assert.Equal(t, 0, h.tracker.Len())
	_, ok := h.tracker.ByExchangeID("ex-2")
	assert.False(t, ok)
	assert.Equal(t, inventory.Holdings{Quote: 1000, Base: 2}, h.account.Snapshot())
}

func TestLifecycleFillWhileCancelPending(t *testing.T) {
	h := newHarness(t)

	o := h.lc.Launch(h.ctx, fix.SideBuy, 100, 2)
	<-h.sender.orders
	h.exec(t, o.ClientID, "ex-4", fix.StatusNew)
	require.Eventually(t, func() bool { return o.State() == Open }, time.Second, time.Millisecond)

	h.book.ApplyDiff(market.Bid, 100, 0)
	<-h.sender.cancels

	h.exec(t, "cancel-req", "ex-4", fix.StatusPartiallyFilled, fix.FieldLastShares, "0.5")
	h.exec(t, "cancel-req", "ex-4", fix.StatusFilled)
	waitDone(t, o)

	assert.Equal(t, Filled, o.State())
	got := h.account.Snapshot()
	assert.InDelta(t, 4, got.Base, 1e-12)
	assert.InDelta(t, 800, got.Quote, 1e-9)
}

func TestLifecycleCancelSendFailureTearsDown(t *testing.T) {
	h := newHarness(t)
	h.sender.failCancel = true

	o := h.lc.Launch(h.ctx, fix.SideBuy, 100, 1)
	<-h.sender.orders
	h.exec(t, o.ClientID, "ex-7", fix.StatusNew)
	require.Eventually(t, func() bool { return o.State() == Open }, time.Second, time.Millisecond)

	h.book.ApplyDiff(market.Bid, 100.5, 3)
	waitDone(t, o)

	assert.Equal(t, CancelRequested, o.State())
	assert.Equal(t, 0, h.tracker.Len())

	entries := h.logs.FilterMessage("cancel send failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, "ex-7", entries[0].ContextMap()["order_id"])
	assert.Equal(t, o.ClientID, entries[0].ContextMap()["client_id"])
}

func TestLifecycleInsufficientFundsResyncs(t *testing.T) {
	h := newHarness(t)

	o := h.lc.Launch(h.ctx, fix.SideBuy, 100, 50)
	<-h.sender.orders
	h.exec(t, o.ClientID, "ex-5", fix.StatusRejected, fix.FieldOrdRejReason, fix.RejectInsufficientFunds)
	waitDone(t, o)

	assert.Equal(t, Rejected, o.State())
	assert.Equal(t, int32(1), h.balances.calls.Load())
	assert.Equal(t, inventory.Holdings{Quote: 42, Base: 0.5}, h.account.Snapshot())
	assert.Equal(t, 0, h.tracker.Len())
}

func TestLifecycleInsufficientFundsInTextResyncs(t *testing.T) {
	h := newHarness(t)

	o := h.lc.Launch(h.ctx, fix.SideBuy, 100, 50)
	<-h.sender.orders
	require.NoError(t, h.disp.Dispatch(report(fix.StatusRejected, fix.FieldClOrdID, o.ClientID, fix.FieldText, "Insufficient funds")))
	waitDone(t, o)

	assert.Equal(t, Rejected, o.State())
	assert.Equal(t, int32(1), h.balances.calls.Load())
	assert.Equal(t, inventory.Holdings{Quote: 42, Base: 0.5}, h.account.Snapshot())
}

func TestLifecycleOtherRejectDoesNotResync(t *testing.T) {
	h := newHarness(t)

	o := h.lc.Launch(h.ctx, fix.SideSell, 101, 1)
	<-h.sender.orders
	// 没有 OrderID 的拒单按客户端订单号投递
	require.NoError(t, h.disp.Dispatch(report(fix.StatusRejected, fix.FieldClOrdID, o.ClientID, fix.FieldOrdRejReason, "Post only")))
	waitDone(t, o)

	assert.Equal(t, Rejected, o.State())
	assert.Equal(t, int32(0), h.balances.calls.Load())
	assert.Equal(t, inventory.Holdings{Quote: 1000, Base: 2}, h.account.Snapshot())
}

func TestLifecycleSendFailureTearsDown(t *testing.T) {
	h := newHarness(t)
	h.sender.failNew = true

	o := h.lc.Launch(h.ctx, fix.SideBuy, 100, 1)
	waitDone(t, o)
	assert.Equal(t, Rejected, o.State())
	assert.Equal(t, 0, h.tracker.Len())
}

func TestLifecycleLateReportDropped(t *testing.T) {
	h := newHarness(t)

	o := h.lc.Launch(h.ctx, fix.SideBuy, 100, 1)
	<-h.sender.orders
	h.exec(t, o.ClientID, "ex-6", fix.StatusFilled)
	waitDone(t, o)

	before := h.account.Snapshot()
	h.exec(t, o.ClientID, "ex-6", fix.StatusFilled)
	assert.Equal(t, before, h.account.Snapshot())
	assert.Equal(t, 0, o.inbox.Len())
}

func TestLifecycleStopsOnContextCancel(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(h.ctx)

	o := h.lc.Launch(ctx, fix.SideBuy, 100, 1)
	<-h.sender.orders
	cancel()
	waitDone(t, o)
	assert.Equal(t, Submitted, o.State())
	assert.Equal(t, 0, h.tracker.Len())
}
