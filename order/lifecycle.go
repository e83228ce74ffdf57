package order

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fix-market-maker/fix"
	"fix-market-maker/infrastructure/monitor"
	"fix-market-maker/internal/numeric"
	"fix-market-maker/inventory"
	"fix-market-maker/market"
)

// SizePlaces 下单数量保留的小数位（截断，不四舍五入）。
const SizePlaces = 8

// Sender 下单/撤单通道，由 FIX 会话实现。
type Sender interface {
	NewOrder(clientID string, side fix.Side, price, size float64) error
	Cancel(orderID, clientID string) error
}

// BookWatcher 读取最优档并订阅其变化。
type BookWatcher interface {
	Watch() (top market.Top, bidChanged, askChanged <-chan struct{})
}

// Validator 判断在当前盘口下订单是否仍应挂着。
type Validator func(side fix.Side, price float64, top market.Top) bool

// LifecycleConfig 订单生命周期依赖。
type LifecycleConfig struct {
	Sender   Sender
	Book     BookWatcher
	Tracker  *Tracker
	Account  *inventory.Account
	Balances inventory.BalanceSource
	Retry    inventory.Retry
	Valid    Validator
	Logger   *zap.Logger
	Monitor  *monitor.Monitor

	// OnClosed 订单销毁后回调，可为空。
	OnClosed func(o *Order)
}

// Lifecycle 为每笔订单启动独立协程：下单、等待确认、盯盘、必要时撤单、销毁。
type Lifecycle struct {
	cfg LifecycleConfig
	log *zap.Logger
	now func() time.Time
	wg  sync.WaitGroup
}

func NewLifecycle(cfg LifecycleConfig) *Lifecycle {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Monitor == nil {
		cfg.Monitor = monitor.New(monitor.DefaultConfig())
	}
	if cfg.Tracker == nil {
		cfg.Tracker = NewTracker()
	}
	return &Lifecycle{
		cfg: cfg,
		log: cfg.Logger.Named("order"),
		now: time.Now,
	}
}

func (l *Lifecycle) Tracker() *Tracker {
	return l.cfg.Tracker
}

// Launch 截断数量、分配客户端订单号并登记，然后在独立协程中运行订单。
// 登记在返回前完成，调用方持账户锁时可据此保证只有一笔在途订单。
func (l *Lifecycle) Launch(ctx context.Context, side fix.Side, price, size float64) *Order {
	o := newOrder(uuid.NewString(), side, price, numeric.Truncate(size, SizePlaces), l.now())
	l.cfg.Tracker.Register(o)
	l.wg.Add(1)
	go l.run(ctx, o)
	return o
}

// Wait 等待所有订单协程退出。
func (l *Lifecycle) Wait() {
	l.wg.Wait()
}

func (l *Lifecycle) run(ctx context.Context, o *Order) {
	defer l.wg.Done()
	defer l.teardown(o)

	log := l.log.With(zap.String("client_id", o.ClientID), zap.String("side", sideName(o.Side)),
		zap.Float64("price", o.Price), zap.Float64("size", o.Size))

	if err := l.cfg.Sender.NewOrder(o.ClientID, o.Side, o.Price, o.Size); err != nil {
		log.Error("new order send failed", zap.Error(err))
		l.transition(o, Rejected, log)
		return
	}
	l.cfg.Monitor.RecordOrderPlaced()
	log.Info("order submitted")

	if !l.awaitAck(ctx, o, log) {
		return
	}
	if !l.watch(ctx, o, log) {
		return
	}
	l.cancel(ctx, o, log)
}

// awaitAck 等第一条执行回报；被拒或已终结返回 false。
func (l *Lifecycle) awaitAck(ctx context.Context, o *Order, log *zap.Logger) bool {
	for {
		msg, err := o.inbox.Wait(ctx)
		if err != nil {
			log.Warn("stopped waiting for ack", zap.Error(err))
			return false
		}
		if !msg.IsExecutionReport() {
			l.logOther(msg, log)
			continue
		}
		st, _ := Interpret(msg, o.Remaining())
		if st == Rejected {
			l.reject(ctx, o, msg, log)
			return false
		}
		if st == Open {
			l.transition(o, Open, log)
		}
		return !l.handle(o, msg, log)
	}
}

func (l *Lifecycle) reject(ctx context.Context, o *Order, msg fix.Message, log *zap.Logger) {
	// 103 缺失或取值未知时原因只在 Text 里
	reason, ok := msg.Get(fix.FieldOrdRejReason)
	if !ok {
		reason = msg[fix.FieldText]
	}
	l.transition(o, Rejected, log)
	log.Warn("order rejected", zap.String("reason", reason), zap.String("text", msg[fix.FieldText]))
	if reason != fix.RejectInsufficientFunds || l.cfg.Account == nil || l.cfg.Balances == nil {
		return
	}
	l.cfg.Monitor.RecordBalanceResync()
	if err := l.cfg.Account.Resync(ctx, l.cfg.Balances, l.cfg.Retry); err != nil {
		log.Error("balance resync aborted", zap.Error(err))
		return
	}
	h := l.cfg.Account.Snapshot()
	log.Info("balances resynced", zap.Float64("quote", h.Quote), zap.Float64("base", h.Base))
}

// watch 挂单期间的主循环；返回 true 表示需要撤单。
func (l *Lifecycle) watch(ctx context.Context, o *Order, log *zap.Logger) bool {
	for {
		for {
			msg, ok := o.inbox.TryPop()
			if !ok {
				break
			}
			if l.handle(o, msg, log) {
				return false
			}
		}

		top, bidChanged, askChanged := l.cfg.Book.Watch()
		if l.cfg.Valid != nil && !l.cfg.Valid(o.Side, o.Price, top) {
			log.Info("strategy no longer valid",
				zap.Float64("bid", top.BidPrice), zap.Float64("bid_size", top.BidSize),
				zap.Float64("ask", top.AskPrice), zap.Float64("ask_size", top.AskSize))
			return true
		}

		select {
		case <-ctx.Done():
			return false
		case <-o.inbox.Notify():
		case <-bidChanged:
		case <-askChanged:
		}
	}
}

// cancel 发出撤单后阻塞等待终态，期间的成交照常记账。
func (l *Lifecycle) cancel(ctx context.Context, o *Order, log *zap.Logger) {
	l.transition(o, CancelRequested, log)
	if err := l.cfg.Sender.Cancel(o.ExchangeID(), o.ClientID); err != nil {
		// 挂单可能仍在交易所，依赖会话断开时的断线撤单兜底。
		log.Error("cancel send failed", zap.String("order_id", o.ExchangeID()), zap.Error(err))
		return
	}
	l.cfg.Monitor.RecordCancelRequest()
	log.Info("cancel requested", zap.String("order_id", o.ExchangeID()))

	for {
		msg, err := o.inbox.Wait(ctx)
		if err != nil {
			log.Warn("stopped waiting for cancel ack", zap.Error(err))
			return
		}
		if l.handle(o, msg, log) {
			return
		}
	}
}

// handle 解释一条回报、记账并推进状态；到达终态返回 true。
func (l *Lifecycle) handle(o *Order, msg fix.Message, log *zap.Logger) bool {
	if !msg.IsExecutionReport() {
		l.logOther(msg, log)
		return false
	}
	st, delta := Interpret(msg, o.Remaining())
	if delta > 0 {
		o.addFill(delta, st == Filled)
		l.applyHoldings(o, delta)
		l.cfg.Monitor.RecordFill(delta)
		log.Info("order fill", zap.Float64("delta", delta), zap.Float64("filled", o.Filled()), zap.String("status", msg[fix.FieldOrdStatus]))
	} else if st == Filled {
		o.addFill(0, true)
	}
	if st == Open {
		return false
	}
	l.transition(o, st, log)
	return st.Terminal()
}

func (l *Lifecycle) applyHoldings(o *Order, delta float64) {
	if l.cfg.Account == nil {
		return
	}
	if o.IsBuy() {
		l.cfg.Account.Bought(o.Price, delta)
	} else {
		l.cfg.Account.Sold(o.Price, delta)
	}
}

func (l *Lifecycle) transition(o *Order, to State, log *zap.Logger) {
	from := o.State()
	if err := o.setState(to); err != nil {
		log.Warn("state transition ignored", zap.Error(err))
		return
	}
	if from == to {
		return
	}
	switch to {
	case Filled:
		l.cfg.Monitor.RecordOrderFilled()
	case Canceled:
		l.cfg.Monitor.RecordOrderCanceled()
	case Rejected:
		l.cfg.Monitor.RecordOrderRejected()
	}
	log.Debug("order state", zap.Stringer("from", from), zap.Stringer("to", to))
}

func (l *Lifecycle) logOther(msg fix.Message, log *zap.Logger) {
	if msg.Type() == fix.MsgTypeCancelReject {
		log.Warn("cancel rejected", zap.String("reason", msg[fix.FieldCxlRejReason]), zap.String("status", msg[fix.FieldOrdStatus]))
		return
	}
	log.Debug("message ignored", zap.String("type", msg.Type()))
}

// teardown 幂等：从索引移除并关闭 Done。
func (l *Lifecycle) teardown(o *Order) {
	o.teardown.Do(func() {
		l.cfg.Tracker.Remove(o)
		close(o.done)
		l.cfg.Monitor.RecordOrderLifetime(l.now().Sub(o.Created).Seconds())
		l.log.Info("order torn down",
			zap.String("client_id", o.ClientID),
			zap.String("order_id", o.ExchangeID()),
			zap.Stringer("state", o.State()),
			zap.Float64("filled", o.Filled()))
		if l.cfg.OnClosed != nil {
			l.cfg.OnClosed(o)
		}
	})
}

func sideName(s fix.Side) string {
	if s == fix.SideBuy {
		return "buy"
	}
	return "sell"
}
