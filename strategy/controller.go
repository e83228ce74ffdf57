package strategy

import (
	"context"
	"runtime"
	"time"

	"go.uber.org/zap"

	"fix-market-maker/fix"
	"fix-market-maker/inventory"
	"fix-market-maker/market"
	"fix-market-maker/order"
)

// Launcher 启动一笔订单；返回前必须已在在途索引中登记。
type Launcher interface {
	Launch(ctx context.Context, side fix.Side, price, size float64) *order.Order
}

// Outstanding 在途订单数。
type Outstanding interface {
	Len() int
}

// TopReader 读取最优档。
type TopReader interface {
	Top() market.Top
}

// Controller 策略主循环：任何时刻系统里最多一笔在途订单。
// 检查、计算数量、启动订单都在账户锁内完成，成交记账无法与之交错。
type Controller struct {
	engine   *Engine
	account  *inventory.Account
	orders   Outstanding
	book     TopReader
	launcher Launcher
	log      *zap.Logger

	// Idle 为 0 时空转只让出调度，不休眠。
	Idle time.Duration
}

func NewController(engine *Engine, account *inventory.Account, orders Outstanding, book TopReader, launcher Launcher, log *zap.Logger) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{
		engine:   engine,
		account:  account,
		orders:   orders,
		book:     book,
		launcher: launcher,
		log:      log.Named("controller"),
	}
}

// Run 阻塞直到 ctx 结束。
func (c *Controller) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if c.Step(ctx) != nil {
			continue
		}
		if c.Idle > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(c.Idle):
			}
		} else {
			runtime.Gosched()
		}
	}
}

// Step 执行一轮决策，启动了订单则返回它。
func (c *Controller) Step(ctx context.Context) *order.Order {
	var launched *order.Order
	c.account.WithLock(func(h inventory.Holdings) {
		if c.orders.Len() > 0 {
			return
		}
		top := c.book.Top()
		q, ok := c.engine.Decide(top, h)
		if !ok {
			return
		}
		launched = c.launcher.Launch(ctx, q.Side, q.Price, q.Size)
		c.log.Info("order launched",
			zap.String("client_id", launched.ClientID),
			zap.String("side", sideName(q.Side)),
			zap.Float64("price", q.Price),
			zap.Float64("size", launched.Size),
			zap.Float64("bid_size", top.BidSize),
			zap.Float64("ask_size", top.AskSize),
			zap.Float64("quote", h.Quote),
			zap.Float64("base", h.Base))
	})
	return launched
}

func sideName(s fix.Side) string {
	if s == fix.SideBuy {
		return "buy"
	}
	return "sell"
}
