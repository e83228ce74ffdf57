package inventory

import (
	"context"
	"sync"
)

// Holdings 报价币与基础币持仓。
type Holdings struct {
	Quote float64
	Base  float64
}

// BalanceSource 外部余额查询（REST）。
type BalanceSource interface {
	Balances(ctx context.Context) (Holdings, error)
}

// Account 账户持仓，所有修改都在同一把锁下进行。
// 只有两种修改来源：按成交增量记账，以及资金不足后的整体重新同步。
type Account struct {
	mu       sync.Mutex
	h        Holdings
	listener func(Holdings)
}

func NewAccount(initial Holdings) *Account {
	return &Account{h: initial}
}

// SetListener 持仓变化后（锁外）回调。
func (a *Account) SetListener(fn func(Holdings)) {
	a.mu.Lock()
	a.listener = fn
	a.mu.Unlock()
}

// Snapshot 返回当前持仓拷贝。
func (a *Account) Snapshot() Holdings {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.h
}

// WithLock 持锁执行 fn；fn 内不得再调用 Account 的其他方法。
func (a *Account) WithLock(fn func(h Holdings)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	fn(a.h)
}

// Bought 买单成交 qty：报价币减少 price*qty，基础币增加 qty。
func (a *Account) Bought(price, qty float64) {
	if qty <= 0 {
		return
	}
	a.apply(-price*qty, qty)
}

// Sold 卖单成交 qty。
func (a *Account) Sold(price, qty float64) {
	if qty <= 0 {
		return
	}
	a.apply(price*qty, -qty)
}

func (a *Account) apply(dQuote, dBase float64) {
	a.mu.Lock()
	a.h.Quote += dQuote
	a.h.Base += dBase
	h, fn := a.h, a.listener
	a.mu.Unlock()
	if fn != nil {
		fn(h)
	}
}

// Resync 持锁从外部重新拉取余额并覆盖本地估算。
// 查询失败会按 retry 无限重试，直到成功或 ctx 结束。
func (a *Account) Resync(ctx context.Context, src BalanceSource, retry Retry) error {
	a.mu.Lock()
	h, err := retry.Fetch(ctx, src)
	if err != nil {
		a.mu.Unlock()
		return err
	}
	a.h = h
	fn := a.listener
	a.mu.Unlock()
	if fn != nil {
		fn(h)
	}
	return nil
}

// Valuation 以 mid 计价的总资产（报价币）。
func (h Holdings) Valuation(mid float64) float64 {
	return h.Quote + h.Base*mid
}
