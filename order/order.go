package order

import (
	"sync"
	"time"

	"fix-market-maker/fix"
)

// Order 一笔在途订单。Side/Price/Size/ClientID 创建后不变。
type Order struct {
	ClientID string
	Side     fix.Side
	Price    float64
	Size     float64
	Created  time.Time

	inbox    *Inbox
	done     chan struct{}
	teardown sync.Once

	mu         sync.Mutex
	exchangeID string
	state      State
	filled     float64
}

func newOrder(clientID string, side fix.Side, price, size float64, now time.Time) *Order {
	return &Order{
		ClientID: clientID,
		Side:     side,
		Price:    price,
		Size:     size,
		Created:  now,
		inbox:    NewInbox(),
		done:     make(chan struct{}),
		state:    Submitted,
	}
}

// ExchangeID 交易所订单号，尚未确认时为空。
func (o *Order) ExchangeID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.exchangeID
}

func (o *Order) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Filled 累计成交量。
func (o *Order) Filled() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.filled
}

// Remaining 未成交量。
func (o *Order) Remaining() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.Size - o.filled
}

// Done 订单销毁后关闭。
func (o *Order) Done() <-chan struct{} {
	return o.done
}

// Deliver 投递一条回报到订单收件箱，不会阻塞调用方。
func (o *Order) Deliver(msg fix.Message) {
	o.inbox.Push(msg)
}

func (o *Order) IsBuy() bool {
	return o.Side == fix.SideBuy
}

// bindExchangeID 只绑定一次。
func (o *Order) bindExchangeID(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.exchangeID != "" || id == "" {
		return false
	}
	o.exchangeID = id
	return true
}

func (o *Order) setState(s State) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := ValidateTransition(o.state, s); err != nil {
		return err
	}
	o.state = s
	return nil
}

// addFill 记账成交；完全成交时累计量直接收敛到 Size。
func (o *Order) addFill(delta float64, full bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if full {
		o.filled = o.Size
		return
	}
	if delta > 0 {
		o.filled += delta
	}
}
