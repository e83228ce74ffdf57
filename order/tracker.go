package order

import "sync"

// Tracker 两张独立加锁的索引：客户端订单号与交易所订单号。
type Tracker struct {
	clientMu sync.RWMutex
	byClient map[string]*Order

	exchMu sync.RWMutex
	byExch map[string]*Order
}

func NewTracker() *Tracker {
	return &Tracker{
		byClient: make(map[string]*Order),
		byExch:   make(map[string]*Order),
	}
}

// Register 按客户端订单号登记新单。
func (t *Tracker) Register(o *Order) {
	t.clientMu.Lock()
	t.byClient[o.ClientID] = o
	t.clientMu.Unlock()
}

// BindExchangeID 首次确认时把交易所订单号绑定到订单上；已绑定或找不到返回 false。
func (t *Tracker) BindExchangeID(clientID, exchangeID string) bool {
	o, ok := t.ByClientID(clientID)
	if !ok {
		return false
	}
	t.exchMu.Lock()
	if !o.bindExchangeID(exchangeID) {
		t.exchMu.Unlock()
		return false
	}
	t.byExch[exchangeID] = o
	t.exchMu.Unlock()

	// 绑定期间订单可能已被 Remove，此时撤回索引。
	if cur, ok := t.ByClientID(clientID); !ok || cur != o {
		t.exchMu.Lock()
		if t.byExch[exchangeID] == o {
			delete(t.byExch, exchangeID)
		}
		t.exchMu.Unlock()
		return false
	}
	return true
}

func (t *Tracker) ByClientID(id string) (*Order, bool) {
	t.clientMu.RLock()
	defer t.clientMu.RUnlock()
	o, ok := t.byClient[id]
	return o, ok
}

func (t *Tracker) ByExchangeID(id string) (*Order, bool) {
	t.exchMu.RLock()
	defer t.exchMu.RUnlock()
	o, ok := t.byExch[id]
	return o, ok
}

// Remove 从两张索引中删除，重复调用安全。
func (t *Tracker) Remove(o *Order) {
	t.clientMu.Lock()
	if cur, ok := t.byClient[o.ClientID]; ok && cur == o {
		delete(t.byClient, o.ClientID)
	}
	t.clientMu.Unlock()

	if id := o.ExchangeID(); id != "" {
		t.exchMu.Lock()
		if cur, ok := t.byExch[id]; ok && cur == o {
			delete(t.byExch, id)
		}
		t.exchMu.Unlock()
	}
}

// Len 在途订单数（按客户端订单号）。
func (t *Tracker) Len() int {
	t.clientMu.RLock()
	defer t.clientMu.RUnlock()
	return len(t.byClient)
}
