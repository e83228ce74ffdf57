package market

import (
	"sort"
	"sync"
)

const (
	DefaultDepth   = 50
	DefaultBandPct = 0.01
)

// Side 盘口方向。
type Side int

const (
	Bid Side = iota
	Ask
)

func (s Side) String() string {
	if s == Bid {
		return "bid"
	}
	return "ask"
}

// Level 一个价位。
type Level struct {
	Price float64
	Size  float64
}

// Top 某一时刻的最优档与中间价。
type Top struct {
	BidPrice    float64
	BidSize     float64
	AskPrice    float64
	AskSize     float64
	RecentPrice float64
}

// Ready 两侧都有报价才可用于决策。
func (t Top) Ready() bool {
	return t.BidPrice > 0 && t.AskPrice > 0
}

// FeedHandler 行情流的消费方：一次快照，之后是无限的增量。
type FeedHandler interface {
	ApplySnapshot(bids, asks []Level)
	ApplyDiff(side Side, price, size float64)
}

// Config 盘口副本参数。
type Config struct {
	Depth   int     `yaml:"depth"`
	BandPct float64 `yaml:"bandPct"`
}

type ladder struct {
	levels    []Level // 价格升序，价格唯一
	bestPrice float64
	bestSize  float64
}

// OrderBook 由快照+增量重建的双边盘口，每侧最多 depth 档。
// 最优档变化时对该侧广播：关闭旧 channel 并换新。
type OrderBook struct {
	mu      sync.Mutex
	depth   int
	bandPct float64
	sides   [2]ladder
	recent  float64
	lower   float64
	upper   float64
	changed [2]chan struct{}

	listener func(Side, Top)
}

func NewOrderBook(cfg Config) *OrderBook {
	if cfg.Depth <= 0 {
		cfg.Depth = DefaultDepth
	}
	if cfg.BandPct <= 0 {
		cfg.BandPct = DefaultBandPct
	}
	return &OrderBook{
		depth:   cfg.Depth,
		bandPct: cfg.BandPct,
		changed: [2]chan struct{}{make(chan struct{}), make(chan struct{})},
	}
}

// SetListener 在最优档变化后（锁外）回调，用于指标等旁路。
func (ob *OrderBook) SetListener(fn func(Side, Top)) {
	ob.mu.Lock()
	ob.listener = fn
	ob.mu.Unlock()
}

// ApplySnapshot 整体替换两侧，只保留最靠近最优价的 depth 档。
func (ob *OrderBook) ApplySnapshot(bids, asks []Level) {
	ob.mu.Lock()
	before := [2]Level{ob.sides[Bid].best(), ob.sides[Ask].best()}

	ob.sides[Bid].levels = ob.trim(Bid, sortedCopy(bids))
	ob.sides[Ask].levels = ob.trim(Ask, sortedCopy(asks))
	ob.sides[Bid].refreshBest(Bid)
	ob.sides[Ask].refreshBest(Ask)
	ob.refreshBand()

	var fired []Side
	for _, s := range []Side{Bid, Ask} {
		if ob.sides[s].best() != before[s] {
			ob.broadcast(s)
			fired = append(fired, s)
		}
	}
	top, listener := ob.topLocked(), ob.listener
	ob.mu.Unlock()

	if listener != nil {
		for _, s := range fired {
			listener(s, top)
		}
	}
}

// ApplyDiff 应用单条增量；size 为 0 表示删除该价位，带外价位直接忽略。
func (ob *OrderBook) ApplyDiff(side Side, price, size float64) {
	ob.mu.Lock()
	l := &ob.sides[side]
	before := l.best()

	if size == 0 {
		l.remove(price)
	} else if ob.lower < price && price < ob.upper {
		l.remove(price)
		l.insert(Level{Price: price, Size: size})
	}
	l.levels = ob.trim(side, l.levels)
	l.refreshBest(side)
	ob.refreshBand()

	changed := l.best() != before
	if changed {
		ob.broadcast(side)
	}
	top, listener := ob.topLocked(), ob.listener
	ob.mu.Unlock()

	if changed && listener != nil {
		listener(side, top)
	}
}

// Top 返回当前最优档的一致视图。
func (ob *OrderBook) Top() Top {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	return ob.topLocked()
}

// Watch 返回当前视图以及两侧下一次变化时会被关闭的 channel。
// 视图与 channel 在同一临界区取得，不会漏掉之后的变化。
func (ob *OrderBook) Watch() (top Top, bidChanged, askChanged <-chan struct{}) {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	return ob.topLocked(), ob.changed[Bid], ob.changed[Ask]
}

// Levels 返回某侧价位的拷贝（升序）。
func (ob *OrderBook) Levels(side Side) []Level {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	out := make([]Level, len(ob.sides[side].levels))
	copy(out, ob.sides[side].levels)
	return out
}

// Band 返回当前接受区间 (lower, upper)。
func (ob *OrderBook) Band() (lower, upper float64) {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	return ob.lower, ob.upper
}

func (ob *OrderBook) topLocked() Top {
	return Top{
		BidPrice:    ob.sides[Bid].bestPrice,
		BidSize:     ob.sides[Bid].bestSize,
		AskPrice:    ob.sides[Ask].bestPrice,
		AskSize:     ob.sides[Ask].bestSize,
		RecentPrice: ob.recent,
	}
}

func (ob *OrderBook) broadcast(side Side) {
	close(ob.changed[side])
	ob.changed[side] = make(chan struct{})
}

// refreshBand 一侧为空时保留上一次的中间价。
func (ob *OrderBook) refreshBand() {
	bid, ask := ob.sides[Bid].bestPrice, ob.sides[Ask].bestPrice
	if bid <= 0 || ask <= 0 {
		return
	}
	ob.recent = (bid + ask) / 2
	ob.lower = (1 - ob.bandPct) * ob.recent
	ob.upper = (1 + ob.bandPct) * ob.recent
}

// trim 买侧保留最高的 depth 档，卖侧保留最低的 depth 档。
func (ob *OrderBook) trim(side Side, levels []Level) []Level {
	if len(levels) <= ob.depth {
		return levels
	}
	if side == Bid {
		return levels[len(levels)-ob.depth:]
	}
	return levels[:ob.depth]
}

func (l *ladder) best() Level {
	return Level{Price: l.bestPrice, Size: l.bestSize}
}

func (l *ladder) refreshBest(side Side) {
	if len(l.levels) == 0 {
		l.bestPrice, l.bestSize = 0, 0
		return
	}
	lv := l.levels[0]
	if side == Bid {
		lv = l.levels[len(l.levels)-1]
	}
	l.bestPrice, l.bestSize = lv.Price, lv.Size
}

func (l *ladder) search(price float64) int {
	return sort.Search(len(l.levels), func(i int) bool { return l.levels[i].Price >= price })
}

func (l *ladder) remove(price float64) {
	i := l.search(price)
	if i < len(l.levels) && l.levels[i].Price == price {
		l.levels = append(l.levels[:i], l.levels[i+1:]...)
	}
}

func (l *ladder) insert(lv Level) {
	i := l.search(lv.Price)
	l.levels = append(l.levels, Level{})
	copy(l.levels[i+1:], l.levels[i:])
	l.levels[i] = lv
}

// sortedCopy 升序拷贝，同价位保留最后一次出现，丢弃 size<=0 的价位。
func sortedCopy(in []Level) []Level {
	byPrice := make(map[float64]float64, len(in))
	for _, lv := range in {
		if lv.Size > 0 {
			byPrice[lv.Price] = lv.Size
		}
	}
	out := make([]Level, 0, len(byPrice))
	for p, s := range byPrice {
		out = append(out, Level{Price: p, Size: s})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Price < out[j].Price })
	return out
}
