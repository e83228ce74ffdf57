package strategy

import (
	"errors"

	"fix-market-maker/fix"
	"fix-market-maker/inventory"
	"fix-market-maker/market"
)

const (
	// DefaultMinTradeSize 交易所最小下单量（BTC）。
	DefaultMinTradeSize = 0.001
	// DefaultMargin 下单只用 99.5% 的持仓，吸收本地估算误差。
	DefaultMargin = 0.995
)

// Quote 一次下单决策。
type Quote struct {
	Side  fix.Side
	Price float64
	Size  float64
}

// EngineConfig 控制最小下单量与资金余量。
type EngineConfig struct {
	MinTradeSize float64 `yaml:"minTradeSize"`
	Margin       float64 `yaml:"margin"`
}

// Engine 根据盘口与持仓决定挂哪一侧、什么价、多少量。
type Engine struct {
	cfg EngineConfig
}

func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.MinTradeSize <= 0 {
		return nil, errors.New("minTradeSize must be positive")
	}
	if cfg.Margin <= 0 || cfg.Margin > 1 {
		return nil, errors.New("margin must be in (0, 1]")
	}
	return &Engine{cfg: cfg}, nil
}

// Decide 挂在挂单量更大的一侧（相等时卖），价格取本侧最优价。
//   - 买：报价币须超过 minTradeSize×recent，数量 = margin×报价币÷买一价
//   - 卖：基础币须超过 minTradeSize，数量 = margin×基础币
func (e *Engine) Decide(top market.Top, h inventory.Holdings) (Quote, bool) {
	if !top.Ready() {
		return Quote{}, false
	}
	if top.BidSize > top.AskSize {
		if h.Quote <= e.cfg.MinTradeSize*top.RecentPrice {
			return Quote{}, false
		}
		return Quote{Side: fix.SideBuy, Price: top.BidPrice, Size: e.cfg.Margin * h.Quote / top.BidPrice}, true
	}
	if h.Base <= e.cfg.MinTradeSize {
		return Quote{}, false
	}
	return Quote{Side: fix.SideSell, Price: top.AskPrice, Size: e.cfg.Margin * h.Base}, true
}

// VolumeSideValid 挂单是否仍成立：价格须仍是本侧最优价，且本侧挂单量不小于对侧。
func VolumeSideValid(side fix.Side, price float64, top market.Top) bool {
	if side == fix.SideBuy {
		if price != top.BidPrice {
			return false
		}
		return top.BidSize >= top.AskSize
	}
	if price != top.AskPrice {
		return false
	}
	return top.BidSize <= top.AskSize
}
