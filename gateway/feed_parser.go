package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"fix-market-maker/market"
)

// 行情频道消息类型。
const (
	FeedSnapshot     = "snapshot"
	FeedL2Update     = "l2update"
	FeedSubscription = "subscriptions"
	FeedError        = "error"
)

// FeedMessage level2 频道消息的公共字段。
type FeedMessage struct {
	Type      string               `json:"type"`
	ProductID string               `json:"product_id"`
	Bids      [][2]decimal.Decimal `json:"bids"`
	Asks      [][2]decimal.Decimal `json:"asks"`
	Changes   [][3]string          `json:"changes"`
	Message   string               `json:"message"`
	Reason    string               `json:"reason"`
}

// Change l2update 中的一条档位变化；Size 为 0 表示删除该价位。
type Change struct {
	Side  market.Side
	Price float64
	Size  float64
}

func ParseFeedMessage(raw []byte) (FeedMessage, error) {
	var msg FeedMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return FeedMessage{}, err
	}
	return msg, nil
}

// SnapshotLevels 把快照转换为订单簿档位。
func (m FeedMessage) SnapshotLevels() (bids, asks []market.Level) {
	return toLevels(m.Bids), toLevels(m.Asks)
}

// ParsedChanges 解析 changes，"buy" 为买盘，"sell" 为卖盘。
func (m FeedMessage) ParsedChanges() ([]Change, error) {
	out := make([]Change, 0, len(m.Changes))
	for _, c := range m.Changes {
		var side market.Side
		switch c[0] {
		case "buy":
			side = market.Bid
		case "sell":
			side = market.Ask
		default:
			return nil, fmt.Errorf("unknown change side %q", c[0])
		}
		price, err := decimal.NewFromString(c[1])
		if err != nil {
			return nil, fmt.Errorf("change price %q: %w", c[1], err)
		}
		size, err := decimal.NewFromString(c[2])
		if err != nil {
			return nil, fmt.Errorf("change size %q: %w", c[2], err)
		}
		out = append(out, Change{Side: side, Price: price.InexactFloat64(), Size: size.InexactFloat64()})
	}
	return out, nil
}

func toLevels(rows [][2]decimal.Decimal) []market.Level {
	out := make([]market.Level, 0, len(rows))
	for _, r := range rows {
		out = append(out, market.Level{Price: r[0].InexactFloat64(), Size: r[1].InexactFloat64()})
	}
	return out
}
