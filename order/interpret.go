package order

import "fix-market-maker/fix"

// Interpret 把一条执行回报映射为新状态与本次成交增量。
//   - Filled / Done for day：成交剩余全部，保证累计量收敛到订单数量
//   - Partially filled：取 LastShares，缺失为 0
//   - Rejected / Canceled：原样透传
//   - 其它：仍为 Open，无成交
func Interpret(msg fix.Message, remaining float64) (State, float64) {
	switch msg[fix.FieldOrdStatus] {
	case fix.StatusFilled, fix.StatusDoneForDay:
		if remaining < 0 {
			remaining = 0
		}
		return Filled, remaining
	case fix.StatusPartiallyFilled:
		qty, _ := msg.Float(fix.FieldLastShares)
		return Open, qty
	case fix.StatusRejected:
		return Rejected, 0
	case fix.StatusCanceled:
		return Canceled, 0
	default:
		return Open, 0
	}
}
