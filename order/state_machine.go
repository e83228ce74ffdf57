package order

import "fmt"

// State 订单生命周期状态。
type State int

const (
	Submitted State = iota
	Open
	CancelRequested
	Filled
	Canceled
	Rejected
)

func (s State) String() string {
	switch s {
	case Submitted:
		return "SUBMITTED"
	case Open:
		return "OPEN"
	case CancelRequested:
		return "CANCEL_REQUESTED"
	case Filled:
		return "FILLED"
	case Canceled:
		return "CANCELED"
	case Rejected:
		return "REJECTED"
	default:
		return fmt.Sprintf("STATE(%d)", int(s))
	}
}

// Terminal 终态之后只剩销毁。
func (s State) Terminal() bool {
	return s == Filled || s == Canceled || s == Rejected
}

// transition 状态转换
type transition struct {
	from State
	to   State
}

// legalTransitions 所有合法的状态转换
var legalTransitions = map[transition]bool{
	// 从SUBMITTED可以转到
	{Submitted, Open}:     true,
	{Submitted, Rejected}: true,
	{Submitted, Filled}:   true,
	{Submitted, Canceled}: true,

	// 从OPEN可以转到
	{Open, CancelRequested}: true,
	{Open, Filled}:          true,
	{Open, Canceled}:        true,
	{Open, Rejected}:        true,

	// 撤单中仍可能全部成交
	{CancelRequested, Filled}:   true,
	{CancelRequested, Canceled}: true,

	// 终态不能转换（FILLED, CANCELED, REJECTED）
}

// ValidateTransition 验证状态转换是否合法，相同状态视为幂等。
func ValidateTransition(from, to State) error {
	if from == to {
		return nil
	}
	if !legalTransitions[transition{from, to}] {
		return fmt.Errorf("illegal state transition: %s -> %s", from, to)
	}
	return nil
}
