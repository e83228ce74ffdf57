package fix

// 字段名，解码后 Message 以这些名字为 key。
const (
	FieldBeginString      = "BeginString"
	FieldBodyLength       = "BodyLength"
	FieldCheckSum         = "CheckSum"
	FieldClOrdID          = "ClOrdID"
	FieldCumQty           = "CumQty"
	FieldLastShares       = "LastShares"
	FieldMsgSeqNum        = "MsgSeqNum"
	FieldMsgType          = "MsgType"
	FieldOrderID          = "OrderID"
	FieldOrderQty         = "OrderQty"
	FieldOrdStatus        = "OrdStatus"
	FieldOrigClOrdID      = "OrigClOrdID"
	FieldPrice            = "Price"
	FieldSide             = "Side"
	FieldText             = "Text"
	FieldTestReqID        = "TestReqID"
	FieldOrdRejReason     = "OrdRejReason"
	FieldCxlRejReason     = "CxlRejReason"
	FieldExecType         = "ExecType"
	FieldLeavesQty        = "LeavesQty"
	FieldSessionRejReason = "SessionRejectReason"
)

// 解码后的可读值（与交易所文档一致）。
const (
	MsgTypeHeartbeat       = "Heartbeat"
	MsgTypeTestRequest     = "Test Request"
	MsgTypeReject          = "Reject"
	MsgTypeLogout          = "Logout"
	MsgTypeExecutionReport = "Execution Report"
	MsgTypeCancelReject    = "Order Cancel Reject"
	MsgTypeLogon           = "Logon"

	StatusNew             = "New"
	StatusPartiallyFilled = "Partially filled"
	StatusFilled          = "Filled"
	StatusDoneForDay      = "Done for day"
	StatusCanceled        = "Canceled"
	StatusRejected        = "Rejected"

	RejectInsufficientFunds = "Insufficient funds"
)

// 发出消息的 35 取值。
const (
	TypeHeartbeat   = "0"
	TypeTestRequest = "1"
	TypeLogon       = "A"
	TypeNewOrder    = "D"
	TypeCancel      = "F"
)

// Side 报单方向在线上的编码（54）。
type Side string

const (
	SideBuy  Side = "1"
	SideSell Side = "2"
)

// tagNames 编号 -> 字段名。
var tagNames = map[string]string{
	"1":    "Account",
	"6":    "AvgPx",
	"8":    FieldBeginString,
	"9":    FieldBodyLength,
	"10":   FieldCheckSum,
	"11":   FieldClOrdID,
	"14":   FieldCumQty,
	"17":   "ExecID",
	"20":   "ExecTransType",
	"21":   "HandlInst",
	"31":   "LastPx",
	"32":   FieldLastShares,
	"34":   FieldMsgSeqNum,
	"35":   FieldMsgType,
	"37":   FieldOrderID,
	"38":   FieldOrderQty,
	"39":   FieldOrdStatus,
	"40":   "OrdType",
	"41":   FieldOrigClOrdID,
	"44":   FieldPrice,
	"45":   "RefSeqNum",
	"49":   "SenderCompID",
	"52":   "SendingTime",
	"54":   FieldSide,
	"55":   "Symbol",
	"56":   "TargetCompID",
	"58":   FieldText,
	"59":   "TimeInForce",
	"60":   "TransactTime",
	"96":   "RawData",
	"98":   "EncryptMethod",
	"102":  FieldCxlRejReason,
	"103":  FieldOrdRejReason,
	"108":  "HeartBtInt",
	"112":  FieldTestReqID,
	"136":  "NoMiscFees",
	"137":  "MiscFeeAmt",
	"139":  "MiscFeeType",
	"150":  FieldExecType,
	"151":  FieldLeavesQty,
	"371":  "RefTagID",
	"372":  "RefMsgType",
	"373":  FieldSessionRejReason,
	"434":  "CxlRejResponseTo",
	"554":  "Password",
	"1003": "TradeID",
	"1057": "AggressorIndicator",
	"7928": "SelfTradePrevention",
	"8013": "CancelOrdersOnDisconnect",
	"9406": "DropCopyFlag",
}

// codedValues 带枚举值的字段：编号 -> 原值 -> 可读值。
var codedValues = map[string]map[string]string{
	"20": {"0": "New", "1": "Cancel", "2": "Correct", "3": "Status"},
	"21": {
		"1": "Automated execution order, private, no Broker intervention",
		"2": "Automated execution order, public, Broker intervention OK",
		"3": "Manual order, best execution",
	},
	"35": {
		"0": MsgTypeHeartbeat,
		"1": MsgTypeTestRequest,
		"2": "Resend Request",
		"3": MsgTypeReject,
		"4": "Sequence Reset",
		"5": MsgTypeLogout,
		"8": MsgTypeExecutionReport,
		"9": MsgTypeCancelReject,
		"A": MsgTypeLogon,
		"D": "New Order - Single",
		"F": "Order Cancel Request",
		"G": "Order Cancel/Replace Request",
		"H": "Order Status Request",
	},
	"39": {
		"0": StatusNew,
		"1": StatusPartiallyFilled,
		"2": StatusFilled,
		"3": StatusDoneForDay,
		"4": StatusCanceled,
		"5": "Replaced",
		"6": "Pending Cancel",
		"7": "Stopped",
		"8": StatusRejected,
		"A": "Pending New",
		"C": "Expired",
	},
	"40": {"1": "Market", "2": "Limit", "3": "Stop", "4": "Stop limit"},
	"54": {"1": "Buy", "2": "Sell"},
	"59": {
		"1": "Good Till Cancel",
		"3": "Immediate or Cancel",
		"4": "Fill or Kill",
		"P": "Post-Only",
	},
	"98": {"0": "None / other"},
	"102": {
		"0": "Too late to cancel",
		"1": "Unknown order",
	},
	"103": {
		"0": "Unknown error",
		"1": "Unknown symbol",
		"2": "Exchange closed",
		"3": RejectInsufficientFunds,
		"5": "Unknown order",
		"6": "Duplicate order",
		"8": "Post only",
	},
	"150": {
		"0": "New",
		"1": "Partial fill",
		"2": "Fill",
		"3": "Done",
		"4": "Canceled",
		"7": "Stopped",
		"8": "Rejected",
		"D": "Restated",
		"I": "Order Status",
	},
	"434": {"1": "Order Cancel Request", "2": "Order Cancel/Replace Request"},
	"1057": {"Y": "Taker", "N": "Maker"},
	"8013": {"Y": "Cancel all on disconnect", "S": "Cancel session orders on disconnect", "N": "Keep orders"},
}
