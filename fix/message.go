package fix

import "strconv"

// Message 一条解码后的报文：字段名 -> 可读值。
type Message map[string]string

func (m Message) Get(name string) (string, bool) {
	v, ok := m[name]
	return v, ok
}

// Float 读取数值字段；缺失或格式错误返回 0,false。
func (m Message) Float(name string) (float64, bool) {
	v, ok := m[name]
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func (m Message) Type() string {
	return m[FieldMsgType]
}

func (m Message) IsExecutionReport() bool {
	return m[FieldMsgType] == MsgTypeExecutionReport
}
