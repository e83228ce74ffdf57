// Package fix 实现交易所 FIX 4.2 报文的编解码，不持有任何连接状态。
package fix

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	BeginString = "FIX.4.2"
	// SOH 是 FIX 字段分隔符。
	SOH = "\x01"

	delimiter = "|"
	header    = "8=" + BeginString + SOH
)

var (
	ErrUnknownTag   = errors.New("fix: unknown tag")
	ErrUnknownValue = errors.New("fix: unknown coded value")
)

// Field 单个 tag=value。
type Field struct {
	Tag   int
	Value string
}

// F 构造 Field 的简写。
func F(tag int, value string) Field {
	return Field{Tag: tag, Value: value}
}

// Encode 组装完整报文：头部、正文、校验和。
// BodyLength 覆盖 35=<type>| 到正文末尾（不含 8/9 字段）。
func Encode(msgType string, fields []Field) []byte {
	var body strings.Builder
	for _, f := range fields {
		body.WriteString(strconv.Itoa(f.Tag))
		body.WriteByte('=')
		body.WriteString(f.Value)
		body.WriteString(delimiter)
	}
	typeField := "35=" + msgType + delimiter
	bodyLen := len(typeField) + body.Len()

	msg := "8=" + BeginString + delimiter + "9=" + strconv.Itoa(bodyLen) + delimiter + typeField + body.String()
	msg = strings.ReplaceAll(msg, delimiter, SOH)
	msg += "10=" + Checksum([]byte(msg)) + SOH
	return []byte(msg)
}

// Checksum 所有字节之和对 256 取模，固定三位。
func Checksum(b []byte) string {
	sum := 0
	for _, c := range b {
		sum += int(c)
	}
	return fmt.Sprintf("%03d", sum%256)
}

// Decode 将原始字节拆成若干条报文；一个缓冲区可能拼接了多条。
// 未知 tag/枚举值记录为异常并跳过，不会中断解析。
func Decode(raw []byte) ([]Message, []error) {
	var (
		out       []Message
		anomalies []error
	)
	for _, chunk := range strings.Split(string(raw), header) {
		if chunk == "" {
			continue
		}
		msg := Message{}
		for _, token := range strings.Split(chunk, SOH) {
			tag, value, ok := strings.Cut(token, "=")
			if !ok {
				// 末尾空 token
				continue
			}
			name, known := tagNames[tag]
			if !known {
				anomalies = append(anomalies, fmt.Errorf("%w: %s=%s", ErrUnknownTag, tag, value))
				continue
			}
			if table, coded := codedValues[tag]; coded {
				symbol, ok := table[value]
				if !ok {
					anomalies = append(anomalies, fmt.Errorf("%w: %s=%s", ErrUnknownValue, tag, value))
					continue
				}
				value = symbol
			}
			msg[name] = value
		}
		out = append(out, msg)
	}
	return out, anomalies
}

// Pretty 把 SOH 替换为 |，方便日志阅读。
func Pretty(b []byte) string {
	return strings.ReplaceAll(string(b), SOH, delimiter)
}
