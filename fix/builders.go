package fix

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// TargetCompID 交易所场所标识，同时参与登录签名。
	TargetCompID = "Coinbase"
	// HeartBtInt 协议规定的最大空闲秒数。
	HeartBtInt = 30

	sendingTimeLayout = "20060102-15:04:05.000"
)

// Credentials API 凭证；Secret 为 base64 编码。
type Credentials struct {
	Key        string
	Secret     string
	Passphrase string
}

// SendingTime 格式化 52 字段（UTC，毫秒）。
func SendingTime(t time.Time) string {
	return t.UTC().Format(sendingTimeLayout)
}

// FormatDecimal 以最短十进制形式输出，不使用科学计数法。
func FormatDecimal(v float64) string {
	return decimal.NewFromFloat(v).String()
}

// Signature 登录签名：HMAC-SHA256(base64decode(secret), time|A|seq|key|Coinbase|passphrase)，以 SOH 连接。
func Signature(creds Credentials, sendingTime string, seq int) (string, error) {
	key, err := base64.StdEncoding.DecodeString(creds.Secret)
	if err != nil {
		return "", fmt.Errorf("decode api secret: %w", err)
	}
	prehash := strings.Join([]string{
		sendingTime, TypeLogon, strconv.Itoa(seq), creds.Key, TargetCompID, creds.Passphrase,
	}, SOH)
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(prehash))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

// LogonFields 登录正文。
func LogonFields(creds Credentials, seq int, now time.Time) ([]Field, error) {
	ts := SendingTime(now)
	sig, err := Signature(creds, ts, seq)
	if err != nil {
		return nil, err
	}
	return []Field{
		F(34, strconv.Itoa(seq)),
		F(49, creds.Key),
		F(52, ts),
		F(56, TargetCompID),
		F(96, sig),
		F(98, "0"),
		F(108, strconv.Itoa(HeartBtInt)),
		F(554, creds.Passphrase),
		F(8013, "Y"),
	}, nil
}

// NewOrderFields 限价 post-only 新单。
func NewOrderFields(apiKey, symbol, clientID string, side Side, price, size float64, seq int, now time.Time) []Field {
	return []Field{
		F(21, "1"),
		F(11, clientID),
		F(55, symbol),
		F(54, string(side)),
		F(44, FormatDecimal(price)),
		F(38, FormatDecimal(size)),
		F(40, "2"),
		F(59, "P"),
		F(34, strconv.Itoa(seq)),
		F(49, apiKey),
		F(52, SendingTime(now)),
	}
}

// CancelFields 撤单请求；requestID 为本次撤单自己的 ClOrdID。
func CancelFields(apiKey, symbol, requestID, orderID, clientID string, seq int, now time.Time) []Field {
	return []Field{
		F(11, requestID),
		F(37, orderID),
		F(41, clientID),
		F(55, symbol),
		F(34, strconv.Itoa(seq)),
		F(49, apiKey),
		F(52, SendingTime(now)),
	}
}

// HeartbeatFields 心跳；响应 Test Request 时带上 TestReqID。
func HeartbeatFields(apiKey, testReqID string, seq int, now time.Time) []Field {
	fields := []Field{
		F(34, strconv.Itoa(seq)),
		F(49, apiKey),
		F(52, SendingTime(now)),
	}
	if testReqID != "" {
		fields = append(fields, F(112, testReqID))
	}
	return fields
}

// TestRequestFields 请求对端回一个心跳，空闲保活使用。
func TestRequestFields(apiKey, testReqID string, seq int, now time.Time) []Field {
	return []Field{
		F(34, strconv.Itoa(seq)),
		F(49, apiKey),
		F(52, SendingTime(now)),
		F(112, testReqID),
	}
}
