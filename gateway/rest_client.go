package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"fix-market-maker/fix"
	"fix-market-maker/inventory"
	"fix-market-maker/market"
)

// timeNow 便于测试注入固定时间戳。
var timeNow = time.Now

// RESTClient Coinbase Exchange 签名 REST 客户端，只用于查余额和拉取初始盘口。
type RESTClient struct {
	BaseURL     string
	Credentials fix.Credentials
	Product     string
	QuoteCcy    string
	BaseCcy     string
	HTTPClient  *http.Client
	Limiter     RateLimiter
}

type accountEntry struct {
	Currency  string          `json:"currency"`
	Balance   decimal.Decimal `json:"balance"`
	Available decimal.Decimal `json:"available"`
}

type bookResp struct {
	Bids [][]json.RawMessage `json:"bids"`
	Asks [][]json.RawMessage `json:"asks"`
}

// Sign 生成 CB-ACCESS-SIGN：base64(HMAC-SHA256(base64decode(secret), ts+method+path+body))。
func Sign(secret, timestamp, method, path, body string) (string, error) {
	key, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return "", fmt.Errorf("decode api secret: %w", err)
	}
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(timestamp + method + path + body))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

// Balances 实现 inventory.BalanceSource；任何不完整的结果都返回错误，由上层重试。
func (c *RESTClient) Balances(ctx context.Context) (inventory.Holdings, error) {
	var accounts []accountEntry
	if err := c.get(ctx, "/accounts", true, &accounts); err != nil {
		return inventory.Holdings{}, err
	}
	var (
		h                 inventory.Holdings
		hasQuote, hasBase bool
	)
	for _, a := range accounts {
		switch a.Currency {
		case c.QuoteCcy:
			h.Quote, hasQuote = a.Balance.InexactFloat64(), true
		case c.BaseCcy:
			h.Base, hasBase = a.Balance.InexactFloat64(), true
		}
	}
	if !hasQuote || !hasBase {
		return inventory.Holdings{}, fmt.Errorf("accounts missing %s/%s (quote=%v base=%v)", c.QuoteCcy, c.BaseCcy, hasQuote, hasBase)
	}
	return h, nil
}

// Book 拉取 level=2 聚合盘口，在 websocket 快照到达前预热订单簿。
func (c *RESTClient) Book(ctx context.Context) (bids, asks []market.Level, err error) {
	var resp bookResp
	if err := c.get(ctx, "/products/"+c.Product+"/book?level=2", false, &resp); err != nil {
		return nil, nil, err
	}
	if bids, err = parseRESTLevels(resp.Bids); err != nil {
		return nil, nil, fmt.Errorf("bids: %w", err)
	}
	if asks, err = parseRESTLevels(resp.Asks); err != nil {
		return nil, nil, fmt.Errorf("asks: %w", err)
	}
	return bids, asks, nil
}

// parseRESTLevels 每档为 [price, size, num-orders]，只取前两项。
func parseRESTLevels(rows [][]json.RawMessage) ([]market.Level, error) {
	out := make([]market.Level, 0, len(rows))
	for i, row := range rows {
		if len(row) < 2 {
			return nil, fmt.Errorf("level %d: want [price,size], got %d items", i, len(row))
		}
		var price, size decimal.Decimal
		if err := json.Unmarshal(row[0], &price); err != nil {
			return nil, fmt.Errorf("level %d price: %w", i, err)
		}
		if err := json.Unmarshal(row[1], &size); err != nil {
			return nil, fmt.Errorf("level %d size: %w", i, err)
		}
		out = append(out, market.Level{Price: price.InexactFloat64(), Size: size.InexactFloat64()})
	}
	return out, nil
}

func (c *RESTClient) get(ctx context.Context, path string, signed bool, out any) error {
	if c == nil || c.HTTPClient == nil {
		return fmt.Errorf("http client not set")
	}
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "fix-market-maker")
	if signed {
		ts := strconv.FormatInt(timeNow().Unix(), 10)
		sig, err := Sign(c.Credentials.Secret, ts, http.MethodGet, path, "")
		if err != nil {
			return err
		}
		req.Header.Set("CB-ACCESS-KEY", c.Credentials.Key)
		req.Header.Set("CB-ACCESS-SIGN", sig)
		req.Header.Set("CB-ACCESS-TIMESTAMP", ts)
		req.Header.Set("CB-ACCESS-PASSPHRASE", c.Credentials.Passphrase)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("GET %s status %d: %s", path, resp.StatusCode, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// NewDefaultHTTPClient 提供一个带超时的 http.Client。
func NewDefaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}
