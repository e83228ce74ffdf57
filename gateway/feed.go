package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"fix-market-maker/infrastructure/monitor"
	"fix-market-maker/market"
)

const (
	DefaultFeedURL         = "wss://ws-feed.exchange.coinbase.com"
	defaultFeedReadTimeout = 30 * time.Second
	defaultReconnectStep   = time.Second
	maxReconnectDelay      = 30 * time.Second
)

// FeedConfig level2 行情订阅参数。
type FeedConfig struct {
	URL           string
	Product       string
	ReadTimeout   time.Duration
	ReconnectStep time.Duration
}

// FeedClient 订阅 level2 频道，把快照和增量应用到订单簿。
// 断线后线性退避重连，每次重连都会收到新的快照。
type FeedClient struct {
	cfg     FeedConfig
	handler market.FeedHandler
	dialer  *websocket.Dialer
	log     *zap.Logger
	monitor *monitor.Monitor
}

func NewFeedClient(cfg FeedConfig, handler market.FeedHandler, log *zap.Logger, mon *monitor.Monitor) *FeedClient {
	if cfg.URL == "" {
		cfg.URL = DefaultFeedURL
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = defaultFeedReadTimeout
	}
	if cfg.ReconnectStep <= 0 {
		cfg.ReconnectStep = defaultReconnectStep
	}
	if log == nil {
		log = zap.NewNop()
	}
	if mon == nil {
		mon = monitor.New(monitor.DefaultConfig())
	}
	return &FeedClient{
		cfg:     cfg,
		handler: handler,
		dialer:  websocket.DefaultDialer,
		log:     log.Named("feed"),
		monitor: mon,
	}
}

// Run 阻塞直到 ctx 结束。订阅成功过的连接断开后退避从头计算。
func (f *FeedClient) Run(ctx context.Context) error {
	attempt := 0
	for {
		subscribed, err := f.runOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if subscribed {
			attempt = 0
		}
		attempt++
		delay := f.reconnectDelay(attempt)
		f.monitor.RecordFeedReconnect()
		f.log.Warn("feed disconnected, reconnecting", zap.Error(err), zap.Int("attempt", attempt), zap.Duration("delay", delay))
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// reconnectDelay 第 n 次连续失败的等待时间，线性增长并封顶。
func (f *FeedClient) reconnectDelay(attempt int) time.Duration {
	delay := time.Duration(attempt) * f.cfg.ReconnectStep
	if delay > maxReconnectDelay {
		delay = maxReconnectDelay
	}
	return delay
}

// runOnce 跑一条连接；返回的 bool 表示订阅已发出。
func (f *FeedClient) runOnce(ctx context.Context) (bool, error) {
	conn, _, err := f.dialer.DialContext(ctx, f.cfg.URL, nil)
	if err != nil {
		return false, fmt.Errorf("dial feed: %w", err)
	}
	defer conn.Close()

	// ctx 结束时关闭连接以打断阻塞读。
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	sub := map[string]any{
		"type":        "subscribe",
		"product_ids": []string{f.cfg.Product},
		"channels":    []string{"level2"},
	}
	if err := conn.WriteJSON(sub); err != nil {
		return false, fmt.Errorf("subscribe: %w", err)
	}
	f.log.Info("feed subscribed", zap.String("url", f.cfg.URL), zap.String("product", f.cfg.Product))

	for {
		_ = conn.SetReadDeadline(time.Now().Add(f.cfg.ReadTimeout))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return true, err
		}
		if err := f.handle(raw); err != nil {
			var fatal *feedError
			if errors.As(err, &fatal) {
				return true, err
			}
			f.log.Warn("feed message skipped", zap.Error(err))
		}
	}
}

type feedError struct{ msg string }

func (e *feedError) Error() string { return "feed error: " + e.msg }

func (f *FeedClient) handle(raw []byte) error {
	msg, err := ParseFeedMessage(raw)
	if err != nil {
		return err
	}
	switch msg.Type {
	case FeedSnapshot:
		bids, asks := msg.SnapshotLevels()
		f.handler.ApplySnapshot(bids, asks)
		f.log.Info("book snapshot applied", zap.Int("bids", len(bids)), zap.Int("asks", len(asks)))
	case FeedL2Update:
		changes, err := msg.ParsedChanges()
		if err != nil {
			return err
		}
		for _, c := range changes {
			f.handler.ApplyDiff(c.Side, c.Price, c.Size)
		}
	case FeedError:
		return &feedError{msg: msg.Message + ": " + msg.Reason}
	case FeedSubscription:
	default:
		f.log.Debug("feed message ignored", zap.String("type", msg.Type))
	}
	return nil
}
