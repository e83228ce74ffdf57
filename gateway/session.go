package gateway

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fix-market-maker/fix"
	"fix-market-maker/infrastructure/monitor"
)

var ErrSessionClosed = errors.New("fix session closed")

// SessionConfig FIX 会话参数。
type SessionConfig struct {
	Addr         string
	TLS          bool
	Symbol       string
	Credentials  fix.Credentials
	DialTimeout  time.Duration
	WriteTimeout time.Duration
}

// Session 持有 FIX 连接、出站序号与最近一次发送时间。
// 序号分配与写连接在同一把锁内完成，序号顺序即发送顺序。
type Session struct {
	conn    net.Conn
	cfg     SessionConfig
	log     *zap.Logger
	monitor *monitor.Monitor
	now     func() time.Time

	sendMu   sync.Mutex
	seq      atomic.Int64
	lastSend atomic.Int64
	closed   atomic.Bool
}

// NewSession 包装已建立的连接。
func NewSession(conn net.Conn, cfg SessionConfig, log *zap.Logger, mon *monitor.Monitor) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	if mon == nil {
		mon = monitor.New(monitor.DefaultConfig())
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	s := &Session{
		conn:    conn,
		cfg:     cfg,
		log:     log.Named("session"),
		monitor: mon,
		now:     time.Now,
	}
	s.lastSend.Store(time.Now().UnixNano())
	return s
}

// Dial 建立 TCP（可选 TLS）连接。通常连到本机 stunnel。
func Dial(ctx context.Context, cfg SessionConfig, log *zap.Logger, mon *monitor.Monitor) (*Session, error) {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	d := &net.Dialer{Timeout: cfg.DialTimeout}
	var (
		conn net.Conn
		err  error
	)
	if cfg.TLS {
		td := &tls.Dialer{NetDialer: d}
		conn, err = td.DialContext(ctx, "tcp", cfg.Addr)
	} else {
		conn, err = d.DialContext(ctx, "tcp", cfg.Addr)
	}
	if err != nil {
		return nil, fmt.Errorf("dial fix %s: %w", cfg.Addr, err)
	}
	return NewSession(conn, cfg, log, mon), nil
}

// NextSequence 下一条出站报文将使用的序号。
func (s *Session) NextSequence() int {
	return int(s.seq.Load())
}

// LastSend 最近一次成功发送的时间，心跳以此判断空闲。
func (s *Session) LastSend() time.Time {
	return time.Unix(0, s.lastSend.Load())
}

// Read 读取入站原始字节，供回报分发使用。
func (s *Session) Read(p []byte) (int, error) {
	return s.conn.Read(p)
}

func (s *Session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.conn.Close()
}

// send 分配序号、编码并写出；写失败不消耗序号。
func (s *Session) send(msgType string, build func(seq int, now time.Time) ([]fix.Field, error)) (int, error) {
	if s.closed.Load() {
		return 0, ErrSessionClosed
	}
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	seq := int(s.seq.Load())
	fields, err := build(seq, s.now())
	if err != nil {
		return 0, err
	}
	raw := fix.Encode(msgType, fields)

	_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	if _, err := s.conn.Write(raw); err != nil {
		return 0, fmt.Errorf("write fix msg type=%s seq=%d: %w", msgType, seq, err)
	}
	s.seq.Add(1)
	s.lastSend.Store(s.now().UnixNano())
	s.monitor.RecordSent(msgType)
	s.log.Debug("fix msg sent", zap.String("type", msgType), zap.Int("seq", seq), zap.String("raw", fix.Pretty(raw)))
	return seq, nil
}

// Logon 发送登录报文。
func (s *Session) Logon() error {
	_, err := s.send(fix.TypeLogon, func(seq int, now time.Time) ([]fix.Field, error) {
		return fix.LogonFields(s.cfg.Credentials, seq, now)
	})
	if err != nil {
		return fmt.Errorf("logon: %w", err)
	}
	s.log.Info("logon sent", zap.String("addr", s.cfg.Addr))
	return nil
}

// NewOrder 发送限价 post-only 新单。
func (s *Session) NewOrder(clientID string, side fix.Side, price, size float64) error {
	_, err := s.send(fix.TypeNewOrder, func(seq int, now time.Time) ([]fix.Field, error) {
		return fix.NewOrderFields(s.cfg.Credentials.Key, s.cfg.Symbol, clientID, side, price, size, seq, now), nil
	})
	return err
}

// Cancel 按交易所订单号与客户端订单号撤单。
func (s *Session) Cancel(orderID, clientID string) error {
	_, err := s.send(fix.TypeCancel, func(seq int, now time.Time) ([]fix.Field, error) {
		return fix.CancelFields(s.cfg.Credentials.Key, s.cfg.Symbol, uuid.NewString(), orderID, clientID, seq, now), nil
	})
	return err
}

// Heartbeat 发送心跳；testReqID 非空时用于响应 Test Request。
func (s *Session) Heartbeat(testReqID string) error {
	_, err := s.send(fix.TypeHeartbeat, func(seq int, now time.Time) ([]fix.Field, error) {
		return fix.HeartbeatFields(s.cfg.Credentials.Key, testReqID, seq, now), nil
	})
	return err
}

// RequestHeartbeat 空闲保活：发送 Test Request（35=1），交易所以心跳回应。
func (s *Session) RequestHeartbeat() error {
	_, err := s.send(fix.TypeTestRequest, func(seq int, now time.Time) ([]fix.Field, error) {
		return fix.TestRequestFields(s.cfg.Credentials.Key, SendingTimeID(now), seq, now), nil
	})
	return err
}

// SendingTimeID 以发送时间作为 TestReqID。
func SendingTimeID(now time.Time) string {
	return fix.SendingTime(now)
}
