package order

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"fix-market-maker/fix"
	"fix-market-maker/infrastructure/monitor"
)

// ErrLogout 交易所主动登出。
var ErrLogout = errors.New("fix logout received")

// HeartbeatReplier 用于响应 Test Request。
type HeartbeatReplier interface {
	Heartbeat(testReqID string) error
}

// Dispatcher 读取 FIX 入站字节，解码后把回报投递给对应订单。
// 单协程读取，单订单收件箱，保证同一订单的回报按到达顺序处理。
type Dispatcher struct {
	src     io.Reader
	tracker *Tracker
	replier HeartbeatReplier
	log     *zap.Logger
	monitor *monitor.Monitor
	framer  fix.Framer
}

func NewDispatcher(src io.Reader, tracker *Tracker, replier HeartbeatReplier, log *zap.Logger, mon *monitor.Monitor) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	if mon == nil {
		mon = monitor.New(monitor.DefaultConfig())
	}
	return &Dispatcher{
		src:     src,
		tracker: tracker,
		replier: replier,
		log:     log.Named("dispatcher"),
		monitor: mon,
	}
}

// Run 阻塞读取直到连接出错、收到 Logout 或 ctx 结束。
func (d *Dispatcher) Run(ctx context.Context) error {
	buf := make([]byte, 64*1024)
	for {
		n, err := d.src.Read(buf)
		if n > 0 {
			for _, frame := range d.framer.Push(buf[:n]) {
				if derr := d.process(frame); derr != nil {
					return derr
				}
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("fix connection closed by peer: %w", err)
			}
			return fmt.Errorf("read fix: %w", err)
		}
	}
}

func (d *Dispatcher) process(frame []byte) error {
	msgs, anomalies := fix.Decode(frame)
	if len(anomalies) > 0 {
		d.monitor.RecordDecodeAnomalies(len(anomalies))
		for _, a := range anomalies {
			d.log.Warn("decode anomaly", zap.Error(a))
		}
	}
	for _, msg := range msgs {
		if err := d.Dispatch(msg); err != nil {
			return err
		}
	}
	return nil
}

// Dispatch 处理一条解码后的报文。
func (d *Dispatcher) Dispatch(msg fix.Message) error {
	d.monitor.RecordReceived(msg.Type())
	switch msg.Type() {
	case fix.MsgTypeExecutionReport, fix.MsgTypeCancelReject:
		d.route(msg)
	case fix.MsgTypeTestRequest:
		id := msg[fix.FieldTestReqID]
		if err := d.replier.Heartbeat(id); err != nil {
			d.log.Warn("test request reply failed", zap.String("test_req_id", id), zap.Error(err))
		}
	case fix.MsgTypeLogon:
		d.log.Info("logon acknowledged")
	case fix.MsgTypeHeartbeat:
		d.log.Debug("heartbeat received", zap.String("test_req_id", msg[fix.FieldTestReqID]))
	case fix.MsgTypeReject:
		d.log.Warn("session reject",
			zap.String("reason", msg[fix.FieldSessionRejReason]),
			zap.String("text", msg[fix.FieldText]))
	case fix.MsgTypeLogout:
		d.log.Warn("logout received", zap.String("text", msg[fix.FieldText]))
		return ErrLogout
	default:
		d.log.Debug("message ignored", zap.String("type", msg.Type()))
	}
	return nil
}

// route 首次确认时绑定交易所订单号，再按交易所订单号查找并投递。
// 找不到说明订单已销毁，记录后丢弃。
func (d *Dispatcher) route(msg fix.Message) {
	clientID, hasClient := msg.Get(fix.FieldClOrdID)
	exchID, hasExch := msg.Get(fix.FieldOrderID)

	if msg.IsExecutionReport() && hasClient && hasExch {
		if d.tracker.BindExchangeID(clientID, exchID) {
			d.log.Debug("order bound", zap.String("client_id", clientID), zap.String("order_id", exchID))
		}
	}

	var (
		o  *Order
		ok bool
	)
	if hasExch {
		o, ok = d.tracker.ByExchangeID(exchID)
	}
	if !ok && hasClient {
		// 没有订单号的拒单回报只能按客户端订单号找
		o, ok = d.tracker.ByClientID(clientID)
	}
	if !ok {
		d.monitor.RecordDroppedReport()
		d.log.Info("report for unknown order dropped",
			zap.String("type", msg.Type()),
			zap.String("client_id", clientID),
			zap.String("order_id", exchID),
			zap.String("status", msg[fix.FieldOrdStatus]))
		return
	}
	o.Deliver(msg)
}
