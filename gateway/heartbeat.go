package gateway

import (
	"context"
	"time"

	"go.uber.org/zap"

	"fix-market-maker/infrastructure/monitor"
)

const (
	DefaultHeartbeatCheck = time.Second
	// DefaultIdleThreshold 必须小于 HeartBtInt（30s）。
	DefaultIdleThreshold = 20 * time.Second
)

// KeepAliveSender 心跳监控依赖的会话能力。
type KeepAliveSender interface {
	LastSend() time.Time
	RequestHeartbeat() error
}

// HeartbeatMonitor 定期检查会话空闲时间，超过阈值即请求心跳。
type HeartbeatMonitor struct {
	session   KeepAliveSender
	interval  time.Duration
	threshold time.Duration
	log       *zap.Logger
	monitor   *monitor.Monitor
	now       func() time.Time
}

func NewHeartbeatMonitor(session KeepAliveSender, interval, threshold time.Duration, log *zap.Logger, mon *monitor.Monitor) *HeartbeatMonitor {
	if interval <= 0 {
		interval = DefaultHeartbeatCheck
	}
	if threshold <= 0 {
		threshold = DefaultIdleThreshold
	}
	if log == nil {
		log = zap.NewNop()
	}
	if mon == nil {
		mon = monitor.New(monitor.DefaultConfig())
	}
	return &HeartbeatMonitor{
		session:   session,
		interval:  interval,
		threshold: threshold,
		log:       log.Named("heartbeat"),
		monitor:   mon,
		now:       time.Now,
	}
}

// Run 阻塞直到 ctx 结束。发送失败只记录日志，会话的死亡由读端发现。
func (h *HeartbeatMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.check()
		}
	}
}

func (h *HeartbeatMonitor) check() {
	idle := h.now().Sub(h.session.LastSend())
	if idle <= h.threshold {
		return
	}
	if err := h.session.RequestHeartbeat(); err != nil {
		h.log.Warn("heartbeat send failed", zap.Error(err), zap.Duration("idle", idle))
		return
	}
	h.monitor.RecordHeartbeat()
	h.log.Debug("heartbeat sent", zap.Duration("idle", idle))
}
