package inventory

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const DefaultRetryDelay = time.Second

// Retry 固定间隔、不限次数的余额查询重试。
// 没有可靠余额就无法安全地计算下单数量，所以不会放弃。
type Retry struct {
	Delay     time.Duration
	Logger    *zap.Logger
	OnFailure func(error)
}

// Fetch 重试直到拿到完整的余额，仅在 ctx 结束时返回错误。
func (r Retry) Fetch(ctx context.Context, src BalanceSource) (Holdings, error) {
	delay := r.Delay
	if delay <= 0 {
		delay = DefaultRetryDelay
	}
	log := r.Logger
	if log == nil {
		log = zap.NewNop()
	}
	for attempt := 1; ; attempt++ {
		h, err := src.Balances(ctx)
		if err == nil {
			log.Info("balances fetched", zap.Float64("quote", h.Quote), zap.Float64("base", h.Base), zap.Int("attempt", attempt))
			return h, nil
		}
		if r.OnFailure != nil {
			r.OnFailure(err)
		}
		log.Warn("balance fetch failed, retrying", zap.Error(err), zap.Int("attempt", attempt), zap.Duration("delay", delay))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Holdings{}, ctx.Err()
		case <-timer.C:
		}
	}
}
