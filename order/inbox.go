package order

import (
	"context"
	"sync"

	"fix-market-maker/fix"
)

// Inbox 无界 FIFO 收件箱。分发协程只管 Push，永不阻塞。
type Inbox struct {
	mu     sync.Mutex
	queue  []fix.Message
	notify chan struct{}
}

func NewInbox() *Inbox {
	return &Inbox{notify: make(chan struct{}, 1)}
}

func (b *Inbox) Push(msg fix.Message) {
	b.mu.Lock()
	b.queue = append(b.queue, msg)
	b.mu.Unlock()
	select {
	case b.notify <- struct{}{}:
	default:
	}
}

// TryPop 非阻塞取出队首。
func (b *Inbox) TryPop() (fix.Message, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.queue) == 0 {
		return nil, false
	}
	msg := b.queue[0]
	b.queue[0] = nil
	b.queue = b.queue[1:]
	return msg, true
}

// Notify 有新消息时可读；读到信号后应循环 TryPop 直到为空。
func (b *Inbox) Notify() <-chan struct{} {
	return b.notify
}

// Wait 阻塞直到取到一条消息或 ctx 结束。
func (b *Inbox) Wait(ctx context.Context) (fix.Message, error) {
	for {
		if msg, ok := b.TryPop(); ok {
			return msg, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-b.notify:
		}
	}
}

func (b *Inbox) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}
