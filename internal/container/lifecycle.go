package container

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"fix-market-maker/infrastructure/logger"
)

// Lifecycle 生命周期接口
type Lifecycle interface {
	Start(ctx context.Context) error
	Stop() error
	Health() error
}

// LifecycleManager 生命周期管理器
type LifecycleManager struct {
	components []Lifecycle
	mu         sync.RWMutex
}

// NewLifecycleManager 创建新的生命周期管理器
func NewLifecycleManager() *LifecycleManager {
	return &LifecycleManager{
		components: make([]Lifecycle, 0),
	}
}

// Register 注册组件
func (m *LifecycleManager) Register(component Lifecycle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.components = append(m.components, component)
}

// StartAll 按顺序启动所有组件
func (m *LifecycleManager) StartAll(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i, component := range m.components {
		if err := component.Start(ctx); err != nil {
			// 启动失败，回滚已启动的组件
			for j := i - 1; j >= 0; j-- {
				_ = m.components[j].Stop()
			}
			return fmt.Errorf("start component %d failed: %w", i, err)
		}
	}
	return nil
}

// StopAll 逆序停止所有组件
func (m *LifecycleManager) StopAll() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var lastErr error
	for i := len(m.components) - 1; i >= 0; i-- {
		if err := m.components[i].Stop(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// CheckHealth 检查所有组件健康状态
func (m *LifecycleManager) CheckHealth() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i, component := range m.components {
		if err := component.Health(); err != nil {
			return fmt.Errorf("component %d unhealthy: %w", i, err)
		}
	}
	return nil
}

// httpServerComponent HTTP服务器组件
type httpServerComponent struct {
	name    string
	handler http.Handler
	addr    string
	logger  *logger.Logger
	server  **http.Server
	started bool
	mu      sync.Mutex
}

func (h *httpServerComponent) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.started {
		return nil
	}

	srv := &http.Server{
		Addr:              h.addr,
		Handler:           h.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	*h.server = srv

	go func() {
		h.logger.Logger.Info(fmt.Sprintf("%s listening on %s", h.name, h.addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.LogError(err, map[string]interface{}{
				"component": h.name,
				"action":    "listen",
			})
		}
	}()

	h.started = true
	return nil
}

func (h *httpServerComponent) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.started || *h.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := (*h.server).Shutdown(ctx); err != nil {
		return fmt.Errorf("%s shutdown failed: %w", h.name, err)
	}

	h.logger.Logger.Info(fmt.Sprintf("%s stopped", h.name))
	h.started = false
	return nil
}

func (h *httpServerComponent) Health() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.started {
		return fmt.Errorf("%s not started", h.name)
	}
	return nil
}

// taskComponent 在后台协程中运行一个阻塞任务。
// 任务在未被 Stop 的情况下退出视为致命，交给 onFatal。
type taskComponent struct {
	name   string
	logger *logger.Logger

	prepare   func(ctx context.Context) error // 同步执行，失败则不启动
	run       func(ctx context.Context) error
	interrupt func() // Stop 时在取消 ctx 之后调用，用于打断阻塞读
	onFatal   func(err error)

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	err     error
	stopped bool
}

var errTaskExited = errors.New("task exited")

func (t *taskComponent) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done != nil {
		return nil
	}
	if t.prepare != nil {
		if err := t.prepare(ctx); err != nil {
			return fmt.Errorf("%s: %w", t.name, err)
		}
	}
	runCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.done = make(chan struct{})
	t.stopped = false

	go func() {
		err := t.run(runCtx)
		if err == nil {
			err = errTaskExited
		}
		t.mu.Lock()
		t.err = err
		stopped := t.stopped
		t.mu.Unlock()
		close(t.done)

		if stopped || runCtx.Err() != nil {
			t.logger.Logger.Info(fmt.Sprintf("%s stopped", t.name))
			return
		}
		t.logger.LogError(err, map[string]interface{}{"component": t.name, "action": "run"})
		if t.onFatal != nil {
			t.onFatal(fmt.Errorf("%s: %w", t.name, err))
		}
	}()

	t.logger.Logger.Info(fmt.Sprintf("%s started", t.name))
	return nil
}

func (t *taskComponent) Stop() error {
	t.mu.Lock()
	if t.done == nil {
		t.mu.Unlock()
		return nil
	}
	t.stopped = true
	cancel, done := t.cancel, t.done
	t.mu.Unlock()

	cancel()
	if t.interrupt != nil {
		t.interrupt()
	}
	<-done
	return nil
}

func (t *taskComponent) Health() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done == nil {
		return fmt.Errorf("%s not started", t.name)
	}
	select {
	case <-t.done:
		return fmt.Errorf("%s exited: %w", t.name, t.err)
	default:
		return nil
	}
}
