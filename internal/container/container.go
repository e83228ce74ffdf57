package container

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"fix-market-maker/config"
	"fix-market-maker/fix"
	"fix-market-maker/gateway"
	"fix-market-maker/infrastructure/alert"
	"fix-market-maker/infrastructure/logger"
	"fix-market-maker/infrastructure/monitor"
	"fix-market-maker/inventory"
	"fix-market-maker/market"
	"fix-market-maker/order"
	"fix-market-maker/strategy"
)

// Container 依赖注入容器，管理所有组件的生命周期
type Container struct {
	cfg     *config.AppConfig
	cfgPath string

	// 基础设施
	logger  *logger.Logger
	monitor *monitor.Monitor
	alerts  *alert.Manager

	// 交易所网关
	rest      *gateway.RESTClient
	session   *gateway.Session
	feed      *gateway.FeedClient
	heartbeat *gateway.HeartbeatMonitor

	// 核心服务
	book       *market.OrderBook
	account    *inventory.Account
	tracker    *order.Tracker
	orders     *order.Lifecycle
	dispatcher *order.Dispatcher
	controller *strategy.Controller

	metricsServer *http.Server

	components *LifecycleManager
	fatal      chan error
}

// New 加载配置并创建 Container；dotenv 为可选的 .env 文件。
func New(configPath string, dotenv ...string) (*Container, error) {
	cfg, err := config.LoadWithEnvOverrides(configPath, dotenv...)
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}
	c := NewWithConfig(cfg)
	c.cfgPath = configPath
	return c, nil
}

// NewWithConfig 使用已校验的配置创建 Container，不监听配置文件。
func NewWithConfig(cfg config.AppConfig) *Container {
	return &Container{
		cfg:        &cfg,
		components: NewLifecycleManager(),
		fatal:      make(chan error, 1),
	}
}

// Build 构建所有组件。会建立 FIX 连接并阻塞到拿到初始余额。
func (c *Container) Build(ctx context.Context) error {
	if err := c.buildInfrastructure(); err != nil {
		return fmt.Errorf("build infrastructure failed: %w", err)
	}

	if err := c.buildGateway(ctx); err != nil {
		return fmt.Errorf("build gateway failed: %w", err)
	}

	if err := c.buildCoreServices(ctx); err != nil {
		if c.session != nil {
			_ = c.session.Close()
		}
		return fmt.Errorf("build core services failed: %w", err)
	}

	c.registerLifecycleComponents()
	c.logger.Info("container built successfully")
	return nil
}

func (c *Container) buildInfrastructure() error {
	var err error
	c.logger, err = logger.New(c.cfg.Log)
	if err != nil {
		return fmt.Errorf("create logger failed: %w", err)
	}

	c.monitor = monitor.New(monitor.DefaultConfig())

	c.alerts = alert.NewManager([]alert.Channel{alert.NewLogChannel(c.logger.Logger)}, config.Ms(c.cfg.Alert.ThrottleMs))
	if c.cfg.Alert.WebhookURL != "" {
		c.alerts.AddChannel(&alert.WebhookChannel{URL: c.cfg.Alert.WebhookURL})
	}

	c.logger.Info("infrastructure built", zap.String("env", c.cfg.Env), zap.String("product", c.cfg.Product.ID))
	return nil
}

func (c *Container) buildGateway(ctx context.Context) error {
	gw := c.cfg.Gateway
	creds := fix.Credentials{
		Key:        gw.APIKey,
		Secret:     gw.APISecret,
		Passphrase: gw.APIPassphrase,
	}

	c.rest = &gateway.RESTClient{
		BaseURL:     gw.RESTBaseURL,
		Credentials: creds,
		Product:     c.cfg.Product.ID,
		QuoteCcy:    c.cfg.Product.QuoteCurrency,
		BaseCcy:     c.cfg.Product.BaseCurrency,
		HTTPClient:  gateway.NewDefaultHTTPClient(),
		Limiter:     gateway.NewTokenBucketLimiter(gw.RESTRatePerSec, gw.RESTBurst),
	}

	var err error
	c.session, err = gateway.Dial(ctx, gateway.SessionConfig{
		Addr:         gw.FIXAddr,
		TLS:          gw.FIXTLS,
		Symbol:       c.cfg.Product.ID,
		Credentials:  creds,
		DialTimeout:  config.Ms(gw.DialTimeoutMs),
		WriteTimeout: config.Ms(gw.WriteTimeoutMs),
	}, c.logger.Logger, c.monitor)
	if err != nil {
		return err
	}

	c.logger.Info("gateway built", zap.String("fix_addr", gw.FIXAddr))
	return nil
}

func (c *Container) buildCoreServices(ctx context.Context) error {
	log := c.logger.Logger

	c.book = market.NewOrderBook(market.Config{
		Depth:   c.cfg.Book.Depth,
		BandPct: c.cfg.Book.BandPct,
	})
	c.book.SetListener(func(side market.Side, top market.Top) {
		c.monitor.RecordBookChange(side.String())
		c.monitor.UpdateTop(top.BidPrice, top.AskPrice, top.RecentPrice)
	})
	c.seedBook(ctx)

	retry := inventory.Retry{
		Delay:  config.Ms(c.cfg.Balance.RetryDelayMs),
		Logger: log.Named("balance"),
		OnFailure: func(err error) {
			c.monitor.RecordBalanceFetchFailure()
			c.sendAlert(c.alerts.Warning("balance fetch failed", map[string]interface{}{"error": err.Error()}))
		},
	}
	initial, err := retry.Fetch(ctx, c.rest)
	if err != nil {
		return fmt.Errorf("initial balances: %w", err)
	}
	c.account = inventory.NewAccount(initial)
	c.account.SetListener(func(h inventory.Holdings) {
		c.monitor.UpdateHoldings(c.cfg.Product.QuoteCurrency, h.Quote, c.cfg.Product.BaseCurrency, h.Base)
	})
	c.monitor.UpdateHoldings(c.cfg.Product.QuoteCurrency, initial.Quote, c.cfg.Product.BaseCurrency, initial.Base)

	c.tracker = order.NewTracker()
	c.orders = order.NewLifecycle(order.LifecycleConfig{
		Sender:   c.session,
		Book:     c.book,
		Tracker:  c.tracker,
		Account:  c.account,
		Balances: c.rest,
		Retry:    retry,
		Valid:    strategy.VolumeSideValid,
		Logger:   log,
		Monitor:  c.monitor,
		OnClosed: func(o *order.Order) {
			c.logger.LogOrder("order_closed", o.ClientID, map[string]interface{}{
				"order_id": o.ExchangeID(),
				"state":    o.State().String(),
				"price":    o.Price,
				"size":     o.Size,
				"filled":   o.Filled(),
			})
		},
	})
	c.dispatcher = order.NewDispatcher(c.session, c.tracker, c.session, log, c.monitor)

	engine, err := strategy.NewEngine(strategy.EngineConfig{
		MinTradeSize: c.cfg.Product.MinTradeSize,
		Margin:       c.cfg.Strategy.Margin,
	})
	if err != nil {
		return err
	}
	c.controller = strategy.NewController(engine, c.account, c.tracker, c.book, c.orders, log)
	c.controller.Idle = config.Ms(c.cfg.Strategy.IdleMs)

	c.heartbeat = gateway.NewHeartbeatMonitor(c.session,
		config.Ms(c.cfg.Heartbeat.CheckIntervalMs),
		config.Ms(c.cfg.Heartbeat.IdleThresholdMs),
		log, c.monitor)

	c.feed = gateway.NewFeedClient(gateway.FeedConfig{
		URL:           c.cfg.Gateway.FeedURL,
		Product:       c.cfg.Product.ID,
		ReconnectStep: config.Ms(c.cfg.Gateway.FeedReconnectMs),
	}, c.book, log, c.monitor)

	c.logger.Info("core services built",
		zap.Float64("quote", initial.Quote),
		zap.Float64("base", initial.Base))
	return nil
}

// seedBook 用 REST 盘口预热副本；失败时等待行情快照即可。
func (c *Container) seedBook(ctx context.Context) {
	bids, asks, err := c.rest.Book(ctx)
	if err != nil {
		c.logger.Warn("rest book seed failed, waiting for feed snapshot", zap.Error(err))
		return
	}
	c.book.ApplySnapshot(bids, asks)
	c.logger.Info("book seeded", zap.Int("bids", len(bids)), zap.Int("asks", len(asks)))
}

func (c *Container) registerLifecycleComponents() {
	if c.cfg.Metrics.Addr != "" {
		c.components.Register(&httpServerComponent{
			name:    "metrics_server",
			handler: c.monitor.Handler(),
			addr:    c.cfg.Metrics.Addr,
			logger:  c.logger,
			server:  &c.metricsServer,
		})
	}

	if c.cfgPath != "" {
		watcher := config.Watcher{
			Path:     c.cfgPath,
			Cooldown: time.Second,
			Logger:   c.logger.Logger,
		}
		c.components.Register(&taskComponent{
			name:   "config_watcher",
			logger: c.logger,
			run: func(ctx context.Context) error {
				return watcher.Start(ctx, c.applyReload)
			},
		})
	}

	c.components.Register(&taskComponent{
		name:   "market_feed",
		logger: c.logger,
		run:    c.feed.Run,
	})

	// 先登录再开始读回报；读端退出即会话死亡。
	c.components.Register(&taskComponent{
		name:   "fix_session",
		logger: c.logger,
		prepare: func(context.Context) error {
			return c.session.Logon()
		},
		run:       c.dispatcher.Run,
		interrupt: func() { _ = c.session.Close() },
		onFatal:   c.reportFatal,
	})

	c.components.Register(&taskComponent{
		name:   "heartbeat",
		logger: c.logger,
		run: func(ctx context.Context) error {
			c.heartbeat.Run(ctx)
			return ctx.Err()
		},
	})

	c.components.Register(&taskComponent{
		name:   "controller",
		logger: c.logger,
		run: func(ctx context.Context) error {
			err := c.controller.Run(ctx)
			c.orders.Wait()
			return err
		},
		onFatal: c.reportFatal,
	})
}

// applyReload 热加载只调整日志级别，其余参数需要重启。
func (c *Container) applyReload(cfg config.AppConfig) {
	if err := c.logger.SetLevel(cfg.Log.Level); err != nil {
		c.logger.LogError(err, map[string]interface{}{"action": "reload", "level": cfg.Log.Level})
		return
	}
	c.logger.Info("config reloaded", zap.String("level", cfg.Log.Level))
}

func (c *Container) reportFatal(err error) {
	if c.alerts != nil {
		c.sendAlert(c.alerts.Critical("market maker stopping", map[string]interface{}{"error": err.Error()}))
	}
	select {
	case c.fatal <- err:
	default:
	}
}

func (c *Container) sendAlert(err error) {
	if err != nil {
		c.logger.LogError(err, map[string]interface{}{"action": "alert"})
	}
}

// Fatal 会话或控制循环意外退出时收到错误，进程应当退出。
func (c *Container) Fatal() <-chan error {
	return c.fatal
}

func (c *Container) Start(ctx context.Context) error {
	c.logger.Info("starting container...")

	if err := c.components.StartAll(ctx); err != nil {
		return fmt.Errorf("start failed: %w", err)
	}

	c.logger.Info("container started")
	return nil
}

// Stop 逆序停止。交易所侧挂单依赖登录时的断线撤单标志清理。
func (c *Container) Stop() error {
	if c.logger == nil {
		return nil
	}
	c.logger.Info("stopping container...")

	err := c.components.StopAll()
	if err != nil {
		c.logger.LogError(err, map[string]interface{}{"action": "stop"})
	}
	if c.session != nil {
		_ = c.session.Close()
	}
	if c.tracker != nil {
		c.logger.Info("container stopped", zap.Int("outstanding", c.tracker.Len()))
	}

	c.logger.Close()
	return err
}

func (c *Container) HealthCheck() error {
	return c.components.CheckHealth()
}

// Monitor 暴露指标，便于 systemd watchdog 之外的探活。
func (c *Container) Monitor() *monitor.Monitor {
	return c.monitor
}
