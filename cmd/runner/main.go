package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"fix-market-maker/internal/container"
)

func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	envFiles := flag.String("env", "", "逗号分隔的 .env 文件，缺失则忽略")
	flag.Parse()

	var dotenv []string
	for _, p := range strings.Split(*envFiles, ",") {
		if p = strings.TrimSpace(p); p != "" {
			dotenv = append(dotenv, p)
		}
	}

	c, err := container.New(*cfgPath, dotenv...)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := c.Build(ctx); err != nil {
		log.Fatalf("构建失败: %v", err)
	}
	if err := c.Start(ctx); err != nil {
		_ = c.Stop()
		log.Fatalf("启动失败: %v", err)
	}
	notify(daemon.SdNotifyReady)

	exitCode := 0
	watchdog := watchdogTicker()
	defer watchdog.Stop()

loop:
	for {
		select {
		case <-ctx.Done():
			log.Println("收到退出信号，开始停止")
			break loop
		case err := <-c.Fatal():
			// 会话已死，交给 systemd 重启后重新登录
			log.Printf("致命错误: %v", err)
			exitCode = 1
			break loop
		case <-watchdog.C:
			if err := c.HealthCheck(); err != nil {
				log.Printf("健康检查失败: %v", err)
				continue
			}
			notify(daemon.SdNotifyWatchdog)
		}
	}

	notify(daemon.SdNotifyStopping)
	if err := c.Stop(); err != nil {
		log.Printf("停止出错: %v", err)
	}
	watchdog.Stop()
	stop()
	os.Exit(exitCode)
}

// watchdogTicker 以 WATCHDOG_USEC 的一半为周期；未启用 watchdog 时每 10 秒只做健康检查。
func watchdogTicker() *time.Ticker {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval <= 0 {
		return time.NewTicker(10 * time.Second)
	}
	return time.NewTicker(interval / 2)
}

func notify(state string) {
	if _, err := daemon.SdNotify(false, state); err != nil {
		log.Printf("sd_notify %q: %v", state, err)
	}
}
