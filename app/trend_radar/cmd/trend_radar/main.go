package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/config"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/engine"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/logger"
)

func main() {
	// 1. 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("无法加载配置文件: %v", err)
	}

	// 2. 初始化日志
	if err = logger.InitLogger(cfg.Log.Level, cfg.Log.File); err != nil {
		log.Fatalf("无法初始化日志: %v", err)
	}
	logger.Log.Info("启动 AI 趋势雷达...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. 初始化引擎
	eng, err := engine.NewEngine(ctx, cfg)
	if err != nil {
		logger.Log.Fatalf("引擎初始化失败: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- eng.Run(ctx) }()

	select {
	case err = <-done:
		eng.Close()
		if err != nil {
			logger.Log.Errorf("趋势研究失败: %v", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Log.Warnf("收到中断信号，%s 内完成清理后退出", cfg.ShutdownTimeout)
		select {
		case <-done:
		case <-time.After(cfg.ShutdownTimeout):
			logger.Log.Warn("清理超时，强制退出")
		}
		eng.Close()
		os.Exit(1)
	}
}
