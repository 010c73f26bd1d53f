package main

import (
	"log"

	"crypto-alert-dashboard/pkg/config"
	"crypto-alert-dashboard/pkg/logger"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("加载配置失败:", err)
	}

	// 初始化日志
	if err := logger.Init(cfg.Log); err != nil {
		log.Fatal("初始化日志失败:", err)
	}

	// 创建并启动应用
	app, err := NewApp(cfg)
	if err != nil {
		log.Fatal("初始化应用失败:", err)
	}

	app.Start()
	app.WaitForShutdown()
	app.Stop()
}
