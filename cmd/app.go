package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"crypto-alert-dashboard/internal/alertlog"
	"crypto-alert-dashboard/internal/database"
	"crypto-alert-dashboard/internal/fetcher"
	"crypto-alert-dashboard/internal/news"
	"crypto-alert-dashboard/internal/notifier"
	"crypto-alert-dashboard/internal/scheduler"
	"crypto-alert-dashboard/internal/server"
	"crypto-alert-dashboard/internal/storage"
	"crypto-alert-dashboard/internal/watchlist"
	"crypto-alert-dashboard/pkg/types"
)

// App 应用程序管理器
type App struct {
	config    *types.Config
	scheduler *scheduler.Scheduler
	server    *server.Server
	db        *gorm.DB
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewApp 创建应用程序实例并完成模块装配
func NewApp(config *types.Config) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())

	// MySQL是可选的，连接失败回退到文件存储
	var db *gorm.DB
	if config.Watchlist.Backend == "mysql" {
		var err error
		db, err = database.Open(config.Database.MySQL)
		if err != nil {
			zap.L().Warn("⚠️ MySQL连接失败，关注列表回退到文件存储", zap.Error(err))
			db = nil
		}
	}

	store, err := watchlist.NewStore(config.Watchlist, db)
	if err != nil {
		cancel()
		return nil, err
	}

	alertLog, err := alertlog.NewLog(config.Watchlist, db)
	if err != nil {
		cancel()
		return nil, err
	}

	stateManager := storage.NewStateManager(config.Redis, config.History)
	priceSource := fetcher.NewPriceSource(config.PriceSource, config.Network)
	notifyService := notifier.New(config.Notify)
	newsClient := news.NewClient(config.News, config.Network)

	taskScheduler := scheduler.NewScheduler(store, priceSource, stateManager,
		alertLog, notifyService, config.Alert.RefreshInterval)

	apiServer := server.NewServer(config.Server.Listen, store, stateManager,
		alertLog, newsClient, config.Alert.RefreshInterval)

	return &App{
		config:    config,
		scheduler: taskScheduler,
		server:    apiServer,
		db:        db,
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// Start 启动应用程序
func (app *App) Start() {
	zap.L().Info("🚀 Crypto Alert Dashboard 启动中...")

	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		app.scheduler.Start(app.ctx)
	}()

	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		if err := app.server.Start(app.ctx); err != nil {
			zap.L().Error("❌ 看板服务异常退出", zap.Error(err))
			app.cancel()
		}
	}()

	zap.L().Info("✅ Crypto Alert Dashboard 已启动",
		zap.String("listen", app.config.Server.Listen),
		zap.Duration("refresh_interval", app.config.Alert.RefreshInterval))
}

// Stop 停止应用程序
func (app *App) Stop() {
	zap.L().Info("🛑 收到停止信号，正在优雅关闭...")
	app.cancel()

	// 等待所有goroutine结束，最多等待30秒
	done := make(chan struct{})
	go func() {
		app.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		zap.L().Info("✅ Crypto Alert Dashboard 已安全关闭")
	case <-time.After(30 * time.Second):
		zap.L().Warn("⚠️ 强制关闭超时")
	}

	if app.db != nil {
		if err := database.Close(app.db); err != nil {
			zap.L().Warn("⚠️ 关闭数据库连接失败", zap.Error(err))
		}
	}
}

// WaitForShutdown 等待关闭信号
func (app *App) WaitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
}
