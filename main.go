package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"teamarena/config"
	"teamarena/presence"
	"teamarena/server"
)

// TeamArena 入口：游戏 TCP 服务 + 管理/观战 HTTP 服务
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	flag.StringVar(&cfg.GameAddr, "addr", cfg.GameAddr, "game server listen address, e.g. :4444")
	flag.StringVar(&cfg.AdminAddr, "admin", cfg.AdminAddr, "admin HTTP listen address, empty disables")
	flag.Parse()
	if err := cfg.Validate(); err != nil {
		return err
	}

	// 使用第三方 zap 日志库写入日志文件（带滚动）
	if err := server.InitLogger(cfg.LogFile, cfg.LogLevel, cfg.LogConsole); err != nil {
		return err
	}
	defer server.SyncLogger()

	var pub presence.Publisher = presence.Nop{}
	if cfg.RedisURL != "" {
		rp, err := presence.NewRedisPublisher(cfg.RedisURL, cfg.RedisPrefix, server.Log.Named("presence"))
		if err != nil {
			return err
		}
		server.Log.Infof("roster mirror enabled: %s", rp.RosterKey())
		pub = rp
	}
	defer pub.Close()

	srv := server.NewServer(cfg, server.WithPresence(pub))

	// 优雅退出（Ctrl+C）
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var admin *http.Server
	if cfg.AdminAddr != "" {
		admin = &http.Server{Addr: cfg.AdminAddr, Handler: srv.AdminRoutes()}
		go func() {
			server.Log.Infof("admin listening on %s", cfg.AdminAddr)
			if err := admin.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				server.Log.Errorf("admin listen: %v", err)
				stop()
			}
		}()
	}

	err = srv.ListenAndServe(ctx)
	server.Log.Info("Shutting down...")
	if admin != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = admin.Shutdown(shutdownCtx)
	}
	if err != nil {
		server.Log.Errorf("server stopped: %v", err)
	}
	return err
}
