package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/cors"

	"tileclash/server"
)

// TileClash 入口：加载配置，启动 HTTP + WebSocket 服务，并初始化房间管理器
func main() {
	// .env 不存在时忽略；需在读取 flag 默认值之前加载
	_ = godotenv.Load()

	var (
		addr       string
		configPath string
	)
	flag.StringVar(&addr, "addr", "", "server listen address, e.g. :8080 (overrides config)")
	flag.StringVar(&configPath, "config", os.Getenv("TILECLASH_CONFIG"), "path to YAML config file")
	flag.Parse()

	cfg, err := server.LoadConfig(configPath)
	if err != nil {
		panic(err)
	}
	if addr != "" {
		cfg.Addr = addr
	}

	log, err := server.NewLogger(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer server.SyncLogger(log)

	var events server.EventPublisher = server.NopPublisher{}
	if cfg.NATS.URL != "" {
		pub, err := server.ConnectNATS(cfg.NATS, log)
		if err != nil {
			log.Fatalw("nats connect failed", "url", cfg.NATS.URL, "err", err)
		}
		defer pub.Close()
		events = pub
		log.Infow("room events enabled", "url", cfg.NATS.URL, "prefix", cfg.NATS.SubjectPrefix)
	}

	rm := server.NewRoomManager(cfg.RoomConfig(), cfg.DefaultRoom, server.RoomDeps{
		Log:    log,
		Events: events,
		Clock:  clockwork.NewRealClock(),
	})
	// 先预创建一个默认房间，便于快速试跑
	_ = rm.GetOrCreateRoom(cfg.DefaultRoom)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", server.HandleWS(rm, cfg.DefaultRoom, log))
	// 管理与监控接口
	mux.HandleFunc("/admin/config", server.HandleAdminConfig(rm, log))
	mux.HandleFunc("/metrics", server.HandleMetrics(rm))
	mux.HandleFunc("/rooms", server.HandleRooms(rm))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"*"},
	})

	srv := &http.Server{Addr: cfg.Addr, Handler: c.Handler(mux)}

	go func() {
		log.Infof("TileClash listening on %s", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	// 优雅退出（Ctrl+C）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warnw("http shutdown", "err", err)
	}
	rm.Close()
}
