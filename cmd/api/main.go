package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fujimino/rollzai/internal/config"
	"github.com/fujimino/rollzai/pkg/rollstock"
	"github.com/fujimino/rollzai/pkg/rollstock/storage"
)

func main() {
	// .envがあれば読み込む（ローカル開発用）
	_ = godotenv.Load()

	// 設定読み込み
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("設定読み込みに失敗しました:", err)
	}

	// ログ設定
	logger, err := newLogger(cfg.Logging)
	if err != nil {
		log.Fatal("ログ初期化に失敗しました:", err)
	}
	defer logger.Sync()

	// データベース接続
	store, err := storage.NewPostgresStorage(cfg.DSN(), logger)
	if err != nil {
		logger.Fatal("データベース接続に失敗しました", zap.Error(err))
	}
	defer store.Close()

	// サービス初期化
	var audit rollstock.AuditSink = rollstock.NopAuditSink{}
	if cfg.Rollstock.AuditEnabled {
		audit = rollstock.NewLogAuditSink(logger)
	}
	ledger := rollstock.NewLedger(store, audit, logger)
	orders := rollstock.NewOrderWorkflow(store, ledger, audit, logger)
	slitting := rollstock.NewSlittingWorkflow(store, ledger, audit, logger)

	// HTTPハンドラー設定
	handlers := NewHandlers(ledger, orders, slitting, store, logger)
	router := setupRouter(handlers, cfg.API.EnableMetrics)

	// HTTPサーバー設定
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.API.Port),
		Handler:      router,
		ReadTimeout:  cfg.API.ReadTimeout,
		WriteTimeout: cfg.API.WriteTimeout,
		IdleTimeout:  cfg.API.IdleTimeout,
	}

	// グレースフルシャットダウン設定
	go func() {
		logger.Info("ロール在庫APIサーバーを開始します", zap.Int("port", cfg.API.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("サーバー開始に失敗しました", zap.Error(err))
		}
	}()

	// シャットダウンシグナル待機
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("サーバーをシャットダウンしています...")

	// グレースフルシャットダウン
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("サーバーシャットダウンに失敗しました", zap.Error(err))
	}

	logger.Info("サーバーが正常に停止しました")
}

// newLogger builds the zap logger from logging configuration
// ログ設定からzapロガーを構築する
func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	}
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	zapCfg.Level = level
	return zapCfg.Build()
}

// setupRouter sets up HTTP routes
// HTTPルートを設定
func setupRouter(handlers *Handlers, enableMetrics bool) *mux.Router {
	router := mux.NewRouter()

	// ヘルスチェック・メトリクス
	router.HandleFunc("/health", handlers.HealthCheck).Methods("GET")
	if enableMetrics {
		router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	}

	// API v1ルート
	api := router.PathPrefix("/api/v1").Subrouter()

	// 在庫台帳
	api.HandleFunc("/stocks", handlers.StockIn).Methods("POST")
	api.HandleFunc("/stocks/bulk", handlers.BulkStockIn).Methods("POST")
	api.HandleFunc("/stocks/bulk-out", handlers.BulkStockOut).Methods("POST")
	api.HandleFunc("/stocks/{stockId}/out", handlers.StockOut).Methods("POST")
	api.HandleFunc("/stocks/{stockId}", handlers.GetStock).Methods("GET")
	api.HandleFunc("/stocks/{stockId}/movements", handlers.GetMovements).Methods("GET")
	api.HandleFunc("/items/{itemId}/stocks", handlers.ListStocksByItem).Methods("GET")
	api.HandleFunc("/items/{itemId}/total", handlers.GetTotalQuantity).Methods("GET")

	// オーダーワークフロー
	api.HandleFunc("/orders", handlers.CreateOrder).Methods("POST")
	api.HandleFunc("/orders", handlers.ListOrders).Methods("GET")
	api.HandleFunc("/orders/{orderId}", handlers.GetOrder).Methods("GET")
	api.HandleFunc("/orders/{orderId}/history", handlers.GetOrderHistory).Methods("GET")
	api.HandleFunc("/orders/{orderId}/start", handlers.StartFieldProcessing).Methods("POST")
	api.HandleFunc("/orders/{orderId}/complete-field", handlers.CompleteFieldProcessing).Methods("POST")
	api.HandleFunc("/orders/{orderId}/approve", handlers.ApproveOrder).Methods("POST")
	api.HandleFunc("/orders/{orderId}/urgent-approve", handlers.UrgentApproveOrder).Methods("POST")
	api.HandleFunc("/orders/{orderId}/reject", handlers.RejectOrder).Methods("POST")
	api.HandleFunc("/orders/{orderId}/cancel", handlers.CancelOrder).Methods("POST")

	// スリット加工ワークフロー
	api.HandleFunc("/slitting/schedules", handlers.CreateSchedule).Methods("POST")
	api.HandleFunc("/slitting/schedules", handlers.ListSchedules).Methods("GET")
	api.HandleFunc("/slitting/schedules/{scheduleId}", handlers.GetSchedule).Methods("GET")
	api.HandleFunc("/slitting/schedules/{scheduleId}/jobs", handlers.AddJob).Methods("POST")
	api.HandleFunc("/slitting/schedules/{scheduleId}/jobs", handlers.ListJobs).Methods("GET")
	api.HandleFunc("/slitting/schedules/{scheduleId}/publish", handlers.PublishSchedule).Methods("POST")
	api.HandleFunc("/slitting/schedules/{scheduleId}/complete", handlers.CompleteSchedule).Methods("POST")
	api.HandleFunc("/slitting/jobs/{jobId}", handlers.GetJob).Methods("GET")
	api.HandleFunc("/slitting/jobs/{jobId}/ready", handlers.MarkJobReady).Methods("POST")
	api.HandleFunc("/slitting/jobs/{jobId}/start", handlers.StartJob).Methods("POST")
	api.HandleFunc("/slitting/jobs/{jobId}/complete", handlers.CompleteJob).Methods("POST")
	api.HandleFunc("/slitting/jobs/{jobId}/approve", handlers.ApproveJob).Methods("POST")
	api.HandleFunc("/slitting/jobs/{jobId}/rolls", handlers.RegisterRoll).Methods("POST")
	api.HandleFunc("/slitting/jobs/{jobId}/rolls", handlers.ListRolls).Methods("GET")
	api.HandleFunc("/slitting/jobs/{jobId}/outputs", handlers.ListOutputs).Methods("GET")
	api.HandleFunc("/slitting/rolls/{rollId}/start", handlers.StartRoll).Methods("POST")
	api.HandleFunc("/slitting/rolls/{rollId}/outputs", handlers.RecordOutput).Methods("POST")
	api.HandleFunc("/slitting/rolls/{rollId}/complete", handlers.CompleteRoll).Methods("POST")
	api.HandleFunc("/slitting/rolls/{rollId}/cancel", handlers.CancelRoll).Methods("POST")
	api.HandleFunc("/slitting/outputs/{outputId}", handlers.UpdateOutput).Methods("PUT")
	api.HandleFunc("/slitting/history/{entityType}/{entityId}", handlers.GetSlittingHistory).Methods("GET")

	// ログ・メトリクスミドルウェア
	router.Use(loggingMiddleware(handlers.logger))
	if enableMetrics {
		router.Use(metricsMiddleware)
	}

	return router
}

// HTTPメトリクス
var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rollzai_http_requests_total",
		Help: "Total number of HTTP requests.",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rollzai_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})
)

// statusRecorder captures the response status code for the middlewares
// ミドルウェア用にレスポンスステータスコードを捕捉する
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// routePath returns the route template of the request, falling back to the raw path
// リクエストのルートテンプレートを返す（取れない場合は生パス）
func routePath(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return r.URL.Path
}

// metricsMiddleware records request count and latency per route
// ルートごとのリクエスト数とレイテンシを記録するミドルウェア
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		path := routePath(r)
		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rec.status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// loggingMiddleware logs HTTP requests
// HTTPリクエストをログ出力するミドルウェア
func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			// リクエスト処理
			next.ServeHTTP(rec, r)

			// ログ出力
			logger.Info("HTTPリクエスト",
				zap.String("method", r.Method),
				zap.String("url", r.URL.Path),
				zap.Int("status", rec.status),
				zap.String("remote_addr", r.RemoteAddr),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}
