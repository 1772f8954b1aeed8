// Package server 提供推荐服务的 HTTP 接口。
//
//	GET|POST /recommendations          离线 + 在线混排
//	GET|POST /recommendations_offline  只有离线（个性化或热门）
//	GET|POST /recommendations_online   只有在线（基于最近交互）
//	GET|POST /similar_items            本地相似物品表
//	GET|POST /history                  本地交互历史
//	POST     /events                   写入一次交互
//	GET      /stats /healthz /metrics
//
// GET 使用 query 参数（user_id、item_id、k、scene），POST 使用 JSON。
// 未指定 k 时推荐接口使用 recommend.default_k，/similar_items 使用 recommend.similar_k，
// /history 使用 recommend.history_length。
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/rushteam/recserve/config"
	"github.com/rushteam/recserve/core"
	"github.com/rushteam/recserve/recall"
	"github.com/rushteam/recserve/recommend"
)

// Deps 是 HTTP 层依赖的组件。Similar、History 为 nil 时对应的路由不注册。
type Deps struct {
	Orchestrator *recommend.Orchestrator
	Similar      core.SimilarItemsIndex
	History      *recall.UserHistory

	// DefaultK 是推荐接口未指定 k 时的取值
	DefaultK int
	// ListK 是 /similar_items 未指定 k 时的取值
	ListK int
	// HistoryK 是 /history 未指定 k 时的取值
	HistoryK int
}

// Server 是 HTTP 服务。
type Server struct {
	deps   Deps
	cfg    config.ServerConfig
	logger zerolog.Logger
	router http.Handler
}

// New 创建 Server 并注册路由。
func New(deps Deps, cfg config.ServerConfig, logger zerolog.Logger) (*Server, error) {
	if deps.Orchestrator == nil {
		return nil, fmt.Errorf("server: orchestrator is required")
	}
	if deps.DefaultK <= 0 {
		deps.DefaultK = core.DefaultK
	}
	if deps.ListK <= 0 {
		deps.ListK = core.DefaultSimilarK
	}
	if deps.HistoryK <= 0 {
		deps.HistoryK = core.DefaultHistoryLength
	}
	s := &Server{
		deps:   deps,
		cfg:    cfg,
		logger: logger.With().Str("component", "server").Logger(),
	}
	s.router = s.routes()
	return s, nil
}

// Handler 返回路由，测试中配合 httptest 使用。
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(s.accessLog)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/stats", s.handleStats)

	r.Group(func(r chi.Router) {
		if s.cfg.RateLimit > 0 {
			r.Use(httprate.LimitByIP(s.cfg.RateLimit, time.Minute))
		}
		for path, serve := range map[string]serveFunc{
			"/recommendations":         s.deps.Orchestrator.Recommend,
			"/recommendations_offline": s.deps.Orchestrator.Offline,
			"/recommendations_online":  s.deps.Orchestrator.Online,
		} {
			h := s.handleRecommend(serve)
			r.Get(path, h)
			r.Post(path, h)
		}
	})

	if s.deps.Similar != nil {
		r.Get("/similar_items", s.handleSimilar)
		r.Post("/similar_items", s.handleSimilar)
	}
	if s.deps.History != nil {
		r.Get("/history", s.handleHistory)
		r.Post("/history", s.handleHistory)
		r.Post("/events", s.handleEvent)
	}
	return r
}

// accessLog 以 debug 级别记录每个请求。
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug().
			Str("request_id", chimiddleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

// Run 监听 cfg.Addr，ctx 取消后优雅退出。
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.cfg.Addr).Msg("server starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info().Msg("server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
