package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/flashbots/go-utils/httplogger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/ruteri/envelope-registry/api"
	"github.com/ruteri/envelope-registry/metrics"
	"go.uber.org/atomic"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// RouteRegistrar mounts API routes on the server router.
type RouteRegistrar interface {
	RegisterRoutes(r chi.Router)
}

// Server runs the node's listeners. The gRPC server exists only when
// cfg.GRPCListenAddr is set; services must be registered on it before
// RunInBackground.
type Server struct {
	cfg     *api.NodeServerConfig
	isReady atomic.Bool
	log     *slog.Logger

	srv        *http.Server
	metricsSrv *metrics.MetricsServer

	grpcSrv    *grpc.Server
	grpcLis    net.Listener
	grpcHealth *health.Server
}

func New(cfg *api.NodeServerConfig, handlers ...RouteRegistrar) (srv *Server, err error) {
	metricsSrv, err := metrics.New(cfg.MetricsAddr)
	if err != nil {
		return nil, err
	}

	srv = &Server{
		cfg:        cfg,
		log:        cfg.Log,
		metricsSrv: metricsSrv,
	}
	srv.isReady.Store(true)

	if cfg.GRPCListenAddr != "" {
		// Bound here so that a busy port fails New.
		srv.grpcLis, err = net.Listen("tcp", cfg.GRPCListenAddr)
		if err != nil {
			return nil, fmt.Errorf("failed to listen for gRPC on %s: %w", cfg.GRPCListenAddr, err)
		}
		var opts []grpc.ServerOption
		if cfg.GRPCMaxMessageBytes > 0 {
			opts = append(opts, grpc.MaxRecvMsgSize(cfg.GRPCMaxMessageBytes), grpc.MaxSendMsgSize(cfg.GRPCMaxMessageBytes))
		}
		srv.grpcSrv = grpc.NewServer(opts...)
		srv.grpcHealth = health.NewServer()
		healthpb.RegisterHealthServer(srv.grpcSrv, srv.grpcHealth)
	}

	srv.srv = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      srv.getRouter(handlers),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return srv, nil
}

func (srv *Server) getRouter(handlers []RouteRegistrar) http.Handler {
	mux := chi.NewRouter()

	mux.Group(func(r chi.Router) {
		r.Use(srv.httpLogger)
		for _, h := range handlers {
			h.RegisterRoutes(r)
		}

		r.Get("/livez", srv.handleLivenessCheck)
		r.Get("/readyz", srv.handleReadinessCheck)
		r.Get("/drain", srv.handleDrain)
		r.Get("/undrain", srv.handleUndrain)
	})

	if srv.cfg.EnablePprof {
		srv.log.Info("pprof API enabled")
		mux.Mount("/debug", middleware.Profiler())
	}
	return mux
}

// Handler returns the router, for serving without a listener.
func (srv *Server) Handler() http.Handler {
	return srv.srv.Handler
}

// GRPC returns the gRPC server to register services on, nil if gRPC is disabled.
func (srv *Server) GRPC() *grpc.Server {
	return srv.grpcSrv
}

// GRPCAddr returns the bound gRPC address, nil if gRPC is disabled.
func (srv *Server) GRPCAddr() net.Addr {
	if srv.grpcLis == nil {
		return nil
	}
	return srv.grpcLis.Addr()
}

// setServing mirrors readiness into the gRPC health service.
func (srv *Server) setServing(ready bool) {
	if srv.grpcHealth == nil {
		return
	}
	status := healthpb.HealthCheckResponse_SERVING
	if !ready {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	srv.grpcHealth.SetServingStatus("", status)
}

func (srv *Server) httpLogger(next http.Handler) http.Handler {
	return httplogger.LoggingMiddlewareSlog(srv.log, next)
}

func (srv *Server) handleLivenessCheck(w http.ResponseWriter, r *http.Request) {
	writeStatus(w, http.StatusOK, "alive")
}

func (srv *Server) handleReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if !srv.isReady.Load() {
		writeStatus(w, http.StatusServiceUnavailable, "not ready")
		return
	}
	writeStatus(w, http.StatusOK, "ready")
}

func (srv *Server) handleDrain(w http.ResponseWriter, r *http.Request) {
	if !srv.isReady.Swap(false) {
		writeStatus(w, http.StatusOK, "already draining")
		return
	}
	srv.setServing(false)
	srv.log.Info("Server marked as not ready")

	// Load balancers need DrainDuration to notice; the request does not wait for it.
	go func() {
		time.Sleep(srv.cfg.DrainDuration)
		srv.log.Info("Drain period completed")
	}()

	writeStatus(w, http.StatusOK, "draining")
}

func (srv *Server) handleUndrain(w http.ResponseWriter, r *http.Request) {
	if srv.isReady.Swap(true) {
		writeStatus(w, http.StatusOK, "already ready")
		return
	}
	srv.setServing(true)
	srv.log.Info("Server marked as ready")
	writeStatus(w, http.StatusOK, "ready")
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write([]byte(`{"status":"` + status + `"}`))
}

func (srv *Server) RunInBackground() {
	// metrics
	if srv.cfg.MetricsAddr != "" {
		go func() {
			srv.log.With("metricsAddress", srv.cfg.MetricsAddr).Info("Starting metrics server")
			err := srv.metricsSrv.ListenAndServe()
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				srv.log.Error("HTTP server failed", "err", err)
			}
		}()
	}

	// api
	go func() {
		srv.log.Info("Starting HTTP server", "listenAddress", srv.cfg.ListenAddr)
		if err := srv.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srv.log.Error("HTTP server failed", "err", err)
		}
	}()

	// grpc
	if srv.grpcSrv != nil {
		go func() {
			srv.log.Info("Starting gRPC server", "listenAddress", srv.grpcLis.Addr().String())
			if err := srv.grpcSrv.Serve(srv.grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				srv.log.Error("gRPC server failed", "err", err)
			}
		}()
	}
}

func (srv *Server) Shutdown() {
	// grpc
	if srv.grpcSrv != nil {
		srv.grpcHealth.Shutdown()
		stopped := make(chan struct{})
		go func() {
			srv.grpcSrv.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
			srv.log.Info("gRPC server gracefully stopped")
		case <-time.After(srv.cfg.GracefulShutdownDuration):
			srv.grpcSrv.Stop()
			srv.log.Error("Graceful gRPC server shutdown timed out")
		}
		_ = srv.grpcLis.Close()
	}

	// api
	ctx, cancel := context.WithTimeout(context.Background(), srv.cfg.GracefulShutdownDuration)
	defer cancel()
	if err := srv.srv.Shutdown(ctx); err != nil {
		srv.log.Error("Graceful HTTP server shutdown failed", "err", err)
	} else {
		srv.log.Info("HTTP server gracefully stopped")
	}

	// metrics
	if len(srv.cfg.MetricsAddr) != 0 {
		ctx, cancel := context.WithTimeout(context.Background(), srv.cfg.GracefulShutdownDuration)
		defer cancel()

		if err := srv.metricsSrv.Shutdown(ctx); err != nil {
			srv.log.Error("Graceful metrics server shutdown failed", "err", err)
		} else {
			srv.log.Info("Metrics server gracefully stopped")
		}
	}
}
