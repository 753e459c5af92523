package api

import (
	"log/slog"
	"time"
)

// NodeServerConfig configures the listeners of an envelope registry node: the
// HTTP API with its health and drain endpoints, the gRPC query service and
// the Prometheus endpoint.
type NodeServerConfig struct {
	// ListenAddr serves the HTTP API.
	ListenAddr string

	// GRPCListenAddr serves envelope.v1.Query and grpc.health.v1.Health.
	// Empty disables gRPC.
	GRPCListenAddr string

	// GRPCMaxMessageBytes caps gRPC request and response sizes. Zero keeps the
	// grpc-go default.
	GRPCMaxMessageBytes int

	// MetricsAddr serves /metrics. Empty disables it.
	MetricsAddr string

	EnablePprof bool

	Log *slog.Logger

	// DrainDuration is how long /drain reports not ready before the drain
	// is considered complete. gRPC health flips to NOT_SERVING for the same
	// period.
	DrainDuration time.Duration

	// GracefulShutdownDuration bounds the wait for in-flight HTTP requests.
	// gRPC is stopped forcibly once it elapses.
	GracefulShutdownDuration time.Duration

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}
