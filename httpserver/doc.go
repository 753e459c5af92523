/*
Package httpserver runs the listeners of a node: the API routes registered
by handlers such as envelopehandler, health endpoints for load balancers, an
optional pprof mount, a separate Prometheus metrics listener and, when
GRPCListenAddr is set, a gRPC server carrying the standard health service.

# Health endpoints

	GET /livez    always 200 while the process runs
	GET /readyz   200 unless drained, then 503
	GET /drain    mark not ready ahead of a shutdown
	GET /undrain  mark ready again

Draining also reports NOT_SERVING on grpc.health.v1.Health.

Every route except pprof goes through the flashbots httplogger middleware.
Shutdown stops gRPC, then the API listener, then the metrics listener, each
bounded by GracefulShutdownDuration.
*/
package httpserver
