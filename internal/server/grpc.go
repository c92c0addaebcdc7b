package server

import (
	"context"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the service reported by the gRPC health endpoint next to the "" overall status.
const ServiceName = "identity.Auth"

// DefaultHealthInterval is how often WatchHealth re-runs the readiness checks.
const DefaultHealthInterval = 10 * time.Second

// ReadinessChecker reports whether the service's dependencies are healthy.
type ReadinessChecker interface {
	Check(ctx context.Context) error
}

// NewGRPCServer returns a gRPC server exposing the standard health service backed by hs.
func NewGRPCServer(hs *health.Server) *grpc.Server {
	s := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthpb.RegisterHealthServer(s, hs)
	return s
}

// WatchHealth runs checker every interval and mirrors the result into hs until ctx is done.
// interval <= 0 selects DefaultHealthInterval.
func WatchHealth(ctx context.Context, hs *health.Server, checker ReadinessChecker, interval time.Duration, log *zap.Logger) {
	if interval <= 0 {
		interval = DefaultHealthInterval
	}
	if log == nil {
		log = zap.NewNop()
	}
	updateHealth(ctx, hs, checker, log)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateHealth(ctx, hs, checker, log)
		}
	}
}

func updateHealth(ctx context.Context, hs *health.Server, checker ReadinessChecker, log *zap.Logger) {
	status := healthpb.HealthCheckResponse_SERVING
	if err := checker.Check(ctx); err != nil {
		log.Warn("health: dependency check failed", zap.Error(err))
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	hs.SetServingStatus("", status)
	hs.SetServingStatus(ServiceName, status)
}
