package server

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/dgraph-io/badger/v4"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the name probes ask the health service about.
const ServiceName = "groupchat"

// HealthServer answers the standard gRPC health protocol for orchestrators.
// The served status follows the store: a closed store means NOT_SERVING.
type HealthServer struct {
	log      *slog.Logger
	db       *badger.DB
	server   *grpc.Server
	health   *health.Server
	interval time.Duration
}

func NewHealthServer(log *slog.Logger, db *badger.DB, interval time.Duration) *HealthServer {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	h := health.NewServer()
	s := grpc.NewServer()
	healthpb.RegisterHealthServer(s, h)
	h.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	return &HealthServer{log: log, db: db, server: s, health: h, interval: interval}
}

func (h *HealthServer) Serve(listener net.Listener) error {
	h.log.Info("Starting gRPC health server", "address", listener.Addr().String())
	if err := h.server.Serve(listener); err != nil && err != grpc.ErrServerStopped {
		return err
	}
	return nil
}

// Run probes the store until ctx is done. It is meant to run under the supervisor.
func (h *HealthServer) Run(ctx context.Context) error {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			h.probe()
		}
	}
}

func (h *HealthServer) probe() {
	status := healthpb.HealthCheckResponse_SERVING
	if h.db.IsClosed() {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.health.SetServingStatus(ServiceName, status)
	h.health.SetServingStatus("", status)
}

// Shutdown reports NOT_SERVING to every watcher then stops the server.
func (h *HealthServer) Shutdown() {
	h.health.Shutdown()
	h.server.GracefulStop()
}
