package rpc

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/wfunc/boardroom/logger"
)

// HealthServiceName is reported alongside the overall ("") status.
const HealthServiceName = "boardroom.RoomService"

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthServer serves the standard gRPC health protocol. With a Pinger the
// status follows the store; without one it is always SERVING.
type HealthServer struct {
	listener   net.Listener
	grpcServer *grpc.Server
	health     *health.Server
	pinger     Pinger
	interval   time.Duration
	done       chan struct{}
	stopOnce   sync.Once
}

func NewHealthServer(addr string, pinger Pinger, interval time.Duration) (*HealthServer, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}
	h := &HealthServer{
		listener:   listener,
		grpcServer: grpc.NewServer(),
		health:     health.NewServer(),
		pinger:     pinger,
		interval:   interval,
		done:       make(chan struct{}),
	}
	healthpb.RegisterHealthServer(h.grpcServer, h.health)
	h.check()
	return h, nil
}

func (h *HealthServer) Addr() string {
	return h.listener.Addr().String()
}

// Start serves until Stop is called.
func (h *HealthServer) Start() error {
	logger.Log.Infof("gRPC health server listening on %s", h.Addr())
	go h.watch()
	if err := h.grpcServer.Serve(h.listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

func (h *HealthServer) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.health.Shutdown()
		h.grpcServer.GracefulStop()
	})
}

func (h *HealthServer) watch() {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			h.check()
		case <-h.done:
			return
		}
	}
}

func (h *HealthServer) check() {
	status := healthpb.HealthCheckResponse_SERVING
	if h.pinger != nil {
		ctx, cancel := context.WithTimeout(context.Background(), h.interval)
		err := h.pinger.Ping(ctx)
		cancel()
		if err != nil {
			logger.Log.Warnf("Store health check failed: %v", err)
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	h.health.SetServingStatus("", status)
	h.health.SetServingStatus(HealthServiceName, status)
}
