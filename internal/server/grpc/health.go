// Package grpcserver runs the gRPC health endpoint used by orchestrators.
package grpcserver

import (
	"context"
	"net"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServicePrefix namespaces per-dependency health entries.
const ServicePrefix = "secrets."

// Pinger is any dependency that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health serves grpc.health.v1 and keeps its status in line with the
// dependencies' Ping results. The overall ("") service is SERVING only when
// every dependency is.
type Health struct {
	log    *zap.Logger
	srv    *grpc.Server
	hs     *health.Server
	checks map[string]Pinger
	names  []string

	mu   sync.Mutex
	last map[string]bool
}

// NewHealth builds the server; checks maps a short name ("accounts",
// "sessions") to its Pinger. reflect enables server reflection.
func NewHealth(log *zap.Logger, checks map[string]Pinger, reflect bool) *Health {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(RecoverUnary(log), LoggingUnary(log)),
		grpc.ChainStreamInterceptor(RecoverStream(log), LoggingStream(log)),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	if reflect {
		reflection.Register(srv)
	}

	names := make([]string, 0, len(checks))
	for n := range checks {
		names = append(names, n)
	}
	sort.Strings(names)

	h := &Health{log: log, srv: srv, hs: hs, checks: checks, names: names, last: map[string]bool{}}
	// NOT_SERVING until the first check passes
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	for _, n := range names {
		hs.SetServingStatus(ServicePrefix+n, healthpb.HealthCheckResponse_NOT_SERVING)
	}
	return h
}

// Check pings every dependency once, updates the statuses and reports
// whether all of them answered.
func (h *Health) Check(ctx context.Context) bool {
	all := true
	for _, n := range h.names {
		cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := h.checks[n].Ping(cctx)
		cancel()

		ok := err == nil
		all = all && ok
		h.set(ServicePrefix+n, ok, err)
	}
	h.set("", all, nil)
	return all
}

func (h *Health) set(service string, ok bool, err error) {
	st := healthpb.HealthCheckResponse_SERVING
	if !ok {
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.hs.SetServingStatus(service, st)

	h.mu.Lock()
	prev, seen := h.last[service]
	h.last[service] = ok
	h.mu.Unlock()
	if !seen || prev != ok {
		h.log.Info("health", zap.String("service", service), zap.String("status", st.String()), zap.Error(err))
	}
}

// Monitor runs Check immediately and then every interval until ctx is done.
func (h *Health) Monitor(ctx context.Context, every time.Duration) {
	h.Check(ctx)
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			h.Check(ctx)
		}
	}
}

// Serve blocks serving on lis.
func (h *Health) Serve(lis net.Listener) error { return h.srv.Serve(lis) }

// Stop marks everything NOT_SERVING and stops gracefully, forcing after
// timeout.
func (h *Health) Stop(timeout time.Duration) {
	h.hs.Shutdown()
	done := make(chan struct{})
	go func() {
		h.srv.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		h.srv.Stop()
	}
}
