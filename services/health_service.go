package services

import (
	"context"

	"github.com/sirupsen/logrus"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/norun9/gomarketplace/cartservice/cartstore"
)

// HealthCheckService implements the gRPC health check on top of the cart
// storage.
type HealthCheckService struct {
	store cartstore.IStorage
	log   logrus.FieldLogger
	healthpb.UnimplementedHealthServer
}

// NewHealthCheckService constructor
func NewHealthCheckService(store cartstore.IStorage, log logrus.FieldLogger) *HealthCheckService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &HealthCheckService{store: store, log: log.WithField("component", "HealthCheckService")}
}

// Check RPC: pings the storage and reports SERVING or NOT_SERVING.
func (h *HealthCheckService) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	h.log.WithField("service", req.GetService()).Debug("Check called")
	if h.store.Ping(ctx) {
		return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}, nil
	}
	h.log.Warn("storage ping failed, reporting NOT_SERVING")
	return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_NOT_SERVING}, nil
}
