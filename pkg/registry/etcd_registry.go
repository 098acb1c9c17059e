package registry

import (
	"context"
	"fmt"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"streaming-engine/pkg/config"
	"streaming-engine/pkg/logger"
)

// ServiceRegistry registers the instance address in etcd under a leased key.
type ServiceRegistry struct {
	client      *clientv3.Client
	serviceName string
	serviceID   string
	serviceAddr string
	ttl         int64
	leaseID     clientv3.LeaseID
	ctx         context.Context
	cancel      context.CancelFunc
}

// NewServiceRegistry creates an etcd client for the given registration config.
func NewServiceRegistry(cfg config.ServiceRegistryConfig, serviceAddr string) (*ServiceRegistry, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, fmt.Errorf("service registry endpoints are required")
	}
	client, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}

	serviceID := cfg.ServiceID
	if serviceID == "" {
		serviceID = serviceAddr
	}
	ttl := int64(cfg.TTL / time.Second)
	if ttl <= 0 {
		ttl = 30
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &ServiceRegistry{
		client:      client,
		serviceName: cfg.ServiceName,
		serviceID:   serviceID,
		serviceAddr: serviceAddr,
		ttl:         ttl,
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

// Key is the etcd key holding this instance's address.
func (r *ServiceRegistry) Key() string {
	return fmt.Sprintf("/services/%s/%s", r.serviceName, r.serviceID)
}

// Register grants a lease, writes the address and keeps the lease alive.
func (r *ServiceRegistry) Register() error {
	leaseResp, err := r.client.Grant(r.ctx, r.ttl)
	if err != nil {
		return fmt.Errorf("failed to grant lease: %w", err)
	}
	r.leaseID = leaseResp.ID

	if _, err := r.client.Put(r.ctx, r.Key(), r.serviceAddr, clientv3.WithLease(r.leaseID)); err != nil {
		return fmt.Errorf("failed to register service: %w", err)
	}

	ch, err := r.client.KeepAlive(r.ctx, r.leaseID)
	if err != nil {
		return fmt.Errorf("failed to keep alive lease: %w", err)
	}
	go r.drainKeepAlive(ch)

	logger.Infof("Service registered key=%s addr=%s ttl=%ds", r.Key(), r.serviceAddr, r.ttl)
	return nil
}

func (r *ServiceRegistry) drainKeepAlive(ch <-chan *clientv3.LeaseKeepAliveResponse) {
	for {
		select {
		case <-r.ctx.Done():
			return
		case ka, ok := <-ch:
			if !ok || ka == nil {
				logger.Warnf("Service registry keep alive channel closed key=%s", r.Key())
				return
			}
		}
	}
}

// Deregister revokes the lease and closes the client.
func (r *ServiceRegistry) Deregister() error {
	r.cancel()
	if r.leaseID != 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if _, err := r.client.Revoke(ctx, r.leaseID); err != nil {
			logger.Warnf("Failed to revoke lease key=%s error=%v", r.Key(), err)
		}
	}
	if err := r.client.Close(); err != nil {
		return fmt.Errorf("failed to close etcd client: %w", err)
	}
	logger.Infof("Service deregistered key=%s", r.Key())
	return nil
}
