package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/captionlabs/livecap-core/internal/bus"
	"github.com/captionlabs/livecap-core/internal/config"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// ClientInfo describes one process on the presence channel: the runtime
// itself, caption display surfaces, note viewers.
type ClientInfo struct {
	ID       string    `json:"id"`
	Role     string    `json:"role"`
	LastSeen time.Time `json:"last_seen"`
	Healthy  bool      `json:"healthy"`
}

type announceMessage struct {
	ClientID  string    `json:"client_id"`
	Role      string    `json:"role"`
	Timestamp time.Time `json:"timestamp"`
}

type heartbeatMessage struct {
	ClientID  string    `json:"client_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Registry tracks which clients are alive. A client that misses heartbeats
// past the configured timeout is marked unhealthy but kept for inspection.
type Registry struct {
	cfg       config.ClientConfig
	log       *slog.Logger
	bus       *bus.Client
	mu        sync.RWMutex
	clients   map[string]*ClientInfo
	heartbeat *time.Ticker
	cancel    context.CancelFunc
	subs      []*nats.Subscription
	meter     metric.Meter
	clock     func() time.Time
}

func NewRegistry(ctx context.Context, cfg config.ClientConfig, busClient *bus.Client, log *slog.Logger) (*Registry, error) {
	ctx, cancel := context.WithCancel(ctx)
	r := &Registry{
		cfg:     cfg,
		log:     log.With(slog.String("component", "presence-registry")),
		bus:     busClient,
		clients: make(map[string]*ClientInfo),
		meter:   otel.Meter("github.com/captionlabs/livecap-core/runtime"),
		cancel:  cancel,
		clock:   time.Now,
	}

	if err := r.initMetrics(); err != nil {
		r.log.Warn("failed to initialize metrics", slog.String("error", err.Error()))
	}

	if err := r.subscribe(); err != nil {
		r.cancel()
		return nil, err
	}

	r.heartbeat = time.NewTicker(time.Duration(cfg.HeartbeatInterval) * time.Millisecond)
	go r.runHeartbeat(ctx)
	go r.monitorHealth(ctx)

	if err := r.announce(); err != nil {
		r.log.Warn("failed to announce client", slog.String("error", err.Error()))
	}

	return r, nil
}

func (r *Registry) Close() {
	if r.cancel != nil {
		r.cancel()
	}
	if r.heartbeat != nil {
		r.heartbeat.Stop()
	}
	for _, sub := range r.subs {
		_ = sub.Drain()
	}
}

func (r *Registry) subscribe() error {
	conn := r.bus.Conn()
	announceSub, err := conn.Subscribe("ctrl.client.announce", r.handleAnnounce)
	if err != nil {
		return fmt.Errorf("subscribe announce: %w", err)
	}
	r.subs = append(r.subs, announceSub)

	heartbeatSub, err := conn.Subscribe("ctrl.client.heartbeat.*", r.handleHeartbeat)
	if err != nil {
		return fmt.Errorf("subscribe heartbeat: %w", err)
	}
	r.subs = append(r.subs, heartbeatSub)

	return nil
}

func (r *Registry) runHeartbeat(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.heartbeat.C:
			if err := r.publishHeartbeat(); err != nil {
				r.log.Warn("failed to publish heartbeat", slog.String("error", err.Error()))
			}
		}
	}
}

func (r *Registry) monitorHealth(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.evaluateHealth()
		}
	}
}

func (r *Registry) announce() error {
	msg := announceMessage{
		ClientID:  r.cfg.ID,
		Role:      r.cfg.Role,
		Timestamp: r.clock().UTC(),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := r.bus.Conn().Publish("ctrl.client.announce", payload); err != nil {
		return err
	}
	r.updateClient(msg.ClientID, msg.Role, msg.Timestamp)
	return nil
}

func (r *Registry) publishHeartbeat() error {
	msg := heartbeatMessage{
		ClientID:  r.cfg.ID,
		Timestamp: r.clock().UTC(),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("ctrl.client.heartbeat.%s", r.cfg.ID)
	return r.bus.Conn().Publish(subject, payload)
}

func (r *Registry) handleAnnounce(msg *nats.Msg) {
	var announcement announceMessage
	if err := json.Unmarshal(msg.Data, &announcement); err != nil {
		r.log.Warn("invalid announce message", slog.String("error", err.Error()))
		return
	}
	if announcement.Timestamp.IsZero() {
		announcement.Timestamp = r.clock().UTC()
	}
	r.updateClient(announcement.ClientID, announcement.Role, announcement.Timestamp)
}

func (r *Registry) handleHeartbeat(msg *nats.Msg) {
	var hb heartbeatMessage
	if err := json.Unmarshal(msg.Data, &hb); err != nil {
		r.log.Warn("invalid heartbeat message", slog.String("error", err.Error()))
		return
	}
	if hb.Timestamp.IsZero() {
		hb.Timestamp = r.clock().UTC()
	}
	r.updateClient(hb.ClientID, "", hb.Timestamp)
}

func (r *Registry) updateClient(clientID, role string, timestamp time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	client, ok := r.clients[clientID]
	if !ok {
		client = &ClientInfo{ID: clientID}
		r.clients[clientID] = client
	}
	if role != "" {
		client.Role = role
	}
	client.LastSeen = timestamp
	client.Healthy = true
}

func (r *Registry) evaluateHealth() {
	r.mu.Lock()
	defer r.mu.Unlock()

	timeout := time.Duration(r.cfg.HeartbeatTimeout) * time.Millisecond
	now := r.clock()
	for _, client := range r.clients {
		if now.Sub(client.LastSeen) > timeout {
			client.Healthy = false
		}
	}
}

func (r *Registry) Healthy() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	client, ok := r.clients[r.cfg.ID]
	if !ok {
		return false
	}
	return client.Healthy
}

// Query returns clients matching the filter, or all clients when nil.
func (r *Registry) Query(filter func(ClientInfo) bool) []ClientInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var results []ClientInfo
	for _, client := range r.clients {
		copy := *client
		if filter == nil || filter(copy) {
			results = append(results, copy)
		}
	}
	return results
}

func WithRoleFilter(role string) func(ClientInfo) bool {
	return func(client ClientInfo) bool {
		return client.Role == role
	}
}

func (r *Registry) initMetrics() error {
	if r.meter == nil {
		return nil
	}
	gauge, err := r.meter.Int64ObservableGauge("livecap.presence.clients", metric.WithDescription("Number of known clients"))
	if err != nil {
		return err
	}
	healthyGauge, err := r.meter.Int64ObservableGauge("livecap.presence.healthy", metric.WithDescription("Clients with a recent heartbeat"))
	if err != nil {
		return err
	}
	_, err = r.meter.RegisterCallback(func(ctx context.Context, obs metric.Observer) error {
		total, healthy := r.snapshotCounts()
		obs.ObserveInt64(gauge, total)
		obs.ObserveInt64(healthyGauge, healthy)
		return nil
	}, gauge, healthyGauge)
	return err
}

func (r *Registry) snapshotCounts() (int64, int64) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var total int64
	var healthy int64
	for _, client := range r.clients {
		total++
		if client.Healthy {
			healthy++
		}
	}
	return total, healthy
}
