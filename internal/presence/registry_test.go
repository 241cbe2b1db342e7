package presence

import (
	"log/slog"
	"testing"
	"time"

	"github.com/captionlabs/livecap-core/internal/config"
)

func newTestRegistry(timeoutMS int) *Registry {
	return &Registry{
		cfg:     config.ClientConfig{ID: "runtime-1", Role: "runtime", HeartbeatTimeout: timeoutMS},
		log:     slog.Default(),
		clients: make(map[string]*ClientInfo),
		clock:   time.Now,
	}
}

func TestUpdateClientTracksRoleAndHealth(t *testing.T) {
	r := newTestRegistry(5000)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	r.updateClient("viewer-1", "caption-display", now)
	r.updateClient("viewer-1", "", now.Add(time.Second))

	clients := r.Query(nil)
	if len(clients) != 1 {
		t.Fatalf("expected 1 client, got %d", len(clients))
	}
	if clients[0].Role != "caption-display" {
		t.Fatalf("role lost on heartbeat update: %q", clients[0].Role)
	}
	if !clients[0].Healthy {
		t.Fatal("fresh client should be healthy")
	}
	if !clients[0].LastSeen.Equal(now.Add(time.Second)) {
		t.Fatalf("last seen not updated: %v", clients[0].LastSeen)
	}
}

func TestEvaluateHealthMarksStaleClients(t *testing.T) {
	r := newTestRegistry(5000)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r.clock = func() time.Time { return base.Add(10 * time.Second) }

	r.updateClient("stale", "caption-display", base)
	r.updateClient("fresh", "note-viewer", base.Add(9*time.Second))

	r.evaluateHealth()

	for _, client := range r.Query(nil) {
		switch client.ID {
		case "stale":
			if client.Healthy {
				t.Fatal("stale client should be unhealthy")
			}
		case "fresh":
			if !client.Healthy {
				t.Fatal("fresh client should stay healthy")
			}
		}
	}
}

func TestHealthyRequiresOwnEntry(t *testing.T) {
	r := newTestRegistry(5000)
	if r.Healthy() {
		t.Fatal("registry without own announce must not report healthy")
	}
	r.updateClient("runtime-1", "runtime", time.Now())
	if !r.Healthy() {
		t.Fatal("announced runtime should be healthy")
	}
}

func TestQueryRoleFilter(t *testing.T) {
	r := newTestRegistry(5000)
	now := time.Now()
	r.updateClient("a", "caption-display", now)
	r.updateClient("b", "note-viewer", now)

	displays := r.Query(WithRoleFilter("caption-display"))
	if len(displays) != 1 || displays[0].ID != "a" {
		t.Fatalf("unexpected filter result: %+v", displays)
	}
}
