package integration

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/revempire/revchat/internal/relay"
	"github.com/revempire/revchat/test/testhelpers"
)

// TestGracefulShutdownWithActiveClients verifies the hub closes client
// connections and finishes its pumps within the shutdown timeout.
func TestGracefulShutdownWithActiveClients(t *testing.T) {
	registry := relay.NewRegistry()
	hub := relay.NewHub(registry, zerolog.Nop())
	go hub.Run()

	server := httptest.NewServer(relay.NewRouter(hub, registry, zerolog.Nop()))
	defer server.Close()

	cfg := relay.NewConfig()
	cfg.AllowedOrigins = append(cfg.AllowedOrigins, server.URL)
	relay.SetConfig(cfg)
	defer relay.SetConfig(nil)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"

	conn, err := testhelpers.ConnectWebSocket(wsURL, server.URL)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer func() { _ = conn.Close() }()

	if err := testhelpers.SendEvent(conn, relay.EventJoin, map[string]string{"room": "alpha", "name": "Ann"}); err != nil {
		t.Fatalf("Failed to join: %v", err)
	}
	testhelpers.WaitForEvent(t, conn, relay.EventUserCount, eventWait)

	start := time.Now()
	if err := hub.Shutdown(5 * time.Second); err != nil {
		t.Errorf("Shutdown returned error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Shutdown exceeded its timeout: %v", elapsed)
	}

	// The server side closed the connection; reads fail shortly after.
	if err := conn.SetReadDeadline(time.Now().Add(eventWait)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// TestShutdownIdleHub verifies shutdown completes immediately with no
// clients connected.
func TestShutdownIdleHub(t *testing.T) {
	hub := relay.NewHub(relay.NewRegistry(), zerolog.Nop())
	go hub.Run()

	time.Sleep(20 * time.Millisecond)

	if err := hub.Shutdown(time.Second); err != nil {
		t.Errorf("idle hub shutdown failed: %v", err)
	}
}

// TestNewConnectionsRejectedAfterShutdown: once the hub stops, upgrade
// requests no longer register clients (the handler drops them).
func TestNewConnectionsRejectedAfterShutdown(t *testing.T) {
	registry := relay.NewRegistry()
	hub := relay.NewHub(registry, zerolog.Nop())
	go hub.Run()

	server := httptest.NewServer(relay.NewRouter(hub, registry, zerolog.Nop()))
	defer server.Close()

	cfg := relay.NewConfig()
	cfg.AllowedOrigins = append(cfg.AllowedOrigins, server.URL)
	relay.SetConfig(cfg)
	defer relay.SetConfig(nil)

	if err := hub.Shutdown(time.Second); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, err := testhelpers.ConnectWebSocket(wsURL, server.URL)
	if err != nil {
		// Upgrade refused outright is also acceptable.
		return
	}
	defer func() { _ = conn.Close() }()

	// The upgrade may succeed, but the connection is closed immediately
	// instead of being registered with the stopped hub.
	if err := conn.SetReadDeadline(time.Now().Add(eventWait)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected connection to be closed after hub shutdown")
	}
}
