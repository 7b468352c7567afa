package integration

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/revempire/revchat/internal/relay"
	"github.com/revempire/revchat/test/testhelpers"
)

func TestHealthEndpointIntegration(t *testing.T) {
	f := startRelay(t)

	resp := testhelpers.MakeRequest(t, http.MethodGet, f.server.URL+"/healthz")
	defer func() { _ = resp.Body.Close() }()

	testhelpers.AssertStatusCode(t, resp, http.StatusOK)
	testhelpers.AssertContentType(t, resp, "text/plain")
}

// TestRoomsIntrospection verifies the read-only rooms endpoint reflects
// live relay activity: message counts include system notices, member
// counts track joins.
func TestRoomsIntrospection(t *testing.T) {
	f := startRelay(t)

	ann := f.connect(t)
	bob := f.connect(t)
	f.join(t, ann, "alpha", "Ann")
	f.join(t, bob, "alpha", "Bob")

	if err := testhelpers.SendEvent(ann, relay.EventMessage, map[string]string{"text": "hello"}); err != nil {
		t.Fatalf("Failed to send message: %v", err)
	}
	testhelpers.WaitForEvent(t, bob, relay.EventMessage, eventWait)

	resp := testhelpers.MakeRequest(t, http.MethodGet, f.server.URL+"/api/rooms")
	defer func() { _ = resp.Body.Close() }()
	testhelpers.AssertStatusCode(t, resp, http.StatusOK)

	var infos []relay.RoomInfo
	if err := json.NewDecoder(resp.Body).Decode(&infos); err != nil {
		t.Fatalf("Failed to decode rooms response: %v", err)
	}

	var alpha *relay.RoomInfo
	for i := range infos {
		if infos[i].Name == "alpha" {
			alpha = &infos[i]
		}
	}
	if alpha == nil {
		t.Fatalf("room alpha missing from introspection: %v", infos)
	}
	if alpha.MemberCount != 2 {
		t.Errorf("expected 2 members, got %d", alpha.MemberCount)
	}
	// Two join notices plus the chat message.
	if alpha.MessageCount != 3 {
		t.Errorf("expected 3 history messages, got %d", alpha.MessageCount)
	}
}

// TestRoomsIntrospectionIsReadOnly: looking at the endpoint never
// creates rooms.
func TestRoomsIntrospectionIsReadOnly(t *testing.T) {
	f := startRelay(t)

	for i := 0; i < 2; i++ {
		resp := testhelpers.MakeRequest(t, http.MethodGet, f.server.URL+"/api/rooms")
		var infos []relay.RoomInfo
		if err := json.NewDecoder(resp.Body).Decode(&infos); err != nil {
			t.Fatalf("Failed to decode rooms response: %v", err)
		}
		_ = resp.Body.Close()
		if len(infos) != 0 {
			t.Errorf("introspection created rooms: %v", infos)
		}
	}
}
