package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"libras-central/internal/config"
)

func newTestProvider(t *testing.T, handler http.Handler) *HTTPProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	p, err := NewHTTPProvider(config.BridgeConfig{BaseURL: srv.URL, APIKey: "test-key"})
	if err != nil {
		t.Fatalf("NewHTTPProvider() error = %v", err)
	}
	return p
}

func TestCreateRoom(t *testing.T) {
	var gotAuth string
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/rooms" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")

		var req CreateRoomRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(Room{Name: req.RoomName, URL: "https://meet.test/" + req.RoomName})
	}))

	room, err := p.CreateRoom(context.Background(), CreateRoomRequest{TenantID: "tenant-a", RoomName: "call-abc"})
	if err != nil {
		t.Fatalf("CreateRoom() error = %v", err)
	}
	if room.URL != "https://meet.test/call-abc" {
		t.Fatalf("room url = %q", room.URL)
	}
	if gotAuth != "Bearer test-key" {
		t.Fatalf("auth header = %q", gotAuth)
	}
}

func TestCreateRoomExistingRoomIsRetrySafe(t *testing.T) {
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Bridge returns 200 with the existing session for a duplicate name.
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(Room{Name: "call-abc", URL: "https://meet.test/call-abc"})
	}))

	room, err := p.CreateRoom(context.Background(), CreateRoomRequest{TenantID: "tenant-a", RoomName: "call-abc"})
	if err != nil {
		t.Fatalf("CreateRoom() error = %v", err)
	}
	if room.URL == "" {
		t.Fatalf("existing room returned without url")
	}
}

func TestCreateRoomUpstreamError(t *testing.T) {
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	if _, err := p.CreateRoom(context.Background(), CreateRoomRequest{TenantID: "tenant-a", RoomName: "call-abc"}); err == nil {
		t.Fatalf("CreateRoom() returned nil for upstream 502")
	}
}

func TestDeleteRoomToleratesMissingRoom(t *testing.T) {
	var gotPath string
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNotFound)
	}))

	err := p.DeleteRoom(context.Background(), DeleteRoomRequest{TenantID: "tenant-a", RoomName: "call-abc"})
	if err != nil {
		t.Fatalf("DeleteRoom() error = %v, want nil for 404", err)
	}
	if gotPath != "/v1/rooms/call-abc" {
		t.Fatalf("path = %q", gotPath)
	}
}

func TestRoomNameRoundTrip(t *testing.T) {
	name := RoomNameForCall("abc-123")
	if name != "call-abc-123" {
		t.Fatalf("RoomNameForCall() = %q", name)
	}
	id, ok := CallIDForRoom(name)
	if !ok || id != "abc-123" {
		t.Fatalf("CallIDForRoom(%q) = %q, %v", name, id, ok)
	}
	if _, ok := CallIDForRoom("lobby"); ok {
		t.Fatalf("CallIDForRoom accepted foreign room name")
	}
}
