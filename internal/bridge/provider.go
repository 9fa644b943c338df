package bridge

import (
	"context"
	"strings"
)

// Provider defines the provider-agnostic video-bridge interface used by the
// dispatch service to provision interpreter rooms.
//
// Rules:
// - No bridge SDK/HTTP calls outside bridge adapters.
// - All requests must be tenant-scoped (tenant_id required).
// - Keep request/response types provider-agnostic.
type Provider interface {
	Name() string
	HealthCheck(ctx context.Context) error

	CreateRoom(ctx context.Context, req CreateRoomRequest) (Room, error)
	DeleteRoom(ctx context.Context, req DeleteRoomRequest) error
}

type CreateRoomRequest struct {
	TenantID string `json:"tenant_id"`

	// RoomName is the bridge-side room identifier. Dispatch derives it
	// deterministically from the call id so retries address the same room.
	RoomName string `json:"room_name"`
}

// Room is the provisioned session; URL is the join reference handed to both
// parties (and to invitees).
type Room struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type DeleteRoomRequest struct {
	TenantID string `json:"tenant_id"`
	RoomName string `json:"room_name"`
}

const roomNamePrefix = "call-"

// RoomNameForCall maps a call id to its bridge room name.
func RoomNameForCall(callID string) string {
	return roomNamePrefix + callID
}

// CallIDForRoom inverts RoomNameForCall; ok is false for foreign room names.
func CallIDForRoom(roomName string) (string, bool) {
	if !strings.HasPrefix(roomName, roomNamePrefix) {
		return "", false
	}
	id := strings.TrimPrefix(roomName, roomNamePrefix)
	return id, id != ""
}
