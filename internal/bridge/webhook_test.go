package bridge

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

type recordingFinisher struct {
	calls []string // tenantID + "/" + callID
	err   error
}

func (f *recordingFinisher) FinishFromBridge(ctx context.Context, tenantID, callID string) error {
	f.calls = append(f.calls, tenantID+"/"+callID)
	return f.err
}

func postWebhook(t *testing.T, h WebhookHandler, secret, body string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/webhooks/bridge/room-ended", h.HandleRoomEnded)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/bridge/room-ended", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set("X-Bridge-Secret", secret)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestWebhookRejectsBadSecret(t *testing.T) {
	f := &recordingFinisher{}
	h := WebhookHandler{Dispatch: f, Secret: "hook-secret"}

	body := `{"event":"room.ended","tenant_id":"tenant-a","room":"call-abc"}`
	if w := postWebhook(t, h, "", body); w.Code != http.StatusUnauthorized {
		t.Fatalf("missing secret: status = %d, want 401", w.Code)
	}
	if w := postWebhook(t, h, "wrong", body); w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong secret: status = %d, want 401", w.Code)
	}
	if len(f.calls) != 0 {
		t.Fatalf("finisher invoked by unauthenticated sender: %v", f.calls)
	}
}

func TestWebhookRoomEndedFinishesCall(t *testing.T) {
	f := &recordingFinisher{}
	h := WebhookHandler{Dispatch: f, Secret: "hook-secret"}

	w := postWebhook(t, h, "hook-secret", `{"event":"room.ended","tenant_id":"tenant-a","room":"call-abc"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if len(f.calls) != 1 || f.calls[0] != "tenant-a/abc" {
		t.Fatalf("finisher calls = %v, want [tenant-a/abc]", f.calls)
	}
}

func TestWebhookIgnoresOtherEventsAndForeignRooms(t *testing.T) {
	f := &recordingFinisher{}
	h := WebhookHandler{Dispatch: f, Secret: "hook-secret"}

	if w := postWebhook(t, h, "hook-secret", `{"event":"room.created","tenant_id":"tenant-a","room":"call-abc"}`); w.Code != http.StatusOK {
		t.Fatalf("other event: status = %d, want 200", w.Code)
	}
	if w := postWebhook(t, h, "hook-secret", `{"event":"room.ended","tenant_id":"tenant-a","room":"lobby"}`); w.Code != http.StatusOK {
		t.Fatalf("foreign room: status = %d, want 200", w.Code)
	}
	if len(f.calls) != 0 {
		t.Fatalf("finisher invoked for ignored payloads: %v", f.calls)
	}
}

func TestWebhookValidation(t *testing.T) {
	f := &recordingFinisher{}
	h := WebhookHandler{Dispatch: f, Secret: "hook-secret"}

	if w := postWebhook(t, h, "hook-secret", `not json`); w.Code != http.StatusBadRequest {
		t.Fatalf("bad json: status = %d, want 400", w.Code)
	}
	if w := postWebhook(t, h, "hook-secret", `{"event":"room.ended","room":"call-abc"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("missing tenant: status = %d, want 400", w.Code)
	}
}
