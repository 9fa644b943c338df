package bridge

import (
	"context"
	"crypto/subtle"
	"net/http"

	"libras-central/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Finisher is the dispatch-side hook invoked when the bridge reports a room
// ended. It must converge the call to its terminal state idempotently; the
// same room end may also be reported by both clients hanging up.
type Finisher interface {
	FinishFromBridge(ctx context.Context, tenantID, callID string) error
}

// WebhookHandler converts bridge lifecycle callbacks to internal calls.
//
// No business logic here. The bridge is authenticated with a shared secret
// header; payloads from unauthenticated senders are dropped.
//
// A client closing its tab is not guaranteed to fire a finish request, so
// this server-side callback is what keeps rooms from leaking.
type WebhookHandler struct {
	Dispatch Finisher
	Secret   string
}

const headerWebhookSecret = "X-Bridge-Secret"

type roomEndedEvent struct {
	Event    string `json:"event"`
	TenantID string `json:"tenant_id"`
	Room     string `json:"room"`
}

func (h WebhookHandler) HandleRoomEnded(c *gin.Context) {
	log := logger.FromGin(c)

	if h.Dispatch == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "dispatch not configured"})
		return
	}
	if h.Secret == "" || subtle.ConstantTimeCompare([]byte(c.GetHeader(headerWebhookSecret)), []byte(h.Secret)) != 1 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var ev roomEndedEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if ev.Event != "room.ended" {
		// Other lifecycle events are acknowledged and ignored.
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}
	if ev.TenantID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "tenant_id required"})
		return
	}

	callID, ok := CallIDForRoom(ev.Room)
	if !ok {
		log.Warn("bridge webhook for foreign room", "room", ev.Room)
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	if err := h.Dispatch.FinishFromBridge(c.Request.Context(), ev.TenantID, callID); err != nil {
		log.Error("bridge-driven finish failed", "call_id", callID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "finish failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
