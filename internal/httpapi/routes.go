package httpapi

import (
	"github.com/gin-gonic/gin"

	"libras-central/internal/bridge"
	"libras-central/internal/rbac"
)

// Register mounts the API surface on r. authn is the token-verification
// middleware; it must populate the request identity before the RBAC chain
// runs. The bridge webhook authenticates with its own shared secret and is
// mounted outside the authn chain.
func Register(r *gin.Engine, h *Handlers, webhook bridge.WebhookHandler, authn gin.HandlerFunc) {
	r.GET("/healthz", h.Health)
	r.POST("/webhooks/bridge/room-ended", webhook.HandleRoomEnded)

	v1 := r.Group("/v1", authn, rbac.RequireTenant())

	requester := v1.Group("", rbac.RequireAnyRole(rbac.RoleRequester))
	requester.GET("/availability", h.GetAvailability)
	requester.POST("/calls", h.CreateCall)

	// Both sides of a call poll, cancel, finish and invite.
	participant := v1.Group("", rbac.RequireAnyRole(rbac.RoleRequester, rbac.RoleDispatcher))
	participant.GET("/calls/:call_id", h.GetCall)
	participant.POST("/calls/:call_id/cancel", h.CancelCall)
	participant.POST("/calls/:call_id/finish", h.FinishCall)
	participant.POST("/calls/:call_id/invite", h.InviteToCall)

	dispatcher := v1.Group("", rbac.RequireAnyRole(rbac.RoleDispatcher))
	dispatcher.GET("/queue", h.ListQueue)
	dispatcher.POST("/calls/:call_id/claim", h.ClaimCall)

	admin := v1.Group("/admin")
	admin.PUT("/availability", rbac.RequireAnyRole(rbac.RoleSuperAdmin), h.UpsertSchedule)
	admin.GET("/reports/queue", rbac.RequireAnyRole(rbac.RoleDispatcher, rbac.RoleSuperAdmin), h.QueueReport)
}
