package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"libras-central/internal/audit"
	"libras-central/internal/auth"
	"libras-central/internal/availability"
	"libras-central/internal/config"
	"libras-central/internal/dispatch"
	"libras-central/internal/invite"
	"libras-central/internal/reporting"
	"libras-central/pkg/logger"
)

// Handlers is the HTTP surface over the dispatch services. Handlers stay
// thin: decode, delegate, map errors to status codes. All business rules
// live in the services.
type Handlers struct {
	Dispatch     *dispatch.Service
	Gate         *availability.Gate
	Availability availability.Store
	Reporting    *reporting.Service
	Audit        *audit.Service
	Cfg          config.DispatchConfig

	// Clock overrides the report reference time in tests. Nil means time.Now.
	Clock func() time.Time
}

func (h *Handlers) now() time.Time {
	if h.Clock != nil {
		return h.Clock()
	}
	return time.Now()
}

func identity(c *gin.Context) (userID, tenantID, role string, ok bool) {
	ctx := c.Request.Context()
	userID, err1 := auth.UserID(ctx)
	tenantID, err2 := auth.TenantID(ctx)
	role, err3 := auth.Role(ctx)
	if err1 != nil || err2 != nil || err3 != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return "", "", "", false
	}
	return userID, tenantID, role, true
}

// GetAvailability answers the requester's pre-flight check.
func (h *Handlers) GetAvailability(c *gin.Context) {
	_, tenantID, _, ok := identity(c)
	if !ok {
		return
	}

	open, err := h.Gate.IsAvailable(c.Request.Context(), tenantID)
	if err != nil {
		logger.FromGin(c).Error("availability check failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"available": open})
}

type createCallRequest struct {
	RequesterName string `json:"requester_name"`
}

// CreateCall enqueues an interpreter request. A requester re-posting while
// they already have an active request gets the existing record back with 200.
func (h *Handlers) CreateCall(c *gin.Context) {
	userID, tenantID, _, ok := identity(c)
	if !ok {
		return
	}

	var req createCallRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
	}

	call, err := h.Dispatch.Create(c.Request.Context(), tenantID, userID, req.RequesterName)
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, h.callPayload(call, dispatch.StateWaiting))
	case errors.Is(err, dispatch.ErrDuplicateActive):
		c.JSON(http.StatusOK, h.callPayload(call, call.State))
	default:
		h.writeDispatchError(c, err, dispatch.CallRequest{})
	}
}

// GetCall is the polling endpoint for both sides of a call.
func (h *Handlers) GetCall(c *gin.Context) {
	userID, tenantID, role, ok := identity(c)
	if !ok {
		return
	}

	call, err := h.Dispatch.Status(c.Request.Context(), tenantID, c.Param("call_id"), userID, role)
	if err != nil {
		h.writeDispatchError(c, err, dispatch.CallRequest{})
		return
	}
	c.JSON(http.StatusOK, h.callPayload(call, call.State))
}

func (h *Handlers) CancelCall(c *gin.Context) {
	userID, tenantID, role, ok := identity(c)
	if !ok {
		return
	}

	call, err := h.Dispatch.Cancel(c.Request.Context(), tenantID, c.Param("call_id"), userID, role)
	if err != nil {
		h.writeDispatchError(c, err, call)
		return
	}
	c.JSON(http.StatusOK, h.callPayload(call, call.State))
}

func (h *Handlers) FinishCall(c *gin.Context) {
	userID, tenantID, role, ok := identity(c)
	if !ok {
		return
	}

	call, err := h.Dispatch.Finish(c.Request.Context(), tenantID, c.Param("call_id"), userID, role)
	if err != nil {
		h.writeDispatchError(c, err, call)
		return
	}
	c.JSON(http.StatusOK, h.callPayload(call, call.State))
}

// ListQueue returns the dispatcher's FIFO view of waiting requests.
func (h *Handlers) ListQueue(c *gin.Context) {
	_, tenantID, _, ok := identity(c)
	if !ok {
		return
	}

	calls, err := h.Dispatch.ListWaiting(c.Request.Context(), tenantID)
	if err != nil {
		logger.FromGin(c).Error("queue listing failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"calls":            calls,
		"poll_interval_ms": h.Cfg.DispatcherPollInterval.Milliseconds(),
	})
}

// ClaimCall attempts to win the claim. A lost race returns 409 with the
// authoritative record so the dispatcher UI can drop the entry immediately.
func (h *Handlers) ClaimCall(c *gin.Context) {
	userID, tenantID, _, ok := identity(c)
	if !ok {
		return
	}

	call, err := h.Dispatch.Claim(c.Request.Context(), tenantID, c.Param("call_id"), userID)
	if err != nil {
		h.writeDispatchError(c, err, call)
		return
	}
	c.JSON(http.StatusOK, h.callPayload(call, call.State))
}

type inviteRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

func (h *Handlers) InviteToCall(c *gin.Context) {
	userID, tenantID, role, ok := identity(c)
	if !ok {
		return
	}

	var req inviteRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email required"})
		return
	}

	err := h.Dispatch.Invite(c.Request.Context(), tenantID, c.Param("call_id"), userID, role, req.Email, req.DisplayName)
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, gin.H{"status": "invited"})
	case errors.Is(err, invite.ErrInvalidAddress):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid email address"})
	case errors.Is(err, invite.ErrNotConfigured):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "invitations not configured"})
	case errors.Is(err, dispatch.ErrNotFound),
		errors.Is(err, dispatch.ErrForbidden),
		errors.Is(err, dispatch.ErrStateChanged):
		h.writeDispatchError(c, err, dispatch.CallRequest{})
	default:
		logger.FromGin(c).Error("invite delivery failed", "err", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "invitation delivery failed"})
	}
}

type upsertScheduleRequest struct {
	TenantID string                           `json:"tenant_id"`
	Timezone string                           `json:"timezone"`
	Windows  map[string][]availability.Window `json:"windows"`
}

// UpsertSchedule replaces a tenant's availability schedule (admin surface).
func (h *Handlers) UpsertSchedule(c *gin.Context) {
	userID, _, role, ok := identity(c)
	if !ok {
		return
	}

	var req upsertScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	sched := availability.Schedule{
		TenantID: req.TenantID,
		Timezone: req.Timezone,
		Windows:  req.Windows,
	}
	if err := sched.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.Availability.Upsert(c.Request.Context(), sched); err != nil {
		logger.FromGin(c).Error("schedule upsert failed", "tenant_id", req.TenantID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	if h.Audit != nil {
		err := h.Audit.LogCallEvent(c.Request.Context(), audit.EventTypeScheduleUpdated, req.TenantID, userID, role, "", "availability schedule replaced")
		if err != nil {
			logger.FromGin(c).Warn("audit append failed", "err", err)
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

// QueueReport returns wait-time metrics for the caller's tenant. Defaults to
// the last 24 hours when no range is given.
func (h *Handlers) QueueReport(c *gin.Context) {
	_, tenantID, _, ok := identity(c)
	if !ok {
		return
	}

	to := h.now().UTC()
	from := to.Add(-24 * time.Hour)
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from must be RFC3339"})
			return
		}
		from = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "to must be RFC3339"})
			return
		}
		to = t
	}

	sum, err := h.Reporting.QueueSummary(c.Request.Context(), tenantID, from, to)
	if err != nil {
		logger.FromGin(c).Error("queue report failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// callPayload attaches the client's polling hint to the record. Waiting
// requesters poll faster than dispatchers watch the queue.
func (h *Handlers) callPayload(call dispatch.CallRequest, state dispatch.State) gin.H {
	payload := gin.H{"call": call}
	if !state.Terminal() {
		payload["poll_interval_ms"] = h.Cfg.RequesterPollInterval.Milliseconds()
	}
	return payload
}

// writeDispatchError maps service errors to the HTTP contract. Conflicts
// carry the authoritative record when the service handed one back.
func (h *Handlers) writeDispatchError(c *gin.Context, err error, call dispatch.CallRequest) {
	switch {
	case errors.Is(err, dispatch.ErrNotFound):
		// The client contract treats unknown ids as "session ended".
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	case errors.Is(err, dispatch.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, dispatch.ErrUnavailable):
		c.JSON(http.StatusConflict, gin.H{"error": "unavailable"})
	case errors.Is(err, dispatch.ErrTenantBusy):
		c.JSON(http.StatusConflict, gin.H{"error": "busy"})
	case errors.Is(err, dispatch.ErrAlreadyClaimed), errors.Is(err, dispatch.ErrStateChanged):
		c.JSON(http.StatusConflict, gin.H{"error": "conflict", "call": call})
	case errors.Is(err, dispatch.ErrProvisioning):
		c.JSON(http.StatusBadGateway, gin.H{"error": "room_provisioning_failed"})
	case errors.Is(err, dispatch.ErrInvalidArgument):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_argument"})
	default:
		logger.FromGin(c).Error("dispatch operation failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
