package http

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/approval-engine/internal/application/service"
	appwf "github.com/garyjia/approval-engine/internal/application/workflow"
	"github.com/garyjia/approval-engine/internal/domain/entity"
)

// UserHeader carries the acting user. Authentication happens upstream.
const UserHeader = "X-User-ID"

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// HealthChecker reports whether the backing components are healthy
type HealthChecker func() (healthy bool, details interface{})

// Handlers contains all HTTP request handlers
type Handlers struct {
	engine        appwf.Engine
	tasks         service.TaskService
	notifications service.NotificationService
	approvals     service.ApprovalService
	health        HealthChecker
	keepalive     time.Duration
	logger        Logger
}

// Services groups what the handlers call into
type Services struct {
	Engine        appwf.Engine
	Tasks         service.TaskService
	Notifications service.NotificationService
	Approvals     service.ApprovalService
}

// NewHandlers creates a new Handlers instance
func NewHandlers(svc Services, health HealthChecker, keepalive time.Duration, logger Logger) *Handlers {
	if keepalive <= 0 {
		keepalive = 30 * time.Second
	}
	return &Handlers{
		engine:        svc.Engine,
		tasks:         svc.Tasks,
		notifications: svc.Notifications,
		approvals:     svc.Approvals,
		health:        health,
		keepalive:     keepalive,
		logger:        logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string      `json:"status"`
	Timestamp  string      `json:"timestamp"`
	Components interface{} `json:"components,omitempty"`
}

// ActionRequest is the body of an approval decision
type ActionRequest struct {
	Action   string `json:"action" binding:"required"`
	Comments string `json:"comments"`
}

// TaskActionRequest is the body of a task status update
type TaskActionRequest struct {
	Action  string `json:"action" binding:"required"`
	Comment string `json:"comment"`
}

// CancelRequest is the body of a cancellation
type CancelRequest struct {
	Reason string `json:"reason"`
}

// HistoryQuery selects one business entity's approval runs
type HistoryQuery struct {
	ReferenceID string `form:"reference_id" binding:"required"`
	Kind        string `form:"kind" binding:"required"`
}

func ok(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{Success: true, Data: data})
}

// actingUser reads the user header, writing a problem when it is missing
func actingUser(c *gin.Context) (string, bool) {
	userID := c.GetHeader(UserHeader)
	if userID == "" {
		badRequest(c, fmt.Sprintf("%s header is required", UserHeader))
		return "", false
	}
	return userID, true
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	status := http.StatusOK

	if h.health != nil {
		healthy, details := h.health()
		resp.Components = details
		if !healthy {
			resp.Status = "unhealthy"
			status = http.StatusServiceUnavailable
		}
	}

	c.JSON(status, Response{Success: status == http.StatusOK, Data: resp})
}

// CreateApproval handles POST /api/v1/approvals
func (h *Handlers) CreateApproval(c *gin.Context) {
	userID, present := actingUser(c)
	if !present {
		return
	}

	var in appwf.CreateApprovalInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	in.CreatedBy = userID

	approval, err := h.engine.CreateApproval(c.Request.Context(), in)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	ok(c, http.StatusCreated, approval)
}

// GetApproval handles GET /api/v1/approvals/:id
func (h *Handlers) GetApproval(c *gin.Context) {
	approval, err := h.engine.GetApproval(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, approval)
}

// ProcessAction handles POST /api/v1/approvals/:id/actions
func (h *Handlers) ProcessAction(c *gin.Context) {
	userID, present := actingUser(c)
	if !present {
		return
	}

	var req ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	approval, err := h.engine.ProcessAction(c.Request.Context(), c.Param("id"), userID, req.Action, req.Comments)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, approval)
}

// CancelApproval handles POST /api/v1/approvals/:id/cancel
func (h *Handlers) CancelApproval(c *gin.Context) {
	userID, present := actingUser(c)
	if !present {
		return
	}

	var req CancelRequest
	// An empty body means no reason
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body: "+err.Error())
			return
		}
	}

	approval, err := h.engine.CancelApproval(c.Request.Context(), c.Param("id"), userID, req.Reason)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, approval)
}

// GetApprovalHistory handles GET /api/v1/approvals?reference_id=&kind=
func (h *Handlers) GetApprovalHistory(c *gin.Context) {
	var q HistoryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "reference_id and kind are required")
		return
	}

	approvals, err := h.engine.GetHistory(c.Request.Context(), q.ReferenceID, q.Kind)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, approvals)
}

// ExportApprovalHistory handles GET /api/v1/approvals/export
func (h *Handlers) ExportApprovalHistory(c *gin.Context) {
	var q HistoryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "reference_id and kind are required")
		return
	}

	data, err := h.approvals.ExportHistory(c.Request.Context(), q.ReferenceID, q.Kind)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	filename := fmt.Sprintf("%s-%s-approvals.xlsx", q.Kind, q.ReferenceID)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, data)
}

// GetInbox handles GET /api/v1/inbox
func (h *Handlers) GetInbox(c *gin.Context) {
	userID, present := actingUser(c)
	if !present {
		return
	}

	var filters entity.TaskFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		badRequest(c, "invalid query parameters")
		return
	}

	tasks, err := h.tasks.GetUserInbox(c.Request.Context(), userID, filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, tasks)
}

// GetTaskCounts handles GET /api/v1/inbox/counts
func (h *Handlers) GetTaskCounts(c *gin.Context) {
	userID, present := actingUser(c)
	if !present {
		return
	}

	counts, err := h.tasks.GetTaskCounts(c.Request.Context(), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, counts)
}

// CreateTask handles POST /api/v1/tasks
func (h *Handlers) CreateTask(c *gin.Context) {
	userID, present := actingUser(c)
	if !present {
		return
	}

	var in service.CreateTaskInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	in.AssignedBy = userID

	task, err := h.tasks.CreateTask(c.Request.Context(), in)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	ok(c, http.StatusCreated, task)
}

// GetTask handles GET /api/v1/tasks/:id
func (h *Handlers) GetTask(c *gin.Context) {
	task, err := h.tasks.GetTaskByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, task)
}

// UpdateTaskStatus handles POST /api/v1/tasks/:id/actions
func (h *Handlers) UpdateTaskStatus(c *gin.Context) {
	userID, present := actingUser(c)
	if !present {
		return
	}

	var req TaskActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	task, err := h.tasks.UpdateTaskStatus(c.Request.Context(), c.Param("id"), userID, req.Action, req.Comment)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, task)
}

// ListNotifications handles GET /api/v1/notifications
func (h *Handlers) ListNotifications(c *gin.Context) {
	userID, present := actingUser(c)
	if !present {
		return
	}

	unreadOnly := false
	if raw := c.Query("unread"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			badRequest(c, "unread must be a boolean")
			return
		}
		unreadOnly = v
	}

	notifications, err := h.notifications.GetUserNotifications(c.Request.Context(), userID, unreadOnly)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, notifications)
}

// GetUnreadCount handles GET /api/v1/notifications/unread-count
func (h *Handlers) GetUnreadCount(c *gin.Context) {
	userID, present := actingUser(c)
	if !present {
		return
	}

	count, err := h.notifications.GetUnreadCount(c.Request.Context(), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"unread": count})
}

// MarkNotificationRead handles POST /api/v1/notifications/:id/read
func (h *Handlers) MarkNotificationRead(c *gin.Context) {
	changed, err := h.notifications.MarkAsRead(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"updated": changed})
}

// MarkAllNotificationsRead handles POST /api/v1/notifications/read-all
func (h *Handlers) MarkAllNotificationsRead(c *gin.Context) {
	userID, present := actingUser(c)
	if !present {
		return
	}

	n, err := h.notifications.MarkAllAsRead(c.Request.Context(), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"updated": n})
}
