package handlers

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/stackmemory-backend/internal/http/response"
	"github.com/yungbote/stackmemory-backend/internal/modules/roadmap"
	"github.com/yungbote/stackmemory-backend/internal/services"
)

type RouteHandler struct {
	routes services.RouteService
	tasks  services.RouteTaskService
}

func NewRouteHandler(routes services.RouteService, tasks services.RouteTaskService) *RouteHandler {
	return &RouteHandler{routes: routes, tasks: tasks}
}

// GET /routes?limit&offset
func (h *RouteHandler) ListRoutes(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		response.Fail(c, err)
		return
	}
	limit, err := queryInt(c, "limit", services.DefaultRouteListLimit)
	if err != nil {
		response.Fail(c, err)
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		response.Fail(c, err)
		return
	}
	out, err := h.routes.ListRoutes(c.Request.Context(), userID, limit, offset, queryBool(c, "includeRoadmap"))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, out)
}

// GET /routes/current
func (h *RouteHandler) GetCurrentRoute(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		response.Fail(c, err)
		return
	}
	route, err := h.routes.GetCurrentRoute(c.Request.Context(), userID)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, route)
}

// GET /routes/:routeId
func (h *RouteHandler) GetRoute(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		response.Fail(c, err)
		return
	}
	routeID, err := paramUUID(c, "routeId")
	if err != nil {
		response.Fail(c, err)
		return
	}
	route, err := h.routes.GetRoute(c.Request.Context(), userID, routeID)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, route)
}

// POST /routes
// body: { "topic": "...", "background"?, "goals"?, "weeks"?, "roadmap_data"? }
func (h *RouteHandler) CreateRoute(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		response.Fail(c, err)
		return
	}
	var req services.CreateRouteInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid_request", err)
		return
	}
	route, err := h.routes.CreateRoute(c.Request.Context(), userID, req)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Created(c, route)
}

// DELETE /routes?routeId=
func (h *RouteHandler) DeleteRoute(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		response.Fail(c, err)
		return
	}
	routeID, err := parseUUID(c.Query("routeId"), "routeId")
	if err != nil {
		response.Fail(c, err)
		return
	}
	next, err := h.routes.DeleteRoute(c.Request.Context(), userID, routeID)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, gin.H{"deleted_route_id": routeID, "next_route": next})
}

// PUT /routes/switch
// body: { "route_id": "..." }
func (h *RouteHandler) SwitchRoute(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		response.Fail(c, err)
		return
	}
	var req struct {
		RouteID string `json:"route_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid_request", err)
		return
	}
	routeID, err := parseUUID(req.RouteID, "route_id")
	if err != nil {
		response.Fail(c, err)
		return
	}
	route, err := h.routes.SwitchRoute(c.Request.Context(), userID, routeID)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, route)
}

// GET /routes/:routeId/tasks
func (h *RouteHandler) ListRouteTasks(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		response.Fail(c, err)
		return
	}
	routeID, err := paramUUID(c, "routeId")
	if err != nil {
		response.Fail(c, err)
		return
	}
	rows, err := h.tasks.ListRouteTasks(c.Request.Context(), userID, routeID)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, rows)
}

// GET /routes/current/tasks?date=YYYY-MM-DD
func (h *RouteHandler) CurrentTasks(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		response.Fail(c, err)
		return
	}
	out, err := h.tasks.CurrentTasksForDate(c.Request.Context(), userID, c.Query("date"), time.Now().UTC())
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, out)
}

// GET /routes/:routeId/timeline
func (h *RouteHandler) Timeline(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		response.Fail(c, err)
		return
	}
	routeID, err := paramUUID(c, "routeId")
	if err != nil {
		response.Fail(c, err)
		return
	}
	out, err := h.tasks.Timeline(c.Request.Context(), userID, routeID)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, out)
}

// PUT /routes/:routeId/tasks/:taskId/status
// body: { "status": "pending" | "in_progress" | "completed" }
func (h *RouteHandler) UpdateTaskStatus(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		response.Fail(c, err)
		return
	}
	routeID, err := paramUUID(c, "routeId")
	if err != nil {
		response.Fail(c, err)
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid_request", err)
		return
	}
	route, err := h.tasks.UpdateTaskStatus(c.Request.Context(), userID, routeID, c.Param("taskId"), roadmap.TaskStatus(strings.TrimSpace(req.Status)))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, route)
}
