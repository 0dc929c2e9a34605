package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/stackmemory-backend/internal/http/response"
	"github.com/yungbote/stackmemory-backend/internal/modules/roadmap"
	"github.com/yungbote/stackmemory-backend/internal/services"
)

// OpenClawHandler is the agent-facing surface for editing routes. Every
// mutation goes through the route editor so the document and its task rows
// stay in step.
type OpenClawHandler struct {
	routes services.RouteService
	editor services.RouteEditor
}

func NewOpenClawHandler(routes services.RouteService, editor services.RouteEditor) *OpenClawHandler {
	return &OpenClawHandler{routes: routes, editor: editor}
}

// GET /openclaw/routes?limit&offset&includeRoadmap
func (h *OpenClawHandler) ListRoutes(c *gin.Context) {
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

// GET /openclaw/routes/:routeId
func (h *OpenClawHandler) GetRoute(c *gin.Context) {
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
	route, err := h.editor.GetRoute(c.Request.Context(), userID, routeID)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, route)
}

// PATCH /openclaw/routes/:routeId
func (h *OpenClawHandler) PatchRoute(c *gin.Context) {
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
	var req services.RoutePatch
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid_request", err)
		return
	}
	route, err := h.editor.PatchRoute(c.Request.Context(), userID, routeID, req)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, route)
}

// POST /openclaw/routes/:routeId/tasks
func (h *OpenClawHandler) AddTask(c *gin.Context) {
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
	var req services.TaskInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid_request", err)
		return
	}
	route, err := h.editor.AddTask(c.Request.Context(), userID, routeID, req)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Created(c, route)
}

// PATCH /openclaw/routes/:routeId/tasks/:taskId
func (h *OpenClawHandler) PatchTask(c *gin.Context) {
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
	var req services.TaskPatch
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid_request", err)
		return
	}
	route, err := h.editor.PatchTask(c.Request.Context(), userID, routeID, c.Param("taskId"), req)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, route)
}

// DELETE /openclaw/routes/:routeId/tasks/:taskId
func (h *OpenClawHandler) DeleteTask(c *gin.Context) {
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
	route, err := h.editor.DeleteTask(c.Request.Context(), userID, routeID, c.Param("taskId"))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, route)
}

// POST /openclaw/routes/:routeId/tasks/:taskId/materials
func (h *OpenClawHandler) AddMaterial(c *gin.Context) {
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
	var req services.MaterialInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid_request", err)
		return
	}
	route, err := h.editor.AddMaterial(c.Request.Context(), userID, routeID, c.Param("taskId"), req)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Created(c, route)
}

// DELETE /openclaw/routes/:routeId/tasks/:taskId/materials
// body: { "url"?, "title"?, "knowledgePointId"? }
func (h *OpenClawHandler) RemoveMaterial(c *gin.Context) {
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
	var sel roadmap.MaterialSelector
	if err := c.ShouldBindJSON(&sel); err != nil {
		response.BadRequest(c, "invalid_request", err)
		return
	}
	route, err := h.editor.RemoveMaterial(c.Request.Context(), userID, routeID, c.Param("taskId"), sel)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, route)
}
