package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/stackmemory-backend/internal/http/response"
	"github.com/yungbote/stackmemory-backend/internal/services"
)

type RoadmapHandler struct {
	roadmaps services.RoadmapGenerationService
}

func NewRoadmapHandler(roadmaps services.RoadmapGenerationService) *RoadmapHandler {
	return &RoadmapHandler{roadmaps: roadmaps}
}

// POST /learning-roadmap
func (h *RoadmapHandler) Generate(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		response.Fail(c, err)
		return
	}
	var req services.GenerateRoadmapInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid_request", err)
		return
	}
	res, err := h.roadmaps.Generate(c.Request.Context(), userID, req)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Created(c, res)
}

// GET /learning-roadmap?routeId=
func (h *RoadmapHandler) Get(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		response.Fail(c, err)
		return
	}
	routeID := uuid.Nil
	if raw := strings.TrimSpace(c.Query("routeId")); raw != "" {
		if routeID, err = parseUUID(raw, "routeId"); err != nil {
			response.Fail(c, err)
			return
		}
	}
	res, err := h.roadmaps.GetRoadmap(c.Request.Context(), userID, routeID)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, res)
}

// POST /routes/:routeId/quality-gate
func (h *RoadmapHandler) QualityGate(c *gin.Context) {
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
	res, err := h.roadmaps.RouteQualityGate(c.Request.Context(), userID, routeID)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, res)
}
