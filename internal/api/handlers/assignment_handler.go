package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"load-request-api-server/internal/lifecycle"
	"load-request-api-server/internal/models"
	"load-request-api-server/internal/repository"
)

type AssignmentHandler struct {
	Engine *lifecycle.Service
}

func (h *AssignmentHandler) GetAssignments(c *gin.Context) {
	filter := repository.AssignmentFilter{
		RequestID: c.Query("requestID"),
		TruckID:   c.Query("truckID"),
		Status:    models.AssignmentStatus(c.Query("status")),
	}
	assignments, err := h.Engine.ListAssignments(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, assignments)
}

func (h *AssignmentHandler) GetAssignmentByID(c *gin.Context) {
	a, err := h.Engine.GetAssignment(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *AssignmentHandler) StartLoading(c *gin.Context) {
	a, err := h.Engine.StartLoading(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}
