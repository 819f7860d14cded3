package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"load-request-api-server/internal/api/middleware"
	"load-request-api-server/internal/errs"
	"load-request-api-server/internal/lifecycle"
	"load-request-api-server/internal/models"
	"load-request-api-server/internal/repository"
)

type LoadRequestHandler struct {
	Engine *lifecycle.Service
}

// loadVisible fetches a request and hides other requesters' requests from a
// requester.
func (h *LoadRequestHandler) loadVisible(c *gin.Context) (*models.LoadRequest, bool) {
	req, err := h.Engine.GetRequest(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	actor := middleware.CurrentActor(c)
	if !actor.CanApprove() && req.LsrID != actor.UserID {
		respondError(c, errs.Permission("load request %s belongs to another requester", req.RequestID))
		return nil, false
	}
	return req, true
}

func (h *LoadRequestHandler) CreateLoadRequest(c *gin.Context) {
	var input lifecycle.CreateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}
	input.LsrID = middleware.CurrentActor(c).UserID

	req, err := h.Engine.Create(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, req)
}

// GetLoadRequests lists requests. Requesters only ever see their own.
func (h *LoadRequestHandler) GetLoadRequests(c *gin.Context) {
	filter := repository.RequestFilter{
		LsrID:   c.Query("lsrID"),
		DepotID: c.Query("depotID"),
		Status:  models.RequestStatus(c.Query("status")),
	}
	if actor := middleware.CurrentActor(c); !actor.CanApprove() {
		filter.LsrID = actor.UserID
	}

	requests, err := h.Engine.ListRequests(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, requests)
}

func (h *LoadRequestHandler) GetLoadRequestByID(c *gin.Context) {
	req, ok := h.loadVisible(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, req)
}

func (h *LoadRequestHandler) UpdateDraft(c *gin.Context) {
	var input lifecycle.UpdateDraftInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}
	req, err := h.Engine.UpdateDraft(c.Request.Context(), c.Param("id"), middleware.CurrentActor(c), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (h *LoadRequestHandler) SubmitLoadRequest(c *gin.Context) {
	res, err := h.Engine.Submit(c.Request.Context(), c.Param("id"), middleware.CurrentActor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *LoadRequestHandler) ApproveLoadRequest(c *gin.Context) {
	// An empty body approves every line in full.
	var input lifecycle.ApproveInput
	if err := c.ShouldBindJSON(&input); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, err)
		return
	}
	res, err := h.Engine.Approve(c.Request.Context(), c.Param("id"), middleware.CurrentActor(c), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type rejectPayload struct {
	Reason string `json:"reason" binding:"required"`
}

func (h *LoadRequestHandler) RejectLoadRequest(c *gin.Context) {
	var payload rejectPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.Engine.Reject(c.Request.Context(), c.Param("id"), middleware.CurrentActor(c), payload.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *LoadRequestHandler) CancelLoadRequest(c *gin.Context) {
	req, err := h.Engine.Cancel(c.Request.Context(), c.Param("id"), middleware.CurrentActor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

type shipmentPayload struct {
	AssignmentID string `json:"assignmentID" binding:"required"`
	lifecycle.ShipmentData
}

// RecordShipment answers 200 even when some stock could not be deducted; the
// failed lines are listed under stockErrors.
func (h *LoadRequestHandler) RecordShipment(c *gin.Context) {
	var payload shipmentPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, err)
		return
	}
	payload.RecordedBy = middleware.CurrentActor(c).UserID

	res, err := h.Engine.RecordShipment(c.Request.Context(), c.Param("id"), payload.AssignmentID, payload.ShipmentData)
	if err != nil {
		respondError(c, err)
		return
	}
	stockErrors := make([]gin.H, 0, len(res.StockErrors))
	for _, se := range res.StockErrors {
		entry := gin.H{"error": se.Error(), "code": errs.CodeOf(se)}
		var e *errs.Error
		if errors.As(se, &e) {
			entry["details"] = e.Details
		}
		stockErrors = append(stockErrors, entry)
	}
	c.JSON(http.StatusOK, gin.H{
		"request":       res.Request,
		"assignment":    res.Assignment,
		"loadingLogs":   res.LoadingLogs,
		"notifications": res.Notifications,
		"stockErrors":   stockErrors,
	})
}

func (h *LoadRequestHandler) CompleteLoadRequest(c *gin.Context) {
	req, err := h.Engine.Complete(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (h *LoadRequestHandler) GetLoadingLogs(c *gin.Context) {
	req, ok := h.loadVisible(c)
	if !ok {
		return
	}
	logs, err := h.Engine.ListLoadingLogs(c.Request.Context(), req.RequestID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}
