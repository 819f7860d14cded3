package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"load-request-api-server/internal/reconcile"
)

type ReconciliationHandler struct {
	Reporter *reconcile.Reporter
}

func (h *ReconciliationHandler) GetReconciliation(c *gin.Context) {
	report, err := h.Reporter.Build(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// ExportReconciliation archives the report and returns its URL.
func (h *ReconciliationHandler) ExportReconciliation(c *gin.Context) {
	url, report, err := h.Reporter.Export(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"url": url, "key": reconcile.ObjectKey(report.RequestID), "totals": report.Totals})
}

