package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"load-request-api-server/internal/lifecycle"
)

type StockHandler struct {
	Engine *lifecycle.Service
}

func (h *StockHandler) GetStockLevel(c *gin.Context) {
	level, err := h.Engine.StockLevel(c.Request.Context(), c.Param("skuID"), c.Param("warehouseID"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, level)
}
