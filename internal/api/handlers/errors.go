package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"load-request-api-server/internal/errs"
)

var statusByCode = map[errs.Code]int{
	errs.CodeValidation:              http.StatusBadRequest,
	errs.CodeEmptyRequest:            http.StatusBadRequest,
	errs.CodeDiscrepancyReasonNeeded: http.StatusBadRequest,
	errs.CodePermission:              http.StatusForbidden,
	errs.CodeNotFound:                http.StatusNotFound,
	errs.CodeInvalidState:            http.StatusConflict,
	errs.CodeConflict:                http.StatusConflict,
	errs.CodeQuantityExceedsRequest:  http.StatusUnprocessableEntity,
	errs.CodeOverShipment:            http.StatusUnprocessableEntity,
	errs.CodeInsufficientStock:       http.StatusUnprocessableEntity,
	errs.CodeTimeout:                 http.StatusGatewayTimeout,
	errs.CodeInternal:                http.StatusInternalServerError,
}

// respondError writes err as {"error", "code"}. Internal failures are
// reported without detail; the access log carries the cause.
func respondError(c *gin.Context, err error) {
	c.Error(err)
	code := errs.CodeOf(err)
	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	msg := "Internal server error"
	var e *errs.Error
	if code != errs.CodeInternal && errors.As(err, &e) && e.Message != "" {
		msg = e.Message
	} else if code == errs.CodeTimeout {
		msg = "Operation timed out, please retry"
	}
	body := gin.H{"error": msg, "code": code}
	if e != nil && len(e.Details) > 0 && code != errs.CodeInternal {
		body["details"] = e.Details
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": errs.CodeValidation})
}
