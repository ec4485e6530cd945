package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/quantumauth-io/quantum-go-utils/log"

	"github.com/sqmu-io/sqmu-dapp/internal/apperr"
)

// envelope is the body of every widget API response.
type envelope struct {
	OK     bool   `json:"ok"`
	Status string `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
	Detail string `json:"detail,omitempty"`
	Data   any    `json:"data,omitempty"`
}

func writeOK(c *gin.Context, status string, data any) {
	c.JSON(http.StatusOK, envelope{OK: true, Status: status, Data: data})
}

// writeErr answers with the status line the widget would show and the full
// error text for support.
func writeErr(c *gin.Context, action string, err error) {
	code := httpStatus(err)
	if code >= http.StatusInternalServerError {
		log.Error("widget api", "request_id", requestID(c), "path", c.FullPath(), "error", err)
	}
	c.JSON(code, envelope{
		Status: apperr.Status(action, err),
		Error:  apperr.KindName(err),
		Detail: apperr.Detail(err),
	})
}

func httpStatus(err error) int {
	switch apperr.Kind(err) {
	case apperr.ErrValidation:
		return http.StatusBadRequest
	case apperr.ErrNotConnected, apperr.ErrPendingRequest, apperr.ErrChainMismatch:
		return http.StatusConflict
	case apperr.ErrUserRejected:
		return http.StatusForbidden
	case apperr.ErrProviderUnavailable:
		return http.StatusServiceUnavailable
	case apperr.ErrChainSwitchFailed, apperr.ErrContractCall:
		return http.StatusBadGateway
	case apperr.ErrTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
