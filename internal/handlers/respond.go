package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ukuvago/angelmatch/internal/apperr"
	"github.com/ukuvago/angelmatch/internal/logger"
	"go.uber.org/zap"
)

// respondError writes err as {"error", "code"} with the status its code maps to.
// Unknown errors are logged and reported as a generic 500.
func respondError(c *gin.Context, err error) {
	code := apperr.CodeOf(err)
	status := apperr.HTTPStatus(code)
	if status >= http.StatusInternalServerError {
		logger.L().Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("code", string(code)),
			zap.Error(err),
		)
		_ = c.Error(err)
	}

	body := gin.H{"error": apperr.Message(err), "code": code}
	var ae *apperr.AppError
	if errors.As(err, &ae) && len(ae.Meta) > 0 {
		for k, v := range ae.Meta {
			body[k] = v
		}
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": apperr.CodeInvalid})
}

// paramID parses the named path parameter as a uuid and writes 400 if it is not one.
func paramID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name, "code": apperr.CodeInvalid})
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(c *gin.Context, name string, def int) int {
	if v, err := strconv.Atoi(c.Query(name)); err == nil {
		return v
	}
	return def
}
