package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/asset-inventory-api/internal/middleware"
	"github.com/noah-isme/asset-inventory-api/internal/models"
	appErrors "github.com/noah-isme/asset-inventory-api/pkg/errors"
	"github.com/noah-isme/asset-inventory-api/pkg/response"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// bindJSON decodes the body and reports a validation error with the given message on failure.
func bindJSON(c *gin.Context, dst interface{}, message string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		return invalid(c, err, message)
	}
	return true
}

func bindQuery(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindQuery(dst); err != nil {
		return invalid(c, err, "invalid query parameters")
	}
	return true
}

func invalid(c *gin.Context, err error, message string) bool {
	response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message))
	return false
}

// bindOptionalJSON tolerates an empty body.
func bindOptionalJSON(c *gin.Context, dst interface{}, message string) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	return bindJSON(c, dst, message)
}
