package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/cohort-api/internal/middleware"
	"github.com/noah-isme/cohort-api/internal/models"
	appErrors "github.com/noah-isme/cohort-api/pkg/errors"
	"github.com/noah-isme/cohort-api/pkg/response"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	if claims := middleware.Claims(c); claims != nil && claims.UserID != "" {
		return claims
	}
	return nil
}

// requireClaims writes a 401 and reports false when no caller is attached.
func requireClaims(c *gin.Context) (*models.JWTClaims, bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil, false
	}
	return claims, true
}

func bindError(err error) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
}
