package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/cohort-api/internal/models"
	"github.com/noah-isme/cohort-api/internal/service"
	appErrors "github.com/noah-isme/cohort-api/pkg/errors"
	"github.com/noah-isme/cohort-api/pkg/response"
)

// ContextProfileKey stores the resolved caller profile.
const ContextProfileKey = "currentProfile"

// ResolveCaller loads the caller's profile and swaps the credential role for
// the stored one. Must run after JWT.
func ResolveCaller(profiles *service.ProfileService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := Claims(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		resolved, profile, err := profiles.Resolve(c.Request.Context(), claims)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		c.Set(ContextUserKey, resolved)
		c.Set(ContextProfileKey, profile)
		c.Next()
	}
}

// Profile returns the profile stored by ResolveCaller, or nil.
func Profile(c *gin.Context) *models.Profile {
	value, ok := c.Get(ContextProfileKey)
	if !ok {
		return nil
	}
	profile, _ := value.(*models.Profile)
	return profile
}
