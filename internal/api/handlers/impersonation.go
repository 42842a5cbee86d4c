package handlers

import (
	"net/http"

	"handoff-gateway/internal/api/interfaces"
	"handoff-gateway/internal/api/middlewares"
	"handoff-gateway/internal/api/models"
	"handoff-gateway/internal/impersonation"
	"handoff-gateway/internal/upstream"

	"github.com/gin-gonic/gin"
)

// ImpersonateUser starts impersonating a single user
func ImpersonateUser(services interfaces.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body models.ImpersonateUserRequest
		if c.Request.Method == http.MethodPost {
			if err := c.ShouldBindJSON(&body); err != nil {
				body = models.ImpersonateUserRequest{}
			}
		}

		ctx, cancel := upstreamContext(c, services)
		defer cancel()

		result := services.ImpersonationService().StartUser(ctx, c.Request.Method, middlewares.GetSessionClaims(c),
			impersonation.UserRequest{User: body.User, Reason: body.Reason})
		writeImpersonationResult(c, result)
	}
}

// ImpersonateOrganization starts impersonating a user within an organization
func ImpersonateOrganization(services interfaces.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body models.ImpersonateOrganizationRequest
		if c.Request.Method == http.MethodPost {
			if err := c.ShouldBindJSON(&body); err != nil {
				body = models.ImpersonateOrganizationRequest{}
			}
		}

		ctx, cancel := upstreamContext(c, services)
		defer cancel()

		result := services.ImpersonationService().StartOrganization(ctx, c.Request.Method, middlewares.GetSessionClaims(c),
			impersonation.OrganizationRequest{OrganizationID: body.OrganizationID, User: body.User, Reason: body.Reason})
		writeImpersonationResult(c, result)
	}
}

func writeImpersonationResult(c *gin.Context, result *impersonation.Result) {
	result.Cookies.Write(c.Writer)
	if result.Status == http.StatusMethodNotAllowed {
		c.Header("Allow", http.MethodPost)
	}

	errs := result.Errors
	if errs == nil {
		errs = []upstream.APIError{}
	}
	c.JSON(result.Status, models.ImpersonationResponse{
		Success:        result.Success,
		Errors:         errs,
		InvalidRequest: result.InvalidRequest,
	})
}
