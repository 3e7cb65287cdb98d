package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ukuvago/angelmatch/internal/apperr"
	"github.com/ukuvago/angelmatch/internal/entitlement"
	"github.com/ukuvago/angelmatch/internal/models"
	"github.com/ukuvago/angelmatch/internal/services"
)

const ctxAccess = "projectAccess"

// RequireValidNDA rejects investors without a valid master NDA. The response carries the
// route to sign it. Other roles pass through.
func RequireValidNDA(nda *services.NDAService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := GetUserID(c)
		if !ok {
			abort(c, apperr.New(apperr.CodeUnauthorized, "Authentication required"))
			return
		}
		if role, _ := GetUserRole(c); role != models.RoleInvestor {
			c.Next()
			return
		}

		status, err := nda.Status(userID)
		if err != nil {
			abort(c, err)
			return
		}
		if !status.Valid {
			code := apperr.CodeNDARequired
			msg := "You must sign the Non-Disclosure Agreement before continuing"
			if status.Signed {
				msg = "Your NDA has expired. Please sign a new one to continue"
			}
			c.AbortWithStatusJSON(apperr.HTTPStatus(code), gin.H{
				"error": msg,
				"code":  code,
				"next":  entitlement.NextAction{Kind: entitlement.ActionSignNDA, Method: "POST", Route: entitlement.RouteSignNDA},
			})
			return
		}
		c.Next()
	}
}

// CheckProjectAccess evaluates the investor's decision for the :id project and stores it
// on the context. It never rejects; the handler picks the view.
func CheckProjectAccess(ent *services.EntitlementService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := GetUserID(c)
		role, _ := GetUserRole(c)
		if !ok || role != models.RoleInvestor {
			c.Next()
			return
		}
		projectID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.Next()
			return
		}
		if view, err := ent.Access(userID, projectID); err == nil {
			c.Set(ctxAccess, view)
		}
		c.Next()
	}
}

// GetProjectAccess returns what CheckProjectAccess stored, if anything.
func GetProjectAccess(c *gin.Context) (*services.AccessView, bool) {
	v, ok := c.Get(ctxAccess)
	if !ok {
		return nil, false
	}
	view, ok := v.(*services.AccessView)
	return view, ok
}
