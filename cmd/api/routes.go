package main

import (
	"database/sql"
	"time"

	"callbilling-platform/internal/auth"
	"callbilling-platform/internal/httpapi"
	"callbilling-platform/internal/rbac"
	"callbilling-platform/pkg/utils"

	"github.com/gin-gonic/gin"
)

// Route registration is split by auth posture. Keep these files free of
// business logic; handlers delegate to internal services.

func registerPublicRoutes(r *gin.Engine, db *sql.DB) {
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), db, 2*time.Second); err != nil {
			c.JSON(503, gin.H{"status": "degraded"})
			return
		}
		c.JSON(200, gin.H{"status": "ok"})
	})
}

func registerAuthRoutes(r *gin.Engine, h httpapi.Handlers) {
	r.POST("/v1/auth/login", h.Login)
}

func registerProtectedRoutes(r *gin.Engine, authMW gin.HandlerFunc, h httpapi.Handlers) {
	v1 := r.Group("/v1")
	v1.Use(authMW)
	{
		v1.GET("/me", func(c *gin.Context) {
			uid, _ := auth.UserID(c.Request.Context())
			role, _ := auth.Role(c.Request.Context())
			c.JSON(200, gin.H{"user_id": uid, "role": role})
		})

		calls := v1.Group("/calls")
		calls.Use(rbac.RequireAnyRole(rbac.RolePayer))
		{
			calls.POST("/start", h.StartCall)
			calls.POST("/end", h.EndCall)
			calls.GET("/history", h.CallHistory)
			calls.GET("/stats", h.CallStats)
		}

		earnings := v1.Group("/earnings")
		earnings.Use(rbac.RequireAnyRole(rbac.RoleEarner, rbac.RoleAgency))
		{
			earnings.GET("", h.Earnings)
			earnings.GET("/stats", h.EarningsStats)
		}

		admin := v1.Group("/admin")
		admin.Use(rbac.RequireAnyRole(rbac.RoleAdmin))
		{
			admin.GET("/config", h.GetConfig)
			admin.PUT("/config", h.UpdateConfig)
		}
	}
}
