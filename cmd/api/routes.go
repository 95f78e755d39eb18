package main

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"receptionist-platform/internal/httpapi"
	"receptionist-platform/internal/rbac"
	"receptionist-platform/internal/realtime"
	"receptionist-platform/internal/voice"
	"receptionist-platform/pkg/utils"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers delegate to internal modules.
func registerRoutes(r *gin.Engine, db *sql.DB, hub *realtime.Hub, webhook *voice.Handler, h httpapi.Handlers, authMW gin.HandlerFunc) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), db, 2*time.Second); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Voice engine webhooks (public, guarded by the shared secret).
	webhook.Register(r)

	// Token issuance.
	// NOTE: This is a placeholder login route; real credential validation is not implemented.
	r.POST("/v1/auth/login", h.Login)

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(authMW)
	{
		v1.GET("/ws", rbac.RequireOrg(), hub.ServeWS)

		availability := v1.Group("/availability")
		availability.Use(rbac.RequireOrg())
		{
			availability.GET("", h.GetAvailability)

			put := availability.Group("")
			put.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleSuperAdmin))
			put.PUT("", h.PutAvailability)
		}

		v1.GET("/services", rbac.RequireOrg(), h.ListServices)

		appointments := v1.Group("/appointments")
		appointments.Use(rbac.RequireOrg())
		appointments.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleStaff, rbac.RoleSuperAdmin))
		{
			appointments.GET("", h.ListAppointments)
			appointments.POST("", h.CreateAppointment)
			appointments.PATCH("/:id", h.UpdateAppointment)
		}

		calls := v1.Group("/calls")
		calls.Use(rbac.RequireOrg())
		calls.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleStaff, rbac.RoleSuperAdmin))
		{
			calls.GET("", h.ListCalls)
			calls.GET("/:id", h.GetCall)
		}

		analytics := v1.Group("/analytics")
		analytics.Use(rbac.RequireOrg())
		analytics.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleSuperAdmin))
		{
			analytics.GET("/summary", h.AnalyticsSummary)
		}
	}
}
