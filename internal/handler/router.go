package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/tutoring-ledger-api/internal/middleware"
	"github.com/noah-isme/tutoring-ledger-api/internal/models"
)

// Handlers groups the HTTP adapters mounted under the API prefix.
type Handlers struct {
	Schedule   *ScheduleHandler
	Attendance *AttendanceHandler
	Wages      *WageHandler
}

// RegisterRoutes mounts the ledger and wage endpoints on group. Every route
// requires a valid token. Attendance is limited to staff because flag changes
// move lesson credits; wage data and lesson deletion are limited to
// administrators.
func RegisterRoutes(group *gin.RouterGroup, h Handlers, tokens middleware.TokenValidator, logger *zap.Logger) {
	group.Use(middleware.JWT(tokens), middleware.WithResponseMeta())
	admin := middleware.RequireAdmin()
	staff := middleware.RequireRoles(models.RoleTeacher, models.RoleAdmin, models.RoleSuperAdmin)

	classes := group.Group("/classes/:id")
	classes.GET("/schedule", h.Schedule.Get)

	attendance := classes.Group("/attendance", staff)
	attendance.POST("", middleware.Audit(logger, "attendance.ledger_created", "class"), h.Attendance.Create)
	attendance.GET("", h.Attendance.List)
	attendance.GET("/:lesson", h.Attendance.Get)
	attendance.PUT("/:lesson", middleware.Audit(logger, "attendance.recorded", "class"), h.Attendance.Record)
	attendance.DELETE("/:lesson", admin, middleware.Audit(logger, "attendance.lesson_deleted", "class"), h.Attendance.Delete)

	wages := group.Group("/wages", admin)
	wages.GET("", h.Wages.List)
	wages.GET("/statistics", h.Wages.Statistics)
	wages.GET("/outstanding", h.Wages.Outstanding)
	wages.GET("/export", h.Wages.Export)
	wages.GET("/:id", h.Wages.Get)
	wages.POST("/calculate", middleware.Audit(logger, "wage.calculated", "wage_period"), h.Wages.Calculate)
	wages.POST("/settle", middleware.Audit(logger, "wage.settled", "wage_period"), h.Wages.Settle)
	wages.POST("/:id/payments", middleware.Audit(logger, "wage.payment_applied", "wage_record"), h.Wages.ApplyPayment)
	wages.PUT("/:id", middleware.Audit(logger, "wage.updated", "wage_record"), h.Wages.Update)
	wages.DELETE("/:id", middleware.Audit(logger, "wage.deleted", "wage_record"), h.Wages.Delete)
}
