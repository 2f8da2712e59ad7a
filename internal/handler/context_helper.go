package handler

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutoring-ledger-api/internal/middleware"
	"github.com/noah-isme/tutoring-ledger-api/internal/models"
	appErrors "github.com/noah-isme/tutoring-ledger-api/pkg/errors"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		return nil
	}
	return claims
}

// actorID is the user id recorded as actor or payer on mutations.
func actorID(c *gin.Context) string {
	if claims := claimsFromContext(c); claims != nil {
		return claims.UserID
	}
	return ""
}

func lessonParam(c *gin.Context) (int, error) {
	n, err := strconv.Atoi(c.Param("lesson"))
	if err != nil || n < 1 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "lesson must be a positive integer")
	}
	return n, nil
}

func optionalInt(c *gin.Context, key string) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, appErrors.Clone(appErrors.ErrValidation, key+" must be an integer")
	}
	return v, nil
}

// wageFilterFromQuery reads teacherId, classId, month, year, status, page and
// pageSize.
func wageFilterFromQuery(c *gin.Context) (models.WageFilter, error) {
	filter := models.WageFilter{
		TeacherID: strings.TrimSpace(c.Query("teacherId")),
		ClassID:   strings.TrimSpace(c.Query("classId")),
	}
	var err error
	if filter.Month, err = optionalInt(c, "month"); err != nil {
		return filter, err
	}
	if filter.Month < 0 || filter.Month > 12 {
		return filter, appErrors.Clone(appErrors.ErrValidation, "month must be between 1 and 12")
	}
	if filter.Year, err = optionalInt(c, "year"); err != nil {
		return filter, err
	}
	if filter.Page, err = optionalInt(c, "page"); err != nil {
		return filter, err
	}
	if filter.PageSize, err = optionalInt(c, "pageSize"); err != nil {
		return filter, err
	}
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status := models.PaymentStatus(strings.ToLower(raw))
		if !status.Valid() {
			return filter, appErrors.Clone(appErrors.ErrValidation, "status must be unpaid, partial or full")
		}
		filter.Status = &status
	}
	return filter, nil
}
