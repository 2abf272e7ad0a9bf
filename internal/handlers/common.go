package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"live-class-backend/internal/live"
	"live-class-backend/internal/middleware"
	"live-class-backend/internal/models"
	"live-class-backend/internal/services"

	"github.com/gin-gonic/gin"
)

type ErrorResponse struct {
	Error string `json:"error" example:"something went wrong"`
}

type MessageResponse struct {
	Message string `json:"message" example:"operation successful"`
}

// Type aliases so swag can resolve models in annotations.
type ClassSession = models.ClassSession
type ClassQuestion = models.ClassQuestion
type ClassSubmission = models.ClassSubmission
type LiveView = live.View

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, services.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrTransport):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("http: request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
	}
	c.JSON(status, ErrorResponse{Error: err.Error()})
}

// bindJSON decodes and validates the body, answering 400 on failure.
func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return false
	}
	return true
}

func isStudent(c *gin.Context) bool {
	return c.GetString(middleware.ContextRole) == models.RoleStudent
}

// withoutAnswer returns a copy of q with the correct answer cleared.
func withoutAnswer(q *models.ClassQuestion) *models.ClassQuestion {
	out := *q
	out.CorrectAnswer = ""
	return &out
}

func ownRows(subs []models.ClassSubmission, studentID string) []models.ClassSubmission {
	own := []models.ClassSubmission{}
	for _, s := range subs {
		if s.StudentID == studentID {
			own = append(own, s)
		}
	}
	return own
}
