package handlers

import (
	"net/http"

	"live-class-backend/internal/middleware"
	"live-class-backend/internal/services"

	"github.com/gin-gonic/gin"
)

type ClassSessionHandler struct {
	sessions *services.SessionRegistry
}

func NewClassSessionHandler(sessions *services.SessionRegistry) *ClassSessionHandler {
	return &ClassSessionHandler{sessions: sessions}
}

type JoinRequest struct {
	Code string `json:"code" binding:"required" example:"042917"`
}

// PublicSession is what anyone holding a session id may see.
type PublicSession struct {
	ID     string `json:"id" example:"5b0c4a4e-8a3c-4f2e-9d1a-0b6c1f7e2a11"`
	Code   string `json:"code" example:"042917"`
	Active bool   `json:"active" example:"true"`
}

// Start godoc
// @Summary      Start a class session
// @Description  Open a new active session with a fresh six digit join code
// @Tags         class-sessions
// @Produce      json
// @Security     BearerAuth
// @Success      201 {object} ClassSession
// @Failure      503 {object} ErrorResponse
// @Router       /api/v1/class-sessions [post]
func (h *ClassSessionHandler) Start(c *gin.Context) {
	session, err := h.sessions.Start(c.Request.Context(), c.GetString(middleware.ContextUserID))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

// ListOwned godoc
// @Summary      List own sessions
// @Description  Every session of the calling teacher, ended ones included, newest first
// @Tags         class-sessions
// @Produce      json
// @Security     BearerAuth
// @Success      200 {array} ClassSession
// @Router       /api/v1/class-sessions [get]
func (h *ClassSessionHandler) ListOwned(c *gin.Context) {
	sessions, err := h.sessions.ListOwned(c.Request.Context(), c.GetString(middleware.ContextUserID))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessions)
}

// Join godoc
// @Summary      Join by code
// @Description  Resolve the active session holding the join code
// @Tags         class-sessions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body JoinRequest true "Join code"
// @Success      200 {object} PublicSession
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /api/v1/class-sessions/join [post]
func (h *ClassSessionHandler) Join(c *gin.Context) {
	var req JoinRequest
	if !bindJSON(c, &req) {
		return
	}
	session, err := h.sessions.Join(c.Request.Context(), req.Code)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, PublicSession{ID: session.ID, Code: session.Code, Active: session.Active})
}

// Get godoc
// @Summary      Get a session
// @Tags         class-sessions
// @Produce      json
// @Param        id path string true "Session ID"
// @Success      200 {object} PublicSession
// @Failure      404 {object} ErrorResponse
// @Router       /api/v1/class-sessions/{id} [get]
func (h *ClassSessionHandler) Get(c *gin.Context) {
	session, err := h.sessions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, PublicSession{ID: session.ID, Code: session.Code, Active: session.Active})
}

// End godoc
// @Summary      End a session
// @Description  Deactivate the session; its code may be reused afterwards
// @Tags         class-sessions
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Session ID"
// @Success      200 {object} ClassSession
// @Failure      403 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /api/v1/class-sessions/{id}/end [post]
func (h *ClassSessionHandler) End(c *gin.Context) {
	session, err := h.sessions.End(c.Request.Context(), c.Param("id"), c.GetString(middleware.ContextUserID))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}
