package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"live-class-backend/internal/live"
	"live-class-backend/internal/middleware"
	"live-class-backend/internal/models"
	"live-class-backend/internal/services"
	"live-class-backend/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// BoardHandler serves viewers of a session: the snapshot pull and the two
// websocket feeds.
type BoardHandler struct {
	sessions    *services.SessionRegistry
	questions   *services.QuestionChannel
	submissions *services.SubmissionStore
	feed        live.Source
	hub         *ws.Hub
}

func NewBoardHandler(sessions *services.SessionRegistry, questions *services.QuestionChannel, submissions *services.SubmissionStore, feed live.Source, hub *ws.Hub) *BoardHandler {
	return &BoardHandler{sessions: sessions, questions: questions, submissions: submissions, feed: feed, hub: hub}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// SnapshotResponse is the pull half of the resync protocol in one round trip.
type SnapshotResponse struct {
	Session     PublicSession            `json:"session"`
	Question    *models.ClassQuestion    `json:"question"`
	Submissions []models.ClassSubmission `json:"submissions"`
}

// Snapshot godoc
// @Summary      Board snapshot
// @Description  Session, current question and its submissions
// @Tags         board
// @Produce      json
// @Param        id path string true "Session ID"
// @Success      200 {object} SnapshotResponse
// @Failure      404 {object} ErrorResponse
// @Router       /api/v1/class-sessions/{id}/snapshot [get]
func (h *BoardHandler) Snapshot(c *gin.Context) {
	ctx := c.Request.Context()
	sessionID := c.Param("id")

	session, err := h.sessions.Get(ctx, sessionID)
	if err != nil {
		writeError(c, err)
		return
	}
	q, err := h.questions.Current(ctx, sessionID)
	if err != nil {
		writeError(c, err)
		return
	}
	resp := SnapshotResponse{
		Session:     PublicSession{ID: session.ID, Code: session.Code, Active: session.Active},
		Question:    q,
		Submissions: []models.ClassSubmission{},
	}
	if q != nil {
		subs, err := h.submissions.List(ctx, sessionID, q.ID)
		if err != nil {
			writeError(c, err)
			return
		}
		resp.Submissions = subs
	}
	if isStudent(c) {
		if resp.Question != nil {
			resp.Question = withoutAnswer(resp.Question)
		}
		resp.Submissions = ownRows(resp.Submissions, c.GetString(middleware.ContextUserID))
	}
	c.JSON(http.StatusOK, resp)
}

// Events godoc
// @Summary      Raw change feed
// @Description  WebSocket of row changes for the session. The first frame is "subscribed"; a "resync" frame means events may have been lost. Rows carry correct answers and every student's answer, so students use the view feed instead
// @Tags         websocket
// @Param        id path string true "Session ID"
// @Param        token query string false "JWT"
// @Failure      403 {object} ErrorResponse
// @Router       /ws/class-sessions/{id}/events [get]
func (h *BoardHandler) Events(c *gin.Context) {
	if isStudent(c) {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "students receive the view feed"})
		return
	}
	sessionID := c.Param("id")
	if _, err := h.sessions.Get(c.Request.Context(), sessionID); err != nil {
		writeError(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("ws: upgrade failed", "error", err)
		return
	}

	client, err := h.hub.AddConnection(sessionID, conn)
	if err != nil {
		conn.Close()
		return
	}
	defer h.hub.RemoveConnection(sessionID, client)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// View godoc
// @Summary      Live board view
// @Description  WebSocket pushing the aggregated board after every change. Students see only their own row and no correct answer
// @Tags         websocket
// @Param        id path string true "Session ID"
// @Param        token query string false "JWT"
// @Router       /ws/class-sessions/{id}/view [get]
func (h *BoardHandler) View(c *gin.Context) {
	sessionID := c.Param("id")
	if _, err := h.sessions.Get(c.Request.Context(), sessionID); err != nil {
		writeError(c, err)
		return
	}
	studentID := ""
	if isStudent(c) {
		studentID = c.GetString(middleware.ContextUserID)
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("ws: upgrade failed", "error", err)
		return
	}
	client := ws.NewClient(conn)
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	viewer := live.NewViewer(h.feed, sessionID, func(v live.View) {
		if studentID != "" {
			v = v.ForStudent(studentID)
		}
		if err := client.Send(ws.WSMessage{Type: ws.TypeView, Data: v}); err != nil {
			cancel()
		}
	})
	if err := viewer.Run(ctx); errors.Is(err, live.ErrSessionNotFound) {
		client.Send(ws.WSMessage{Type: ws.TypeError, Data: ErrorResponse{Error: "session not found"}})
	}
}
