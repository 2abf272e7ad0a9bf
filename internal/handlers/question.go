package handlers

import (
	"net/http"

	"live-class-backend/internal/middleware"
	"live-class-backend/internal/services"

	"github.com/gin-gonic/gin"
)

type QuestionHandler struct {
	questions   *services.QuestionChannel
	submissions *services.SubmissionStore
}

func NewQuestionHandler(questions *services.QuestionChannel, submissions *services.SubmissionStore) *QuestionHandler {
	return &QuestionHandler{questions: questions, submissions: submissions}
}

type PublishRequest struct {
	Text          string `json:"text" binding:"required" example:"7 * 6 = ?"`
	CorrectAnswer string `json:"correct_answer" binding:"required" example:"42"`
}

type SubmitRequest struct {
	Answer string `json:"answer" binding:"required" example:"42"`
}

// Publish godoc
// @Summary      Publish a question
// @Description  The new question replaces the current one for every viewer
// @Tags         questions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Session ID"
// @Param        request body PublishRequest true "Question"
// @Success      201 {object} ClassQuestion
// @Failure      400 {object} ErrorResponse
// @Failure      403 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /api/v1/class-sessions/{id}/questions [post]
func (h *QuestionHandler) Publish(c *gin.Context) {
	var req PublishRequest
	if !bindJSON(c, &req) {
		return
	}
	q, err := h.questions.Publish(c.Request.Context(), c.Param("id"), c.GetString(middleware.ContextUserID), req.Text, req.CorrectAnswer)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, q)
}

// Current godoc
// @Summary      Current question
// @Description  Latest question of the session; null when none was published. Students get no correct answer
// @Tags         questions
// @Produce      json
// @Param        id path string true "Session ID"
// @Success      200 {object} ClassQuestion
// @Failure      404 {object} ErrorResponse
// @Router       /api/v1/class-sessions/{id}/questions/current [get]
func (h *QuestionHandler) Current(c *gin.Context) {
	q, err := h.questions.Current(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if q != nil && isStudent(c) {
		q = withoutAnswer(q)
	}
	c.JSON(http.StatusOK, q)
}

// ListSubmissions godoc
// @Summary      Submissions of a question
// @Description  Students see only their own row
// @Tags         submissions
// @Produce      json
// @Param        id path string true "Session ID"
// @Param        qid path string true "Question ID"
// @Success      200 {array} ClassSubmission
// @Router       /api/v1/class-sessions/{id}/questions/{qid}/submissions [get]
func (h *QuestionHandler) ListSubmissions(c *gin.Context) {
	subs, err := h.submissions.List(c.Request.Context(), c.Param("id"), c.Param("qid"))
	if err != nil {
		writeError(c, err)
		return
	}
	if isStudent(c) {
		subs = ownRows(subs, c.GetString(middleware.ContextUserID))
	}
	c.JSON(http.StatusOK, subs)
}

// Submit godoc
// @Summary      Submit an answer
// @Description  Insert or overwrite the calling student's answer to the question
// @Tags         submissions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Session ID"
// @Param        qid path string true "Question ID"
// @Param        request body SubmitRequest true "Answer"
// @Success      200 {object} ClassSubmission
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /api/v1/class-sessions/{id}/questions/{qid}/submission [put]
func (h *QuestionHandler) Submit(c *gin.Context) {
	var req SubmitRequest
	if !bindJSON(c, &req) {
		return
	}
	sub, err := h.submissions.Submit(c.Request.Context(), c.Param("id"), c.Param("qid"), c.GetString(middleware.ContextUserID), req.Answer)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}
