package handlers

import (
	"net/http"

	"live-class-backend/internal/middleware"
	"live-class-backend/internal/models"
	"live-class-backend/internal/services"

	"github.com/gin-gonic/gin"
)

// Router collects the handlers mounted by Register.
type Router struct {
	Auth     *services.AuthService
	Sessions *ClassSessionHandler
	Question *QuestionHandler
	Board    *BoardHandler
	Login    *AuthHandler
}

// Register mounts the API and websocket routes on r.
func (rt *Router) Register(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, MessageResponse{Message: "ok"})
	})

	optional := middleware.OptionalAuth(rt.Auth)
	jwt := middleware.JWTAuth(rt.Auth)
	teacher := middleware.RequireRole(models.RoleTeacher)
	student := middleware.RequireRole(models.RoleStudent)

	r.GET("/ws/class-sessions/:id/events", optional, rt.Board.Events)
	r.GET("/ws/class-sessions/:id/view", optional, rt.Board.View)

	api := r.Group("/api/v1")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", rt.Login.Register)
			auth.POST("/login", rt.Login.Login)
			auth.GET("/me", jwt, rt.Login.Me)
		}

		sessions := api.Group("/class-sessions")
		{
			sessions.POST("", jwt, teacher, rt.Sessions.Start)
			sessions.GET("", jwt, teacher, rt.Sessions.ListOwned)
			sessions.POST("/join", jwt, rt.Sessions.Join)
			sessions.GET("/:id", rt.Sessions.Get)
			sessions.POST("/:id/end", jwt, teacher, rt.Sessions.End)
			sessions.GET("/:id/snapshot", optional, rt.Board.Snapshot)

			sessions.POST("/:id/questions", jwt, teacher, rt.Question.Publish)
			sessions.GET("/:id/questions/current", optional, rt.Question.Current)
			sessions.GET("/:id/questions/:qid/submissions", optional, rt.Question.ListSubmissions)
			sessions.PUT("/:id/questions/:qid/submission", jwt, student, rt.Question.Submit)
		}
	}
}
