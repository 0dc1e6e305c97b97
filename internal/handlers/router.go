package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/VipuDevAI/exam-engine/internal/services"
	"github.com/VipuDevAI/exam-engine/internal/utils"
)

type HandlerManager struct {
	attemptHandler *AttemptHandler
}

func NewHandlerManager(
	attemptService services.AttemptService,
	validator *utils.Validator,
	logger utils.Logger,
) *HandlerManager {
	return &HandlerManager{
		attemptHandler: NewAttemptHandler(attemptService, validator, logger),
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "exam-engine",
		})
	})

	v1 := router.Group("/api/v1")
	{
		attempts := v1.Group("/attempts")
		{
			attempts.POST("/start", hm.attemptHandler.StartAttempt)
			attempts.GET("", hm.attemptHandler.ListAttempts)
			attempts.GET("/active", hm.attemptHandler.GetActiveAttempt)
			attempts.GET("/:id", hm.attemptHandler.GetAttempt)
			attempts.POST("/:id/checkpoint", hm.attemptHandler.Checkpoint)
			attempts.POST("/:id/submit", hm.attemptHandler.SubmitAttempt)

			// Marking workflow
			attempts.POST("/:id/manual-score", hm.attemptHandler.RecordManualScore)
			attempts.POST("/:id/complete-marking", hm.attemptHandler.CompleteMarking)
		}
	}
}
