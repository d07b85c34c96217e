package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github/itish2003/rentalqa/models"
	"github/itish2003/rentalqa/services"
)

// Client-facing error messages. Internal details are only logged.
const (
	msgNoQuestion = "No question in the request"
	msgGeneric    = "Something went wrong. Please try again."
)

var httpLog = logrus.WithField("component", "http")

// RAGController handles the HTTP requests for the chat API. It depends on the
// RAGService to perform the actual business logic.
type RAGController struct {
	ragService services.RAGService
}

// NewRAGController is a constructor function that creates a new RAGController.
func NewRAGController(service services.RAGService) *RAGController {
	return &RAGController{
		ragService: service,
	}
}

// RegisterRoutes mounts the chat and stats endpoints on r.
func (c *RAGController) RegisterRoutes(r gin.IRouter) {
	r.POST("/api/chat", c.Chat)

	apiV1 := r.Group("/api/v1")
	{
		apiV1.POST("/chat", c.Chat)
		apiV1.GET("/stats", c.Stats)
	}
}

// Chat is the Gin handler for POST /api/chat. It answers one question using
// the history supplied by the client and returns aggregated sources.
func (c *RAGController) Chat(ctx *gin.Context) {
	var req models.AnswerRequest

	// Bind the request JSON to our AnswerRequest struct.
	if err := ctx.ShouldBindJSON(&req); err != nil {
		httpLog.Warnf("invalid chat request: %v", err)
		ctx.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body: " + err.Error()})
		return
	}

	result, err := c.ragService.Answer(ctx.Request.Context(), req.Question, req.History)
	if err != nil {
		if errors.Is(err, services.ErrEmptyQuestion) {
			ctx.JSON(http.StatusBadRequest, models.ErrorResponse{Error: msgNoQuestion})
			return
		}
		httpLog.WithField("history_turns", req.History.Len()).Errorf("answer failed: %v", err)
		ctx.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: msgGeneric})
		return
	}

	ctx.JSON(http.StatusOK, models.AnswerResponse{
		Text:            result.Text,
		SourceDocuments: services.Aggregate(result.SourceDocuments),
	})
}

// Stats is the Gin handler for GET /api/v1/stats.
func (c *RAGController) Stats(ctx *gin.Context) {
	stats, err := c.ragService.Stats(ctx.Request.Context())
	if err != nil {
		httpLog.Errorf("stats failed: %v", err)
		ctx.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: msgGeneric})
		return
	}
	ctx.JSON(http.StatusOK, stats)
}
