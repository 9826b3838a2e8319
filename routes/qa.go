package routes

import (
	"net/http"

	"disclosure-rag/internal/config"
	"disclosure-rag/models"
	"disclosure-rag/utils"

	"github.com/gin-gonic/gin"
)

func SetupQARoutes(api *gin.RouterGroup, cfg *config.Config, svc *Services) {
	qa := api.Group("/qa")

	// Always 200 with a well-formed answer; generation failures surface in
	// the answer text and a low confidence
	qa.POST("/ask", func(c *gin.Context) {
		var req models.AskRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithError(c, http.StatusBadRequest, "invalid_input", "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		maxChunks := req.MaxChunks
		if maxChunks <= 0 || maxChunks > 20 {
			maxChunks = cfg.QAMaxChunks
		}

		answer := svc.Answerer.Answer(c.Request.Context(), req.Question, maxChunks)
		c.JSON(http.StatusOK, answer)
	})
}
