package routes

import (
	"fmt"
	"net/http"
	"strconv"

	"disclosure-rag/internal/config"
	"disclosure-rag/internal/queue"
	"disclosure-rag/models"
	"disclosure-rag/services"
	"disclosure-rag/utils"

	"github.com/gin-gonic/gin"
)

func SetupLEAPRoutes(api *gin.RouterGroup, cfg *config.Config, svc *Services) {
	leap := api.Group("/leap")

	// Categorize a stored document by id, or upload a PDF to ingest and
	// categorize in one call
	leap.POST("/categorize", func(c *gin.Context) {
		var req models.CategorizeRequest
		var uploaded string

		if c.ContentType() == "multipart/form-data" {
			path, err := savePDFUpload(c, cfg)
			if err != nil {
				respondWithUploadError(c, err)
				return
			}
			uploaded = path
			req.Strategy = c.PostForm("strategy")
			req.ExportXLSX, _ = strconv.ParseBool(c.PostForm("export_xlsx"))
		} else if err := c.ShouldBindJSON(&req); err != nil || req.DocumentID == "" {
			utils.RespondWithBadRequest(c, "document_id or a PDF upload is required", nil)
			return
		}

		if !validStrategy(req.Strategy) {
			utils.RespondWithBadRequest(c, fmt.Sprintf("unknown strategy %q", req.Strategy), gin.H{
				"allowed": []string{models.StrategyGemini, models.StrategyPerplexity, models.StrategyKeyword},
			})
			return
		}

		ctx, cancel := utils.WithLongTimeout(c.Request.Context())
		defer cancel()

		if uploaded != "" {
			result, err := svc.Ingestor.Ingest(ctx, uploaded)
			if err != nil {
				respondWithServiceError(c, "Failed to process document", err)
				return
			}
			req.DocumentID = result.DocumentID
		}

		resp, err := svc.Categorizer.CategorizeStored(ctx, svc.Store, req.DocumentID, req.Strategy, req.ExportXLSX)
		if err != nil {
			respondWithServiceError(c, "Failed to categorize document", err)
			return
		}
		c.JSON(http.StatusOK, resp)
	})

	leap.POST("/categorize/async", func(c *gin.Context) {
		var req models.CategorizeRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.DocumentID == "" {
			utils.RespondWithBadRequest(c, "document_id is required", nil)
			return
		}
		if !validStrategy(req.Strategy) {
			utils.RespondWithBadRequest(c, fmt.Sprintf("unknown strategy %q", req.Strategy), nil)
			return
		}
		if svc.Queue == nil {
			utils.RespondWithUnavailable(c, "Background processing is not configured")
			return
		}

		taskID, err := svc.Queue.EnqueueCategorize(c.Request.Context(), queue.CategorizePayload{
			DocumentID: req.DocumentID,
			Strategy:   req.Strategy,
			ExportXLSX: req.ExportXLSX,
		})
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to queue categorization", gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"task_id": taskID, "document_id": req.DocumentID})
	})

	// Streams the phase workbook without touching the output folder
	leap.GET("/:id/workbook", func(c *gin.Context) {
		strategy := c.Query("strategy")
		if !validStrategy(strategy) {
			utils.RespondWithBadRequest(c, fmt.Sprintf("unknown strategy %q", strategy), nil)
			return
		}

		ctx, cancel := utils.WithLongTimeout(c.Request.Context())
		defer cancel()

		doc, err := svc.Store.GetDocument(ctx, c.Param("id"))
		if err != nil {
			respondWithServiceError(c, "Failed to load document", err)
			return
		}

		pdfName := services.PDFName(doc.Filename)
		result := svc.Categorizer.Classify(ctx, doc.FullText, strategy)

		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s_LEAP.xlsx"`, pdfName))
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("X-LEAP-Status", result.Status)
		c.Status(http.StatusOK)
		if err := services.WritePhaseWorkbookTo(c.Writer, pdfName, result); err != nil {
			c.Error(err)
		}
	})
}

// validStrategy accepts the empty string, which selects the configured default
func validStrategy(s string) bool {
	switch s {
	case "", models.StrategyGemini, models.StrategyPerplexity, models.StrategyKeyword:
		return true
	}
	return false
}
