package routes

import (
	"net/http"
	"path/filepath"
	"strconv"

	"disclosure-rag/internal/config"
	"disclosure-rag/internal/queue"
	"disclosure-rag/models"
	"disclosure-rag/utils"

	"github.com/gin-gonic/gin"
)

func SetupDocumentRoutes(api *gin.RouterGroup, cfg *config.Config, svc *Services) {
	docs := api.Group("/documents")

	// Upload and ingest. async=true hands the file to the worker instead.
	docs.POST("", func(c *gin.Context) {
		path, err := savePDFUpload(c, cfg)
		if err != nil {
			respondWithUploadError(c, err)
			return
		}

		async, _ := strconv.ParseBool(c.PostForm("async"))
		if async {
			if svc.Queue == nil {
				utils.RespondWithUnavailable(c, "Background processing is not configured")
				return
			}
			categorize, _ := strconv.ParseBool(c.PostForm("categorize"))
			taskID, err := svc.Queue.EnqueueIngest(c.Request.Context(), queue.IngestPayload{
				Path:       path,
				Categorize: categorize,
				Strategy:   c.PostForm("strategy"),
			})
			if err != nil {
				utils.RespondWithInternalError(c, "Failed to queue document", gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusAccepted, models.UploadResponse{
				ID:       utils.DocumentID(filepath.Base(path)),
				Filename: filepath.Base(path),
				Status:   models.StatusPending,
				Message:  "Document queued for processing",
				TaskID:   taskID,
			})
			return
		}

		ctx, cancel := utils.WithLongTimeout(c.Request.Context())
		defer cancel()

		result, err := svc.Ingestor.Ingest(ctx, path)
		if err != nil {
			respondWithServiceError(c, "Failed to process document", err)
			return
		}
		c.JSON(http.StatusCreated, models.UploadResponse{
			ID:       result.DocumentID,
			Filename: result.Filename,
			Status:   models.StatusCompleted,
			Result:   result,
			Message:  "Document processed",
		})
	})

	docs.GET("", func(c *gin.Context) {
		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()

		list, err := svc.Store.ListDocuments(ctx)
		if err != nil {
			respondWithServiceError(c, "Failed to list documents", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"documents": list, "total": len(list)})
	})

	docs.GET("/:id", func(c *gin.Context) {
		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()

		doc, err := svc.Store.GetDocument(ctx, c.Param("id"))
		if err != nil {
			respondWithServiceError(c, "Failed to load document", err)
			return
		}
		if full, _ := strconv.ParseBool(c.Query("full_text")); !full {
			doc.FullText = ""
		}
		c.JSON(http.StatusOK, doc)
	})

	docs.GET("/:id/images", func(c *gin.Context) {
		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()

		if _, err := svc.Store.GetDocument(ctx, c.Param("id")); err != nil {
			respondWithServiceError(c, "Failed to load document", err)
			return
		}
		images, err := svc.Store.ImagesForDocument(ctx, c.Param("id"))
		if err != nil {
			respondWithServiceError(c, "Failed to load images", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"images": images, "total": len(images)})
	})

	docs.DELETE("/:id", func(c *gin.Context) {
		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()

		if err := svc.Store.DeleteDocument(ctx, c.Param("id")); err != nil {
			respondWithServiceError(c, "Failed to delete document", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Document deleted", "id": c.Param("id")})
	})
}
