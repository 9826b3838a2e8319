package routes

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"disclosure-rag/internal/config"
	"disclosure-rag/internal/queue"
	"disclosure-rag/services"
	"disclosure-rag/utils"

	"github.com/gin-gonic/gin"
)

// Enqueuer submits background pipeline work
type Enqueuer interface {
	EnqueueIngest(ctx context.Context, payload queue.IngestPayload) (string, error)
	EnqueueCategorize(ctx context.Context, payload queue.CategorizePayload) (string, error)
}

// Services bundles what the handlers call. Queue may be nil, in which case
// async requests are rejected.
type Services struct {
	Store       *services.StoreAdapter
	Ingestor    *services.Ingestor
	Categorizer *services.Categorizer
	Answerer    *services.Answerer
	Queue       Enqueuer
}

// SetupRoutes mounts the health check and every API group
func SetupRoutes(router *gin.Engine, cfg *config.Config, svc *Services) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"store":     svc.Store.Backend().Name(),
			"timestamp": time.Now(),
		})
	})

	api := router.Group("/api")
	SetupDocumentRoutes(api, cfg, svc)
	SetupLEAPRoutes(api, cfg, svc)
	SetupQARoutes(api, cfg, svc)
}

// respondWithServiceError maps pipeline errors onto HTTP statuses
func respondWithServiceError(c *gin.Context, message string, err error) {
	switch {
	case errors.Is(err, services.ErrInputNotFound), services.IsNotFound(err):
		utils.RespondWithNotFound(c, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		utils.RespondWithError(c, http.StatusGatewayTimeout, "timeout", message, gin.H{"error": err.Error()})
	default:
		utils.RespondWithInternalError(c, message, gin.H{"error": err.Error()})
	}
}

// uploadError is a client-side problem with the uploaded file
type uploadError struct {
	code    string
	message string
}

func (e *uploadError) Error() string { return e.message }

// savePDFUpload validates the multipart "pdf" (or "file") field and stores it
// under its original base name, so re-uploads keep the same document identity
func savePDFUpload(c *gin.Context, cfg *config.Config) (string, error) {
	if err := c.Request.ParseMultipartForm(32 << 20); err != nil {
		return "", &uploadError{"invalid_form", "Expected a multipart form"}
	}

	file, header, err := c.Request.FormFile("pdf")
	if err != nil {
		file, header, err = c.Request.FormFile("file")
	}
	if err != nil {
		return "", &uploadError{"no_file", "No PDF file provided"}
	}
	defer file.Close()

	ct := header.Header.Get("Content-Type")
	if !strings.Contains(ct, "pdf") && !strings.HasSuffix(strings.ToLower(header.Filename), ".pdf") {
		return "", &uploadError{"invalid_file_type", "Only PDF files are allowed"}
	}
	if header.Size > cfg.MaxFileSize {
		return "", &uploadError{"file_too_large", "File size exceeds maximum limit"}
	}

	magic := make([]byte, 4)
	if _, err := io.ReadFull(file, magic); err != nil || string(magic) != "%PDF" {
		return "", &uploadError{"invalid_pdf", "File does not appear to be a valid PDF"}
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind upload: %w", err)
	}

	uploadDir := filepath.Join(cfg.FileStorageDir, "pdfs")
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return "", fmt.Errorf("create upload directory: %w", err)
	}

	path := filepath.Join(uploadDir, filepath.Base(header.Filename))
	dst, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return "", fmt.Errorf("open destination: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, io.LimitReader(file, cfg.MaxFileSize)); err != nil {
		return "", fmt.Errorf("save upload: %w", err)
	}
	return path, nil
}

func respondWithUploadError(c *gin.Context, err error) {
	var ue *uploadError
	if errors.As(err, &ue) {
		utils.RespondWithError(c, http.StatusBadRequest, ue.code, ue.message, nil)
		return
	}
	utils.RespondWithInternalError(c, "Failed to save upload", gin.H{"error": err.Error()})
}
