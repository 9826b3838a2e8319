package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"disclosure-rag/internal/config"
	"disclosure-rag/internal/logger"
	"disclosure-rag/services"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	TaskIngestDocument     = "document:ingest"
	TaskCategorizeDocument = "document:categorize"
)

// IngestPayload asks the worker to ingest a PDF already on the worker's disk.
// When Categorize is set the phase files are written afterwards.
type IngestPayload struct {
	RunID      string `json:"run_id"`
	Path       string `json:"path"`
	Categorize bool   `json:"categorize,omitempty"`
	Strategy   string `json:"strategy,omitempty"`
	ExportXLSX bool   `json:"export_xlsx,omitempty"`
}

// CategorizePayload asks the worker to categorize a stored document
type CategorizePayload struct {
	RunID      string `json:"run_id"`
	DocumentID string `json:"document_id"`
	Strategy   string `json:"strategy,omitempty"`
	ExportXLSX bool   `json:"export_xlsx,omitempty"`
}

func NewIngestTask(payload IngestPayload) (*asynq.Task, error) {
	if payload.RunID == "" {
		payload.RunID = uuid.New().String()
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskIngestDocument,
		data,
		asynq.TaskID(payload.RunID),
		asynq.MaxRetry(3),
		asynq.Timeout(30*time.Minute),
		asynq.Queue("critical"),
	), nil
}

func NewCategorizeTask(payload CategorizePayload) (*asynq.Task, error) {
	if payload.RunID == "" {
		payload.RunID = uuid.New().String()
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskCategorizeDocument,
		data,
		asynq.TaskID(payload.RunID),
		asynq.MaxRetry(2),
		asynq.Timeout(10*time.Minute),
		asynq.Queue("default"),
	), nil
}

// RedisConnOpt maps the shared Redis settings onto asynq's connection options
func RedisConnOpt(cfg *config.Config) (asynq.RedisClientOpt, error) {
	opt, err := config.RedisOptions(cfg)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}
	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Username:  opt.Username,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: opt.TLSConfig,
	}, nil
}

// Enqueuer submits pipeline tasks
type Enqueuer struct {
	client *asynq.Client
}

func NewEnqueuer(opt asynq.RedisConnOpt) *Enqueuer {
	return &Enqueuer{client: asynq.NewClient(opt)}
}

// EnqueueIngest returns the task id
func (e *Enqueuer) EnqueueIngest(ctx context.Context, payload IngestPayload) (string, error) {
	task, err := NewIngestTask(payload)
	if err != nil {
		return "", err
	}
	info, err := e.client.EnqueueContext(ctx, task)
	if err != nil {
		return "", fmt.Errorf("enqueue %s: %w", TaskIngestDocument, err)
	}
	return info.ID, nil
}

func (e *Enqueuer) EnqueueCategorize(ctx context.Context, payload CategorizePayload) (string, error) {
	task, err := NewCategorizeTask(payload)
	if err != nil {
		return "", err
	}
	info, err := e.client.EnqueueContext(ctx, task)
	if err != nil {
		return "", fmt.Errorf("enqueue %s: %w", TaskCategorizeDocument, err)
	}
	return info.ID, nil
}

func (e *Enqueuer) Close() error {
	return e.client.Close()
}

// ArtifactUploader publishes generated files, e.g. to Drive
type ArtifactUploader interface {
	UploadArtifacts(ctx context.Context, paths []string) error
}

// TaskProcessor handles pipeline tasks
type TaskProcessor struct {
	ingestor    *services.Ingestor
	categorizer *services.Categorizer
	store       *services.StoreAdapter
	uploader    ArtifactUploader
}

// NewTaskProcessor builds the handlers. uploader may be nil.
func NewTaskProcessor(ingestor *services.Ingestor, categorizer *services.Categorizer, store *services.StoreAdapter, uploader ArtifactUploader) *TaskProcessor {
	return &TaskProcessor{
		ingestor:    ingestor,
		categorizer: categorizer,
		store:       store,
		uploader:    uploader,
	}
}

func (p *TaskProcessor) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskIngestDocument, p.ProcessIngest)
	mux.HandleFunc(TaskCategorizeDocument, p.ProcessCategorize)
}

// ProcessIngest retries store failures. Missing input and bad payloads are final.
func (p *TaskProcessor) ProcessIngest(ctx context.Context, t *asynq.Task) error {
	var payload IngestPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}

	logger.Info("Processing ingest task", "run_id", payload.RunID, "path", payload.Path)

	result, err := p.ingestor.Ingest(ctx, payload.Path)
	if err != nil {
		if errors.Is(err, services.ErrInputNotFound) {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}

	artifacts := make([]string, 0, len(result.Artifacts)+4)
	if path, ok := result.Artifacts["full_text"]; ok {
		artifacts = append(artifacts, path)
	}

	if payload.Categorize {
		resp, err := p.categorizer.CategorizeStored(ctx, p.store, result.DocumentID, payload.Strategy, payload.ExportXLSX)
		if err != nil {
			return fmt.Errorf("categorize %s: %w", result.Filename, err)
		}
		for _, path := range resp.Files {
			artifacts = append(artifacts, path)
		}
		if resp.WorkbookPath != "" {
			artifacts = append(artifacts, resp.WorkbookPath)
		}
	}

	p.upload(ctx, payload.RunID, artifacts)
	return nil
}

func (p *TaskProcessor) ProcessCategorize(ctx context.Context, t *asynq.Task) error {
	var payload CategorizePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}

	logger.Info("Processing categorize task", "run_id", payload.RunID, "document_id", payload.DocumentID)

	resp, err := p.categorizer.CategorizeStored(ctx, p.store, payload.DocumentID, payload.Strategy, payload.ExportXLSX)
	if err != nil {
		if services.IsNotFound(err) {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}

	artifacts := make([]string, 0, len(resp.Files)+1)
	for _, path := range resp.Files {
		artifacts = append(artifacts, path)
	}
	if resp.WorkbookPath != "" {
		artifacts = append(artifacts, resp.WorkbookPath)
	}
	p.upload(ctx, payload.RunID, artifacts)
	return nil
}

// upload failures are logged; the pipeline result is already stored
func (p *TaskProcessor) upload(ctx context.Context, runID string, paths []string) {
	if p.uploader == nil || len(paths) == 0 {
		return
	}
	if err := p.uploader.UploadArtifacts(ctx, paths); err != nil {
		logger.Warn("Artifact upload failed", "run_id", runID, "error", err)
	}
}
