package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"disclosure-rag/internal/config"
	"disclosure-rag/internal/logger"
	"disclosure-rag/utils"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const pdfMimeType = "application/pdf"

// DriveFile is a PDF waiting in the Drive input folder
type DriveFile struct {
	ID       string
	Name     string
	Checksum string
}

// revision changes whenever the file content does
func (f DriveFile) revision() string {
	return f.ID + ":" + f.Checksum
}

// DriveSource lists and fetches input PDFs
type DriveSource interface {
	ListInputPDFs(ctx context.Context) ([]DriveFile, error)
	Download(ctx context.Context, file DriveFile, dir string) (string, error)
}

// DriveSync moves input PDFs from one Drive folder and artifacts to another
type DriveSync struct {
	service        *drive.Service
	inputFolderID  string
	outputFolderID string
}

var _ DriveSource = (*DriveSync)(nil)

func NewDriveSync(ctx context.Context, cfg *config.Config) (*DriveSync, error) {
	if !cfg.DriveEnabled() {
		return nil, fmt.Errorf("GOOGLE_CREDENTIALS_FILE and DRIVE_INPUT_FOLDER_ID are required for Drive sync")
	}

	service, err := drive.NewService(ctx,
		option.WithCredentialsFile(cfg.GoogleCredentialsFile),
		option.WithScopes(drive.DriveScope),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Drive client: %w", err)
	}

	return &DriveSync{
		service:        service,
		inputFolderID:  cfg.DriveInputFolderID,
		outputFolderID: cfg.DriveOutputFolderID,
	}, nil
}

// ListInputPDFs returns every non-trashed PDF in the input folder
func (d *DriveSync) ListInputPDFs(ctx context.Context) ([]DriveFile, error) {
	query := fmt.Sprintf("'%s' in parents and mimeType='%s' and trashed=false", d.inputFolderID, pdfMimeType)

	var files []DriveFile
	err := d.service.Files.List().
		Q(query).
		Fields("nextPageToken, files(id, name, md5Checksum)").
		PageSize(100).
		Pages(ctx, func(page *drive.FileList) error {
			for _, f := range page.Files {
				files = append(files, DriveFile{ID: f.Id, Name: f.Name, Checksum: f.Md5Checksum})
			}
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("list Drive folder %s: %w", d.inputFolderID, err)
	}
	return files, nil
}

// Download saves the file into dir under its Drive name
func (d *DriveSync) Download(ctx context.Context, file DriveFile, dir string) (string, error) {
	resp, err := d.service.Files.Get(file.ID).Context(ctx).Download()
	if err != nil {
		return "", fmt.Errorf("download %s: %w", file.Name, err)
	}
	defer resp.Body.Close()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create download folder: %w", err)
	}
	path := filepath.Join(dir, filepath.Base(file.Name))
	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return "", fmt.Errorf("save %s: %w", file.Name, err)
	}
	return path, nil
}

// UploadArtifacts copies local files into the output folder. Missing output
// folder configuration makes this a no-op.
func (d *DriveSync) UploadArtifacts(ctx context.Context, paths []string) error {
	if d.outputFolderID == "" {
		return nil
	}
	for _, path := range paths {
		if err := d.upload(ctx, path); err != nil {
			return err
		}
	}
	return nil
}

func (d *DriveSync) upload(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	meta := &drive.File{Name: filepath.Base(path), Parents: []string{d.outputFolderID}}
	created, err := d.service.Files.Create(meta).Media(f).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("upload %s: %w", path, err)
	}
	logger.Info("Uploaded artifact to Drive", "file", meta.Name, "drive_id", created.Id)
	return nil
}

// DrivePoller hands each new or changed Drive PDF to a handler once
type DrivePoller struct {
	source      DriveSource
	downloadDir string
	handle      func(ctx context.Context, path string) error

	mu   sync.Mutex
	seen map[string]bool
}

func NewDrivePoller(source DriveSource, downloadDir string, handle func(ctx context.Context, path string) error) *DrivePoller {
	return &DrivePoller{
		source:      source,
		downloadDir: downloadDir,
		handle:      handle,
		seen:        make(map[string]bool),
	}
}

// Poll downloads and handles unseen files and returns how many were handled.
// A file whose download or handler fails is retried on the next poll.
func (p *DrivePoller) Poll(ctx context.Context) (int, error) {
	files, err := p.source.ListInputPDFs(ctx)
	if err != nil {
		return 0, err
	}

	handled := 0
	for _, file := range files {
		p.mu.Lock()
		done := p.seen[file.revision()]
		p.mu.Unlock()
		if done {
			continue
		}

		path, err := p.download(ctx, file)
		if err != nil {
			logger.Warn("Drive download failed", "file", file.Name, "error", err)
			continue
		}
		if err := p.handle(ctx, path); err != nil {
			logger.Warn("Drive file not handled", "file", file.Name, "error", err)
			continue
		}

		p.mu.Lock()
		p.seen[file.revision()] = true
		p.mu.Unlock()
		handled++
	}

	if handled > 0 {
		logger.Info("Drive poll finished", "handled", handled, "listed", len(files))
	}
	return handled, nil
}

func (p *DrivePoller) download(ctx context.Context, file DriveFile) (string, error) {
	ctx, cancel := utils.WithLongTimeout(ctx)
	defer cancel()
	return p.source.Download(ctx, file, p.downloadDir)
}

// Schedule registers the poll on s
func (p *DrivePoller) Schedule(s *Scheduler, interval time.Duration) error {
	return s.Every("drive-poll", interval, func(ctx context.Context) error {
		_, err := p.Poll(ctx)
		return err
	})
}
