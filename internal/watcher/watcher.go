package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/Govindcoderr/Autonomous-Document-Processing-ERP-Sync-System/internal/invoice"
)

const (
	processedDir = "processed"
	failedDir    = "failed"
)

// contentTypes maps the accepted file extensions to the types the scanner expects
var contentTypes = map[string]string{
	".pdf":  "application/pdf",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".heic": "image/heic",
	".heif": "image/heif",
}

// Processor runs a file through the ingestion pipeline
type Processor interface {
	ProcessDocument(ctx context.Context, userID int64, filename string, data []byte, contentType string) (*invoice.ProcessResult, error)
}

// Config controls which folder is polled and on whose behalf
type Config struct {
	Dir      string
	UserID   int64
	Interval time.Duration
	// Settle skips files modified more recently than this, so partially copied files are left for the next scan
	Settle time.Duration
}

// Summary counts the outcome of one scan
type Summary struct {
	Processed int
	Failed    int
}

// Watcher polls an inbox folder and feeds new documents to the pipeline
type Watcher struct {
	processor Processor
	cfg       Config
	scheduler gocron.Scheduler
	now       func() time.Time
}

// New creates a Watcher and the processed and failed subfolders
func New(processor Processor, cfg Config) (*Watcher, error) {
	if cfg.Dir == "" {
		return nil, errors.New("watch directory is required")
	}
	if cfg.UserID == 0 {
		return nil, errors.New("watch user is required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}

	for _, dir := range []string{cfg.Dir, filepath.Join(cfg.Dir, processedDir), filepath.Join(cfg.Dir, failedDir)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("creating scheduler: %w", err)
	}

	return &Watcher{
		processor: processor,
		cfg:       cfg,
		scheduler: scheduler,
		now:       time.Now,
	}, nil
}

// Start schedules the scan job and runs the first scan immediately
func (w *Watcher) Start(ctx context.Context) error {
	_, err := w.scheduler.NewJob(
		gocron.DurationJob(w.cfg.Interval),
		gocron.NewTask(func() {
			if _, err := w.ScanOnce(ctx); err != nil {
				slog.Error("Inbox scan failed", "dir", w.cfg.Dir, "error", err)
			}
		}),
		gocron.WithName("inbox-scan"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("creating inbox scan job: %w", err)
	}

	slog.Info("Watching inbox", "dir", w.cfg.Dir, "interval", w.cfg.Interval, "user_id", w.cfg.UserID)
	w.scheduler.Start()
	return nil
}

// Stop waits for a running scan to finish and stops the scheduler
func (w *Watcher) Stop() error {
	return w.scheduler.Shutdown()
}

// ScanOnce processes every settled document in the inbox and moves it aside
func (w *Watcher) ScanOnce(ctx context.Context) (Summary, error) {
	var summary Summary

	entries, err := os.ReadDir(w.cfg.Dir)
	if err != nil {
		return summary, fmt.Errorf("reading inbox: %w", err)
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		if entry.IsDir() {
			continue
		}
		contentType, ok := contentTypes[strings.ToLower(filepath.Ext(entry.Name()))]
		if !ok {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			slog.Warn("Skipping unreadable file", "file", entry.Name(), "error", err)
			continue
		}
		if w.now().Sub(info.ModTime()) < w.cfg.Settle {
			continue
		}

		if w.process(ctx, entry.Name(), contentType) {
			summary.Processed++
		} else {
			summary.Failed++
		}
	}

	if summary.Processed+summary.Failed > 0 {
		slog.Info("Inbox scan finished", "processed", summary.Processed, "failed", summary.Failed)
	}
	return summary, nil
}

// process runs one file through the pipeline and reports whether it succeeded
func (w *Watcher) process(ctx context.Context, name, contentType string) bool {
	path := filepath.Join(w.cfg.Dir, name)
	slog.Info("New file detected", "file", path)

	data, err := os.ReadFile(path)
	if err == nil {
		var result *invoice.ProcessResult
		result, err = w.processor.ProcessDocument(ctx, w.cfg.UserID, name, data, contentType)
		if err == nil {
			slog.Info("Processed invoice", "file", name, "invoice_id", result.InvoiceID, "push_to_erp", result.PushToERP)
		}
	}

	dest := processedDir
	if err != nil {
		slog.Error("Error processing file", "file", name, "error", err)
		dest = failedDir
	}

	if moveErr := os.Rename(path, filepath.Join(w.cfg.Dir, dest, name)); moveErr != nil {
		slog.Error("Failed to move file", "file", name, "dest", dest, "error", moveErr)
	}
	return err == nil
}
