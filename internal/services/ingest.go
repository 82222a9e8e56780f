package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Lllllllleong/waterqualityflow/internal/extraction"
	"github.com/Lllllllleong/waterqualityflow/internal/models"
	"golang.org/x/sync/errgroup"
)

// GCSEvent is the payload of a Cloud Storage object-finalized event.
type GCSEvent struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}

// RawStore issues read access to stored PDFs.
type RawStore interface {
	SignedReadURL(name string, ttl time.Duration) (string, error)
}

// Analyzer turns a readable document URL into the intermediate representation.
type Analyzer interface {
	Analyze(ctx context.Context, documentURL string) (*models.IntermediateDocument, error)
}

// Normalizer extracts monitoring-event drafts from the intermediate representation.
type Normalizer interface {
	Normalize(ctx context.Context, doc *models.IntermediateDocument) ([]models.MonitoringDraft, error)
}

// Recorder persists drafts as monitoring events.
type Recorder interface {
	Save(ctx context.Context, drafts []models.MonitoringDraft, sourceDocument string) ([]string, error)
}

// IngestFunction runs one stored PDF through layout analysis, extraction and persistence.
type IngestFunction struct {
	raw        RawStore
	analyzer   Analyzer
	normalizer Normalizer
	recorder   Recorder
	urlTTL     time.Duration
	logger     *slog.Logger
}

func NewIngestFunction(raw RawStore, analyzer Analyzer, normalizer Normalizer, recorder Recorder, urlTTL time.Duration, logger *slog.Logger) *IngestFunction {
	if logger == nil {
		logger = slog.Default()
	}
	if urlTTL <= 0 {
		urlTTL = time.Hour
	}
	return &IngestFunction{
		raw:        raw,
		analyzer:   analyzer,
		normalizer: normalizer,
		recorder:   recorder,
		urlTTL:     urlTTL,
		logger:     logger,
	}
}

// NewIngest wires an IngestFunction from the platform's clients.
func NewIngest(ctx context.Context, p *Platform) (*IngestFunction, error) {
	raw, err := p.RawStore(ctx)
	if err != nil {
		return nil, err
	}
	analyzer, err := p.Analyzer(ctx)
	if err != nil {
		return nil, err
	}
	vertex, err := p.Vertex(ctx)
	if err != nil {
		return nil, err
	}
	st, err := p.Store(ctx)
	if err != nil {
		return nil, err
	}
	engine := extraction.NewEngine(vertex.ExtractionModel, p.Logger)
	return NewIngestFunction(raw, analyzer, engine, st, p.Config.SignedURLTTL, p.Logger), nil
}

// Process ingests one object. Errors from any stage are returned unchanged in kind;
// on a partial save the response still lists the ids that were written.
func (f *IngestFunction) Process(ctx context.Context, objectName string) (*models.IngestResponse, error) {
	logCtx := f.logger.With("sourceDocument", objectName)
	logCtx.Info("Starting ingestion.")

	url, err := f.raw.SignedReadURL(objectName, f.urlTTL)
	if err != nil {
		logCtx.Error("Failed to sign read URL", "error", err)
		return nil, fmt.Errorf("sign read URL for %s: %w", objectName, err)
	}

	doc, err := f.analyzer.Analyze(ctx, url)
	if err != nil {
		logCtx.Error("Layout extraction failed", "error", err)
		return nil, fmt.Errorf("analyze %s: %w", objectName, err)
	}
	logCtx.Info("Layout extracted.", "pages", doc.Pages, "tables", len(doc.Tables), "textLength", len(doc.Text))

	drafts, err := f.normalizer.Normalize(ctx, doc)
	if err != nil {
		logCtx.Error("Structured extraction failed", "error", err)
		return nil, fmt.Errorf("normalize %s: %w", objectName, err)
	}
	logCtx.Info("Monitoring events extracted.", "count", len(drafts))

	res := &models.IngestResponse{
		Status:         models.IngestOK,
		SourceDocument: objectName,
		Pages:          doc.Pages,
		Tables:         len(doc.Tables),
	}
	ids, err := f.recorder.Save(ctx, drafts, objectName)
	res.RecordIDs = ids
	if err != nil {
		res.Status = models.IngestFailed
		if len(ids) > 0 {
			res.Status = models.IngestPartial
		}
		return res, fmt.Errorf("save %s: %w", objectName, err)
	}

	logCtx.Info("Ingestion complete.", "recordIds", ids)
	return res, nil
}

// IngestAll processes names with at most concurrency ingestions in flight. A failed
// document is logged and skipped. Results keep the input order; skipped documents
// have a nil entry.
func (f *IngestFunction) IngestAll(ctx context.Context, names []string, concurrency int) ([]*models.IngestResponse, int) {
	if concurrency < 1 {
		concurrency = 1
	}
	results := make([]*models.IngestResponse, len(names))
	var (
		mu     sync.Mutex
		failed int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, name := range names {
		g.Go(func() error {
			res, err := f.Process(gctx, name)
			results[i] = res
			if err != nil {
				f.logger.Warn("Skipping document after failure", "sourceDocument", name, "error", err)
				mu.Lock()
				failed++
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return results, failed
}
