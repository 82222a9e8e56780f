// Package layout submits stored PDFs to Document AI and flattens the processed
// pages, lines and tables into the intermediate document representation.
package layout

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/Lllllllleong/waterqualityflow/internal/models"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrExtraction marks documents the layout service could not read or does not support.
var ErrExtraction = errors.New("layout extraction failed")

const pdfMIMEType = "application/pdf"

// processor is the subset of the Document AI client the analyzer uses.
type processor interface {
	ProcessDocument(ctx context.Context, req *documentaipb.ProcessRequest, opts ...gax.CallOption) (*documentaipb.ProcessResponse, error)
}

// Analyzer runs the layout processor over one document at a time.
type Analyzer struct {
	client        processor
	processorName string
	httpClient    *http.Client
	timeout       time.Duration
	pageLimit     int
	logger        *slog.Logger
}

// NewAnalyzer builds an analyzer for the named processor. Each Analyze call,
// including fetching the document, is bounded by timeout.
func NewAnalyzer(client processor, processorName string, timeout time.Duration, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		client:        client,
		processorName: processorName,
		httpClient:    http.DefaultClient,
		timeout:       timeout,
		logger:        logger,
	}
}

// WithPageLimit makes Analyze split fetched documents longer than limit pages into
// several requests. Zero disables splitting.
func (a *Analyzer) WithPageLimit(limit int) *Analyzer {
	a.pageLimit = limit
	return a
}

// Analyze processes the document behind documentURL. A gs:// URI is handed to the
// service directly; any other URL (a signed read URL) is fetched and sent inline.
func (a *Analyzer) Analyze(ctx context.Context, documentURL string) (*models.IntermediateDocument, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	if strings.HasPrefix(documentURL, "gs://") {
		return a.process(ctx, &documentaipb.ProcessRequest{
			Name: a.processorName,
			Source: &documentaipb.ProcessRequest_GcsDocument{
				GcsDocument: &documentaipb.GcsDocument{GcsUri: documentURL, MimeType: pdfMIMEType},
			},
		})
	}

	content, err := a.fetch(ctx, documentURL)
	if err != nil {
		return nil, err
	}

	chunks := [][]byte{content}
	if a.pageLimit > 0 {
		if split, err := splitPDF(content, a.pageLimit); err != nil {
			// Let the service judge documents pdfcpu cannot read.
			a.logger.Warn("Could not split document, sending it whole", "error", err)
		} else {
			chunks = split
		}
	}

	parts := make([]*models.IntermediateDocument, 0, len(chunks))
	for i, chunk := range chunks {
		doc, err := a.process(ctx, &documentaipb.ProcessRequest{
			Name: a.processorName,
			Source: &documentaipb.ProcessRequest_RawDocument{
				RawDocument: &documentaipb.RawDocument{Content: chunk, MimeType: pdfMIMEType},
			},
		})
		if err != nil {
			if len(chunks) > 1 {
				return nil, fmt.Errorf("chunk %d of %d: %w", i+1, len(chunks), err)
			}
			return nil, err
		}
		parts = append(parts, doc)
	}
	return merge(parts), nil
}

func (a *Analyzer) process(ctx context.Context, req *documentaipb.ProcessRequest) (*models.IntermediateDocument, error) {
	start := time.Now()
	resp, err := a.client.ProcessDocument(ctx, req)
	if err != nil {
		a.logger.Error("Document AI processing failed", "error", err, "processor", a.processorName)
		return nil, classify(err)
	}

	doc := Flatten(resp.GetDocument())
	a.logger.Info("Layout extracted.",
		"pages", doc.Pages,
		"tables", len(doc.Tables),
		"elapsed", time.Since(start).String(),
	)
	return doc, nil
}

func (a *Analyzer) fetch(ctx context.Context, url string) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid document URL: %v", ErrExtraction, err)
	}
	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: document URL returned %s", ErrExtraction, resp.Status)
	}
	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read document body: %w", err)
	}
	if len(content) == 0 {
		return nil, fmt.Errorf("%w: document is empty", ErrExtraction)
	}
	return content, nil
}

// classify maps service rejections of the input onto ErrExtraction. Transport,
// quota and deadline failures are returned wrapped but unclassified.
func classify(err error) error {
	switch status.Code(err) {
	case codes.InvalidArgument, codes.FailedPrecondition, codes.NotFound, codes.OutOfRange:
		return fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	return fmt.Errorf("document AI process: %w", err)
}
