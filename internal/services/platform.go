package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/storage"
	"github.com/Lllllllleong/waterqualityflow/internal/config"
	"github.com/Lllllllleong/waterqualityflow/internal/gcp"
	"github.com/Lllllllleong/waterqualityflow/internal/layout"
	"github.com/Lllllllleong/waterqualityflow/internal/store"
)

// Platform owns the clients for every external service. Each client is created on
// first use and kept for the life of the process.
type Platform struct {
	Config *config.Config
	Logger *slog.Logger

	storageClient *storage.Client
	rawStore      *gcp.RawStore
	docAIClient   *documentai.DocumentProcessorClient
	analyzer      *layout.Analyzer
	vertexClient  *gcp.VertexClient
	store         *store.Store
}

func NewPlatform(cfg *config.Config, logger *slog.Logger) *Platform {
	if logger == nil {
		logger = slog.Default()
	}
	return &Platform{Config: cfg, Logger: logger}
}

// RawStore returns the bucket adapter for raw PDFs.
func (p *Platform) RawStore(ctx context.Context) (*gcp.RawStore, error) {
	if p.rawStore != nil {
		return p.rawStore, nil
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	raw, err := gcp.NewRawStore(client, p.Config.RawPDFBucket, p.Logger)
	if err != nil {
		client.Close()
		return nil, err
	}
	p.storageClient, p.rawStore = client, raw
	return raw, nil
}

// Analyzer returns the Document AI layout analyzer.
func (p *Platform) Analyzer(ctx context.Context) (*layout.Analyzer, error) {
	if p.analyzer != nil {
		return p.analyzer, nil
	}
	if err := p.Config.RequireLayout(); err != nil {
		return nil, err
	}
	client, err := gcp.NewDocumentAIClient(ctx, p.Config.DocumentAILocation)
	if err != nil {
		return nil, err
	}
	name := gcp.ProcessorName(p.Config.ProjectID, p.Config.DocumentAILocation, p.Config.DocumentAIProcessorID)
	p.docAIClient = client
	p.analyzer = layout.NewAnalyzer(client, name, p.Config.LayoutTimeout, p.Logger).WithPageLimit(p.Config.LayoutPageLimit)
	return p.analyzer, nil
}

// DocumentAI returns the raw processor client, creating the analyzer if needed.
func (p *Platform) DocumentAI(ctx context.Context) (*documentai.DocumentProcessorClient, error) {
	if _, err := p.Analyzer(ctx); err != nil {
		return nil, err
	}
	return p.docAIClient, nil
}

// Vertex returns the client holding the configured Gemini models.
func (p *Platform) Vertex(ctx context.Context) (*gcp.VertexClient, error) {
	if p.vertexClient != nil {
		return p.vertexClient, nil
	}
	client, err := gcp.NewVertexClient(ctx, p.Config.ProjectID, p.Config.VertexAIRegion, p.Config.GeminiModel)
	if err != nil {
		return nil, fmt.Errorf("failed to create vertex client: %w", err)
	}
	p.vertexClient = client
	return client, nil
}

// Store returns the persistence adapter over the configured backend.
func (p *Platform) Store(ctx context.Context) (*store.Store, error) {
	if p.store != nil {
		return p.store, nil
	}
	var backend store.Backend
	switch p.Config.StoreBackend {
	case config.BackendBadger:
		b, err := store.OpenBadger(p.Config.BadgerPath)
		if err != nil {
			return nil, err
		}
		backend = b
	default:
		client, err := gcp.NewFirestoreClient(ctx, p.Config.ProjectID, p.Config.FirestoreDatabase)
		if err != nil {
			return nil, err
		}
		backend = store.NewFirestoreBackend(client, p.Config.FirestorePartitionCollection, p.Config.FirestoreCollection, p.Logger)
	}
	p.store = store.New(backend, p.Config.QueryMaxResults, p.Logger)
	return p.store, nil
}

// Close releases every client that was created.
func (p *Platform) Close() error {
	var errs []error
	if p.storageClient != nil {
		errs = append(errs, p.storageClient.Close())
	}
	if p.docAIClient != nil {
		errs = append(errs, p.docAIClient.Close())
	}
	if p.vertexClient != nil {
		errs = append(errs, p.vertexClient.Close())
	}
	if p.store != nil {
		errs = append(errs, p.store.Close())
	}
	return errors.Join(errs...)
}
