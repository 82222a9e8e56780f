package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/Lllllllleong/waterqualityflow/internal/config"
	"github.com/Lllllllleong/waterqualityflow/internal/services"
	cloudevents "github.com/cloudevents/sdk-go/v2"
)

var (
	ingestInstance *services.IngestFunction
	bucket         string
	once           sync.Once
	initErr        error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Triggered by google.cloud.storage.object.v1.finalized on the raw PDF bucket.
	functions.CloudEvent("IngestReport", ingestReport)
}

// main is required by the Go Functions Framework.
func main() {}

func setup(ctx context.Context) (*services.IngestFunction, string, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, "", fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	ingest, err := services.NewIngest(ctx, services.NewPlatform(cfg, logger))
	if err != nil {
		return nil, "", err
	}
	return ingest, cfg.RawPDFBucket, nil
}

func ingestReport(ctx context.Context, e cloudevents.Event) error {
	once.Do(func() {
		ingestInstance, bucket, initErr = setup(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	var gcsEvent services.GCSEvent
	if err := json.Unmarshal(e.Data(), &gcsEvent); err != nil {
		slog.Error("Failed to unmarshal event data", "error", err, "data", string(e.Data()))
		return fmt.Errorf("json.Unmarshal: %w", err)
	}

	logCtx := slog.With("gcsBucket", gcsEvent.Bucket, "gcsObject", gcsEvent.Name, "eventId", e.ID())
	if gcsEvent.Bucket != bucket || !strings.EqualFold(path.Ext(gcsEvent.Name), ".pdf") {
		logCtx.Info("Ignoring object that is not a PDF in the raw bucket.")
		return nil
	}

	// Returning the error marks the invocation as failed so the trigger can retry it.
	_, err := ingestInstance.Process(ctx, gcsEvent.Name)
	return err
}
