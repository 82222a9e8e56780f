package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"cloud.google.com/go/storage"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"google.golang.org/api/iterator"
)

// ObjectInfo describes one stored PDF.
type ObjectInfo struct {
	Name string
	Size int64
}

// RawStore keeps the original PDF reports in a single bucket. Objects are named
// after the local file's base name and overwritten on re-upload.
type RawStore struct {
	client *storage.Client
	bucket string
	logger *slog.Logger
}

// NewRawStore wraps an existing storage client.
func NewRawStore(client *storage.Client, bucket string, logger *slog.Logger) (*RawStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("NewRawStore: bucket cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RawStore{client: client, bucket: bucket, logger: logger}, nil
}

// Bucket returns the bucket name.
func (s *RawStore) Bucket() string { return s.bucket }

// Upload validates a local PDF and stores it under its base name.
func (s *RawStore) Upload(ctx context.Context, localPath string) (string, error) {
	name := filepath.Base(localPath)
	logCtx := s.logger.With("localPath", localPath, "gcsObject", name)

	pageCount, err := validatePDF(localPath)
	if err != nil {
		logCtx.Error("Rejected upload: not a readable PDF", "error", err)
		return "", fmt.Errorf("%s is not a readable PDF: %w", localPath, err)
	}

	logCtx.Info("Uploading PDF.", "pageCount", pageCount)
	if err := s.uploadFile(ctx, localPath, name); err != nil {
		return "", err
	}
	logCtx.Info("PDF uploaded.")
	return name, nil
}

func validatePDF(path string) (int, error) {
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	if err := api.ValidateFile(path, cfg); err != nil {
		return 0, err
	}
	return api.PageCountFile(path)
}

// uploadFile writes the object, retrying transient failures with exponential backoff.
func (s *RawStore) uploadFile(ctx context.Context, localPath, destObject string) error {
	const maxRetries = 4
	var backoff = 1 * time.Second
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		err := func() error {
			localFileReader, err := os.Open(localPath)
			if err != nil {
				return fmt.Errorf("could not open local file %s: %w", localPath, err)
			}
			defer localFileReader.Close()

			gcsWriter := s.client.Bucket(s.bucket).Object(destObject).NewWriter(ctx)
			gcsWriter.ContentType = "application/pdf"

			if _, err := io.Copy(gcsWriter, localFileReader); err != nil {
				_ = gcsWriter.Close()
				return fmt.Errorf("io.Copy to GCS failed: %w", err)
			}
			if err := gcsWriter.Close(); err != nil {
				return fmt.Errorf("failed to close GCS writer (finalize upload): %w", err)
			}
			return nil
		}()

		if err == nil {
			return nil
		}
		if errors.Is(err, os.ErrNotExist) {
			return err
		}

		lastErr = err
		s.logger.Warn(
			"Upload failed, will retry.",
			"gcsObject", destObject,
			"attempt", i+1,
			"maxRetries", maxRetries,
			"backoff", backoff.String(),
			"error", err,
		)

		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("upload for %s failed after all retries: %w", destObject, lastErr)
}

// List enumerates every object in the bucket in the store's listing order.
func (s *RawStore) List(ctx context.Context) ([]ObjectInfo, error) {
	it := s.client.Bucket(s.bucket).Objects(ctx, nil)

	var objects []ObjectInfo
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list objects in %s: %w", s.bucket, err)
		}
		objects = append(objects, ObjectInfo{Name: attrs.Name, Size: attrs.Size})
	}
	return objects, nil
}

// SignedReadURL issues a V4 signed GET URL for one object, valid for ttl.
// Signing uses the client's credentials (service account key or IAM signBlob).
func (s *RawStore) SignedReadURL(name string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = time.Hour
	}
	url, err := s.client.Bucket(s.bucket).SignedURL(name, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  http.MethodGet,
		Expires: time.Now().Add(ttl),
	})
	if err != nil {
		return "", fmt.Errorf("failed to sign read URL for %s: %w", name, err)
	}
	return url, nil
}

// Ping checks the bucket is reachable by reading its attributes.
func (s *RawStore) Ping(ctx context.Context) error {
	if _, err := s.client.Bucket(s.bucket).Attrs(ctx); err != nil {
		return fmt.Errorf("bucket %s: %w", s.bucket, err)
	}
	return nil
}
