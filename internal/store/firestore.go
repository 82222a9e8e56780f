package store

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"cloud.google.com/go/firestore"
	"github.com/Lllllllleong/waterqualityflow/internal/models"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var nonAlphanumericRegex = regexp.MustCompile(`[^a-z0-9]+`)

// FirestoreBackend stores each event at <partitions>/<client key>/<collection>/<id>.
// Reads go through a collection group query so every client partition is covered.
type FirestoreBackend struct {
	client     *firestore.Client
	partitions string
	collection string
	logger     *slog.Logger
}

func NewFirestoreBackend(client *firestore.Client, partitions, collection string, logger *slog.Logger) *FirestoreBackend {
	if logger == nil {
		logger = slog.Default()
	}
	return &FirestoreBackend{client: client, partitions: partitions, collection: collection, logger: logger}
}

func (b *FirestoreBackend) Insert(ctx context.Context, event *models.MonitoringEvent) error {
	ref := b.client.Collection(b.partitions).Doc(partitionKey(event.Client)).Collection(b.collection).Doc(event.ID)
	if _, err := ref.Create(ctx, event); err != nil {
		return fmt.Errorf("firestore create %s: %w", ref.Path, err)
	}
	return nil
}

func (b *FirestoreBackend) Scan(ctx context.Context, q *Query) ([]models.MonitoringEvent, error) {
	fq := b.client.CollectionGroup(b.collection).Query
	pushed := false
	if q != nil {
		// One equality filter needs only the automatic single-field index.
		if eq := q.stringEqualities(); len(eq) > 0 {
			fq = fq.Where(eq[0].Field, "==", eq[0].Value)
			pushed = true
		}
	}
	if !pushed {
		fq = fq.OrderBy("fecha_procesamiento", firestore.Desc)
	}

	iter := fq.Documents(ctx)
	defer iter.Stop()

	var docs []storedDoc
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, classifyFirestore(err)
		}
		docs = append(docs, storedDoc{id: snap.Ref.ID, path: snap.Ref.Path, data: snap})
	}

	events, skipped := decodeEvents(docs)
	if skipped > 0 {
		b.logger.Error("Records could not be decoded and were left out of the result",
			"skipped", skipped,
			"returned", len(events),
			"firstPath", firstUndecodable(docs),
		)
	}
	return events, nil
}

// storedDoc is one read document before decoding.
type storedDoc struct {
	id   string
	path string
	data interface{ DataTo(p interface{}) error }
	bad  bool
}

// decodeEvents decodes every document it can and reports how many it could not.
func decodeEvents(docs []storedDoc) ([]models.MonitoringEvent, int) {
	events := make([]models.MonitoringEvent, 0, len(docs))
	skipped := 0
	for i := range docs {
		var e models.MonitoringEvent
		if err := docs[i].data.DataTo(&e); err != nil {
			docs[i].bad = true
			skipped++
			continue
		}
		if e.ID == "" {
			e.ID = docs[i].id
		}
		normalizeRead(&e)
		events = append(events, e)
	}
	return events, skipped
}

func firstUndecodable(docs []storedDoc) string {
	for _, d := range docs {
		if d.bad {
			return d.path
		}
	}
	return ""
}

func (b *FirestoreBackend) Ping(ctx context.Context) error {
	iter := b.client.CollectionGroup(b.collection).Limit(1).Documents(ctx)
	defer iter.Stop()
	if _, err := iter.Next(); err != nil && err != iterator.Done {
		return err
	}
	return nil
}

func (b *FirestoreBackend) Close() error { return b.client.Close() }

func classifyFirestore(err error) error {
	switch status.Code(err) {
	case codes.InvalidArgument, codes.FailedPrecondition:
		return fmt.Errorf("%w: %v", ErrQueryExecution, err)
	}
	return fmt.Errorf("firestore query: %w", err)
}

// partitionKey converts a client name into a safe document id.
func partitionKey(client string) string {
	sanitized := nonAlphanumericRegex.ReplaceAllString(strings.ToLower(client), "_")
	sanitized = strings.Trim(sanitized, "_")

	const maxLength = 100
	if len(sanitized) > maxLength {
		sanitized = strings.TrimRight(sanitized[:maxLength], "_")
	}
	if sanitized == "" {
		return "sin_cliente"
	}
	return sanitized
}
