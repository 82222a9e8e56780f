// Package store persists monitoring events as independent documents partitioned by
// client, and answers restricted read queries across all partitions.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/Lllllllleong/waterqualityflow/internal/models"
	"github.com/google/uuid"
)

var (
	// ErrPersistence marks inserts or reads the database rejected.
	ErrPersistence = errors.New("persistence failed")
	// ErrQueryExecution marks queries that are malformed or that the database refused.
	ErrQueryExecution = errors.New("query execution failed")
)

// Backend is a document database holding monitoring events.
type Backend interface {
	// Insert creates the record; it fails if the id already exists.
	Insert(ctx context.Context, event *models.MonitoringEvent) error
	// Scan returns candidate records for q across all partitions. A backend may
	// pre-filter using q, but the store applies the full query itself. A nil q
	// returns every record.
	Scan(ctx context.Context, q *Query) ([]models.MonitoringEvent, error)
	Ping(ctx context.Context) error
	Close() error
}

// SaveError reports a batch that stopped at record Index. Saved holds the ids of the
// records inserted before it; they are not rolled back.
type SaveError struct {
	Saved []string
	Index int
	Err   error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("saving monitoring event %d (after %d saved): %v", e.Index+1, len(e.Saved), e.Err)
}

func (e *SaveError) Unwrap() []error { return []error{ErrPersistence, e.Err} }

// Store is the persistence adapter used by ingestion and querying.
type Store struct {
	backend    Backend
	maxResults int
	now        func() time.Time
	newID      func() string
	logger     *slog.Logger
}

func New(backend Backend, maxResults int, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if maxResults <= 0 {
		maxResults = 500
	}
	return &Store{
		backend:    backend,
		maxResults: maxResults,
		now:        func() time.Time { return time.Now().UTC() },
		newID:      uuid.NewString,
		logger:     logger,
	}
}

// Save inserts each draft as an independent record, in order, stopping at the first
// failure. The ids saved so far are returned together with a *SaveError.
func (s *Store) Save(ctx context.Context, drafts []models.MonitoringDraft, sourceDocument string) ([]string, error) {
	logCtx := s.logger.With("sourceDocument", sourceDocument)
	ids := make([]string, 0, len(drafts))

	for i, d := range drafts {
		event := d.Event(s.newID(), sourceDocument, s.now())
		if err := s.backend.Insert(ctx, &event); err != nil {
			logCtx.Error("Failed to save monitoring event", "error", err, "index", i+1, "saved", len(ids))
			return ids, &SaveError{Saved: ids, Index: i, Err: err}
		}
		ids = append(ids, event.ID)
		logCtx.Info("Monitoring event saved.",
			"index", i+1,
			"id", event.ID,
			"client", event.Client,
			"parameterCount", event.ParameterCount,
		)
	}
	return ids, nil
}

// ListAll returns every record, newest ingestion first.
func (s *Store) ListAll(ctx context.Context) ([]models.MonitoringEvent, error) {
	events, err := s.backend.Scan(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: list records: %v", ErrPersistence, err)
	}
	sortEvents(events, "fecha_procesamiento", true)
	return events, nil
}

// Execute parses and runs a query document across all partitions.
func (s *Store) Execute(ctx context.Context, query string) ([]models.MonitoringEvent, error) {
	q, err := ParseQuery(query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryExecution, err)
	}
	return s.Run(ctx, q)
}

// Run executes an already parsed query.
func (s *Store) Run(ctx context.Context, q *Query) ([]models.MonitoringEvent, error) {
	candidates, err := s.backend.Scan(ctx, q)
	if err != nil {
		if errors.Is(err, ErrQueryExecution) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	matched := make([]models.MonitoringEvent, 0, len(candidates))
	for i := range candidates {
		if q.Match(&candidates[i]) {
			matched = append(matched, candidates[i])
		}
	}

	orderBy, desc := q.OrderBy, q.Desc
	if orderBy == "" {
		orderBy, desc = "fecha_procesamiento", true
	}
	sortEvents(matched, orderBy, desc)

	limit := q.Limit
	if limit == 0 || limit > s.maxResults {
		limit = s.maxResults
	}
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (s *Store) Ping(ctx context.Context) error { return s.backend.Ping(ctx) }

func (s *Store) Close() error { return s.backend.Close() }

// sortEvents orders by one field; records missing the field go last either way.
func sortEvents(events []models.MonitoringEvent, field string, desc bool) {
	sort.SliceStable(events, func(i, j int) bool {
		a, aok := eventField(&events[i], field)
		b, bok := eventField(&events[j], field)
		if !aok || !bok {
			return aok && !bok
		}
		c, ok := order(a, b)
		if !ok {
			return false
		}
		if desc {
			return c > 0
		}
		return c < 0
	})
}

// normalizeRead restores invariants a backend's encoding may lose.
func normalizeRead(e *models.MonitoringEvent) {
	if e.Parameters == nil {
		e.Parameters = []models.ParameterMeasurement{}
	}
	e.ParameterCount = len(e.Parameters)
}
