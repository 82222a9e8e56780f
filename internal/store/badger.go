package store

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/Lllllllleong/waterqualityflow/internal/models"
	"github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"
)

// BadgerBackend keeps monitoring events in an embedded Badger database. It serves
// local development and tests; there is a single partition space keyed by id.
type BadgerBackend struct {
	store *badgerhold.Store
}

// OpenBadger opens (or creates) the database at path. An empty path opens an
// in-memory database.
func OpenBadger(path string) (*BadgerBackend, error) {
	options := badgerhold.DefaultOptions
	if path == "" {
		options.Options = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(path, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		options.Dir = path
		options.ValueDir = path
	}
	options.Logger = nil

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}
	return &BadgerBackend{store: store}, nil
}

func (b *BadgerBackend) Insert(ctx context.Context, event *models.MonitoringEvent) error {
	if err := b.store.Insert(event.ID, event); err != nil {
		if errors.Is(err, badgerhold.ErrKeyExists) {
			return fmt.Errorf("record %s already exists: %w", event.ID, err)
		}
		return fmt.Errorf("badger insert: %w", err)
	}
	return nil
}

func (b *BadgerBackend) Scan(ctx context.Context, q *Query) ([]models.MonitoringEvent, error) {
	var bq *badgerhold.Query
	if q != nil {
		for _, c := range q.stringEqualities() {
			if c.Field == "cliente" {
				bq = badgerhold.Where("Client").Eq(c.Value)
				break
			}
		}
	}

	var events []models.MonitoringEvent
	if err := b.store.Find(&events, bq); err != nil {
		return nil, fmt.Errorf("badger find: %w", err)
	}
	for i := range events {
		normalizeRead(&events[i])
	}
	return events, nil
}

func (b *BadgerBackend) Ping(ctx context.Context) error {
	_, err := b.store.Count(&models.MonitoringEvent{}, nil)
	return err
}

func (b *BadgerBackend) Close() error {
	if b.store != nil {
		return b.store.Close()
	}
	return nil
}
