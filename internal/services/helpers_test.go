package services

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Lllllllleong/waterqualityflow/internal/models"
	"github.com/Lllllllleong/waterqualityflow/internal/store"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

// fakeBucket stands in for the raw PDF bucket.
type fakeBucket struct {
	mu      sync.Mutex
	objects []string
	signErr error
}

func (b *fakeBucket) Upload(ctx context.Context, localPath string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	name := filepath.Base(localPath)
	for _, o := range b.objects {
		if o == name {
			return name, nil
		}
	}
	b.objects = append(b.objects, name)
	return name, nil
}

func (b *fakeBucket) List(ctx context.Context) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.objects...)
}

func (b *fakeBucket) SignedReadURL(name string, ttl time.Duration) (string, error) {
	if b.signErr != nil {
		return "", b.signErr
	}
	return fmt.Sprintf("https://signed.example/%s?ttl=%s", name, ttl), nil
}

type fakeAnalyzer struct {
	mu   sync.Mutex
	doc  *models.IntermediateDocument
	errs map[string]error
	urls []string
}

func (a *fakeAnalyzer) Analyze(ctx context.Context, url string) (*models.IntermediateDocument, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.urls = append(a.urls, url)
	for name, err := range a.errs {
		if strings.Contains(url, "/"+name+"?") {
			return nil, err
		}
	}
	return a.doc, nil
}

type fakeGenerator struct {
	mu      sync.Mutex
	replies []string
	errs    []error
	prompts []string
}

// Generate answers the i-th call with replies[i] and errs[i]; the last entry repeats.
func (g *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	i := len(g.prompts)
	g.prompts = append(g.prompts, prompt)
	var reply string
	var err error
	if len(g.replies) > 0 {
		reply = g.replies[min(i, len(g.replies)-1)]
	}
	if len(g.errs) > 0 {
		err = g.errs[min(i, len(g.errs)-1)]
	}
	return reply, err
}

func newBadgerStore(t *testing.T) *store.Store {
	t.Helper()
	backend, err := store.OpenBadger("")
	require.NoError(t, err)
	st := store.New(backend, 500, nil)
	t.Cleanup(func() { _ = st.Close() })
	return st
}
