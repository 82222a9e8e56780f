package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Lllllllleong/waterqualityflow/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func newTestStore(t *testing.T) *Store {
	t.Helper()
	backend, err := OpenBadger("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })
	return New(backend, 500, nil)
}

// withClock makes processing timestamps strictly increasing.
func withClock(s *Store) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	n := 0
	s.now = func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Minute)
	}
}

func draft(client string, params ...models.ParameterMeasurement) models.MonitoringDraft {
	return models.MonitoringDraft{Client: client, Parameters: params}
}

func measurement(code string, value float64) models.ParameterMeasurement {
	return models.ParameterMeasurement{Parameter: code, Value: ptr(value), OriginalValue: fmt.Sprint(value), Unit: ptr("mg/L")}
}

func TestSave_AssignsDistinctIDsAndSharedSource(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ids, err := s.Save(ctx, []models.MonitoringDraft{
		draft("Acme", measurement("pH", 7.2)),
		draft("Acme", measurement("DQO", 80)),
		draft("", measurement("DBO5", 12)),
	}, "gs://raw/report.pdf")
	require.NoError(t, err)
	require.Len(t, ids, 3)
	assert.NotEqual(t, ids[0], ids[1])
	assert.NotEqual(t, ids[1], ids[2])

	all, err := s.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	for _, e := range all {
		assert.Equal(t, "gs://raw/report.pdf", e.SourceDocument)
		assert.Equal(t, len(e.Parameters), e.ParameterCount)
		assert.False(t, e.ProcessedAt.IsZero())
	}
}

func TestSave_EmptyClientDefaults(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Save(context.Background(), []models.MonitoringDraft{{}}, "report.pdf")
	require.NoError(t, err)

	all, err := s.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, models.DefaultClient, all[0].Client)
	assert.NotNil(t, all[0].Parameters)
	assert.Equal(t, 0, all[0].ParameterCount)
}

type failingBackend struct {
	*BadgerBackend
	failAt int
	calls  int
}

func (b *failingBackend) Insert(ctx context.Context, e *models.MonitoringEvent) error {
	b.calls++
	if b.calls == b.failAt {
		return errors.New("quota exceeded")
	}
	return b.BadgerBackend.Insert(ctx, e)
}

func TestSave_PartialFailureReportsSavedIDs(t *testing.T) {
	inner, err := OpenBadger("")
	require.NoError(t, err)
	defer inner.Close()
	s := New(&failingBackend{BadgerBackend: inner, failAt: 2}, 500, nil)

	ids, err := s.Save(context.Background(), []models.MonitoringDraft{
		draft("A"), draft("B"), draft("C"),
	}, "report.pdf")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.Len(t, ids, 1)

	var saveErr *SaveError
	require.ErrorAs(t, err, &saveErr)
	assert.Equal(t, 1, saveErr.Index)
	assert.Equal(t, ids, saveErr.Saved)

	all, err := s.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "A", all[0].Client)
}

func TestSave_DuplicateIDRejected(t *testing.T) {
	s := newTestStore(t)
	s.newID = func() string { return "fixed" }

	_, err := s.Save(context.Background(), []models.MonitoringDraft{draft("A"), draft("B")}, "x.pdf")
	assert.ErrorIs(t, err, ErrPersistence)
}

func seedDQO(t *testing.T, s *Store) {
	t.Helper()
	withClock(s)
	_, err := s.Save(context.Background(), []models.MonitoringDraft{
		draft("Planta Norte", measurement("DQO", 150)),
		draft("Planta Sur", measurement("pH", 7.1), measurement("DQO", 101)),
		draft("Planta Norte", measurement("DQO", 50)),
		draft("Planta Este", measurement("DQO", 100)),
		draft("Planta Oeste", measurement("DQO", 420.5)),
	}, "report.pdf")
	require.NoError(t, err)
}

func TestExecute_ParameterThreshold(t *testing.T) {
	s := newTestStore(t)
	seedDQO(t, s)

	rows, err := s.Execute(context.Background(),
		`{"parametros":[{"parametro":"DQO","where":[{"field":"valor","op":">","value":100}]}]}`)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	var clients []string
	for _, r := range rows {
		clients = append(clients, r.Client)
	}
	// Default order is newest ingestion first.
	assert.Equal(t, []string{"Planta Oeste", "Planta Sur", "Planta Norte"}, clients)
}

func TestExecute_ClientEqualityAndOrder(t *testing.T) {
	s := newTestStore(t)
	seedDQO(t, s)

	rows, err := s.Execute(context.Background(),
		`{"where":[{"field":"cliente","op":"=","value":"Planta Norte"}],"order_by":"fecha_procesamiento"}`)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.True(t, rows[0].ProcessedAt.Before(rows[1].ProcessedAt))
}

func TestExecute_Limit(t *testing.T) {
	s := newTestStore(t)
	seedDQO(t, s)

	rows, err := s.Execute(context.Background(), `{"limit":2}`)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	s.maxResults = 3
	rows, err = s.Execute(context.Background(), `{"limit":50}`)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestExecute_NoMatches(t *testing.T) {
	s := newTestStore(t)
	seedDQO(t, s)

	rows, err := s.Execute(context.Background(), `{"where":[{"field":"cliente","op":"contains","value":"Inexistente"}]}`)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestExecute_MalformedQuery(t *testing.T) {
	s := newTestStore(t)

	for _, q := range []string{
		`SELECT * FROM monitoreos`,
		`{"where":[{"field":"password","op":"=","value":"x"}]}`,
		`{"drop":true}`,
	} {
		_, err := s.Execute(context.Background(), q)
		assert.ErrorIs(t, err, ErrQueryExecution, q)
	}
}

func TestListAll_EmptyStore(t *testing.T) {
	s := newTestStore(t)
	all, err := s.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestPartitionKey(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Aguas del Valle S.A.", "aguas_del_valle_s_a"},
		{"  ", "sin_cliente"},
		{models.DefaultClient, "no_especificado"},
		{"ACME/Planta#2", "acme_planta_2"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, partitionKey(tt.in), tt.in)
	}
}
