package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/Lllllllleong/waterqualityflow/internal/models"
	"github.com/Lllllllleong/waterqualityflow/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dqoQuery = `{"parametros":[{"parametro":"DQO","where":[{"field":"valor","op":">","value":100}]}]}`

func seedClients(t *testing.T, st *store.Store) {
	t.Helper()
	dqo := func(client string, v float64) models.MonitoringDraft {
		return models.MonitoringDraft{
			Client:       client,
			SamplingDate: ptr("2024-05-02"),
			Parameters: []models.ParameterMeasurement{
				{Parameter: "DQO", Value: ptr(v), OriginalValue: fmt.Sprint(v), Unit: ptr("mg/L")},
			},
		}
	}
	_, err := st.Save(context.Background(), []models.MonitoringDraft{
		dqo("Lácteos del Sur", 320),
		dqo("Curtiembre Andina", 45),
		dqo("Papelera Central", 101.5),
		dqo("Municipio Alto", 100),
		dqo("Frigorífico Norte", 780),
	}, "fixture.pdf")
	require.NoError(t, err)
}

func TestAsk_DQOAboveThreshold(t *testing.T) {
	st := newBadgerStore(t)
	seedClients(t, st)
	translator := &fakeGenerator{replies: []string{"```json\n" + dqoQuery + "\n```"}}
	summarizer := &fakeGenerator{replies: []string{"Se encontraron 3 clientes con DQO mayor a 100 mg/L."}}

	f := NewQueryFunction(translator, summarizer, st, nil)
	res := f.Ask(context.Background(), "clientes con DQO mayor a 100")

	assert.Equal(t, models.AnswerOK, res.Status)
	assert.Equal(t, dqoQuery, res.Query)
	assert.Equal(t, "Se encontraron 3 clientes con DQO mayor a 100 mg/L.", res.Summary)
	require.Len(t, res.Records, 3)

	var clients []string
	for _, r := range res.Records {
		clients = append(clients, r.Client)
	}
	assert.ElementsMatch(t, []string{"Lácteos del Sur", "Papelera Central", "Frigorífico Norte"}, clients)

	require.Len(t, translator.prompts, 1)
	assert.Contains(t, translator.prompts[0], "clientes con DQO mayor a 100")
	assert.Contains(t, translator.prompts[0], `"parametros"`)
	require.Len(t, summarizer.prompts, 1)
	assert.Contains(t, summarizer.prompts[0], "Frigorífico Norte")
	assert.NotContains(t, summarizer.prompts[0], "resultados más")
}

func TestAsk_TranslationFailure(t *testing.T) {
	summarizer := &fakeGenerator{}
	f := NewQueryFunction(&fakeGenerator{errs: []error{errors.New("quota exhausted")}}, summarizer, newBadgerStore(t), nil)

	res := f.Ask(context.Background(), "¿qué clientes hay?")
	assert.Equal(t, models.AnswerFailed, res.Status)
	assert.Equal(t, StageTranslate, res.Stage)
	assert.Empty(t, res.Query)
	assert.Contains(t, res.Error, "quota exhausted")
	assert.Empty(t, summarizer.prompts)
}

func TestAsk_InvalidQueryReportsQueryText(t *testing.T) {
	bad := `SELECT * FROM c WHERE c.cliente = "x"`
	summarizer := &fakeGenerator{}
	f := NewQueryFunction(&fakeGenerator{replies: []string{bad}}, summarizer, newBadgerStore(t), nil)

	res := f.Ask(context.Background(), "clientes x")
	assert.Equal(t, models.AnswerFailed, res.Status)
	assert.Equal(t, StageExecute, res.Stage)
	assert.Equal(t, bad, res.Query)
	assert.NotEmpty(t, res.Error)
	assert.Empty(t, summarizer.prompts)
}

func TestAsk_NoResultsSkipsSummary(t *testing.T) {
	st := newBadgerStore(t)
	seedClients(t, st)
	summarizer := &fakeGenerator{replies: []string{"unused"}}
	f := NewQueryFunction(&fakeGenerator{replies: []string{`{"where":[{"field":"cliente","op":"=","value":"Nadie"}]}`}}, summarizer, st, nil)

	res := f.Ask(context.Background(), "cliente Nadie")
	assert.Equal(t, models.AnswerNoResults, res.Status)
	assert.Empty(t, res.Records)
	assert.Empty(t, summarizer.prompts)
}

type staticExecutor struct{ records []models.MonitoringEvent }

func (e staticExecutor) Execute(ctx context.Context, query string) ([]models.MonitoringEvent, error) {
	return e.records, nil
}

func manyRecords(n int) []models.MonitoringEvent {
	out := make([]models.MonitoringEvent, n)
	for i := range out {
		out[i] = models.MonitoringEvent{
			ID:             fmt.Sprintf("rec-%02d", i+1),
			Client:         fmt.Sprintf("Cliente %02d", i+1),
			Parameters:     []models.ParameterMeasurement{},
			ProcessedAt:    time.Date(2024, 1, 1, 0, i, 0, 0, time.UTC),
			ParameterCount: i % 4,
		}
	}
	return out
}

func TestAsk_SummaryPayloadBounded(t *testing.T) {
	summarizer := &fakeGenerator{replies: []string{"resumen"}}
	f := NewQueryFunction(&fakeGenerator{replies: []string{`{}`}}, summarizer, staticExecutor{records: manyRecords(15)}, nil)

	res := f.Ask(context.Background(), "todo")
	assert.Equal(t, models.AnswerOK, res.Status)
	assert.Len(t, res.Records, 15)

	require.Len(t, summarizer.prompts, 1)
	prompt := summarizer.prompts[0]
	for i := 1; i <= 10; i++ {
		assert.Contains(t, prompt, fmt.Sprintf(`"rec-%02d"`, i))
	}
	for i := 11; i <= 15; i++ {
		assert.NotContains(t, prompt, fmt.Sprintf(`"rec-%02d"`, i))
	}
	assert.Contains(t, prompt, "... y 5 resultados más")
}

func TestAsk_SummaryFailureFallsBackToRawListing(t *testing.T) {
	records := manyRecords(7)
	records[0].SamplingDate = ptr("2024-02-01")
	f := NewQueryFunction(&fakeGenerator{replies: []string{`{}`}},
		&fakeGenerator{errs: []error{errors.New("deadline exceeded")}}, staticExecutor{records: records}, nil)

	res := f.Ask(context.Background(), "todo")
	assert.Equal(t, models.AnswerRawFallback, res.Status)
	assert.Len(t, res.Records, 7)
	assert.True(t, strings.HasPrefix(res.Summary, "1. Cliente: Cliente 01\n   Fecha: 2024-02-01\n   Parámetros: 0"))
	assert.Contains(t, res.Summary, "5. Cliente: Cliente 05")
	assert.NotContains(t, res.Summary, "6. Cliente")
}

func TestSummaryPayload_SmallSetHasNoNote(t *testing.T) {
	payload, err := summaryPayload(manyRecords(10))
	require.NoError(t, err)
	assert.NotContains(t, payload, "resultados más")
	assert.Contains(t, payload, `"rec-10"`)
}
