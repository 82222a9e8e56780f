package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Lllllllleong/waterqualityflow/internal/extraction"
	"github.com/Lllllllleong/waterqualityflow/internal/models"
)

// ErrTranslation marks a failed model call while translating a question.
var ErrTranslation = errors.New("question translation failed")

// Stages reported on failed answers.
const (
	StageTranslate = "translate"
	StageExecute   = "execute"
)

const (
	summaryRecordLimit  = 10
	fallbackRecordLimit = 5
)

// Generator answers a single prompt with text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Executor runs a query document against the stored records.
type Executor interface {
	Execute(ctx context.Context, query string) ([]models.MonitoringEvent, error)
}

// QueryFunction answers natural-language questions about stored monitoring events.
// Every stage failure is absorbed into the response.
type QueryFunction struct {
	translator Generator
	summarizer Generator
	executor   Executor
	logger     *slog.Logger
}

func NewQueryFunction(translator, summarizer Generator, executor Executor, logger *slog.Logger) *QueryFunction {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryFunction{translator: translator, summarizer: summarizer, executor: executor, logger: logger}
}

// NewQuery wires a QueryFunction from the platform's clients.
func NewQuery(ctx context.Context, p *Platform) (*QueryFunction, error) {
	vertex, err := p.Vertex(ctx)
	if err != nil {
		return nil, err
	}
	st, err := p.Store(ctx)
	if err != nil {
		return nil, err
	}
	return NewQueryFunction(vertex.QueryModel, vertex.SummaryModel, st, p.Logger), nil
}

const recordExample = `{
  "id": "uuid",
  "cliente": "Nombre de la empresa",
  "tipo_agua": "residual/superficial/potable",
  "tipo_muestreo": "simple/compuesto",
  "fecha_muestreo": "YYYY-MM-DD",
  "coordenadas": "lat,lon o texto",
  "punto_muestreo": "identificador",
  "parametros": [
    {
      "parametro": "DQO/pH/SST/etc",
      "valor": número,
      "valor_original": "texto con símbolos",
      "unidad": "mg/L/unidades/etc",
      "metodo": "método usado",
      "limite": "límite normativo"
    }
  ],
  "observaciones": "texto",
  "pdf_origen": "nombre.pdf",
  "fecha_procesamiento": "timestamp RFC3339",
  "num_parametros": número
}`

const queryPromptTemplate = `
Genera una consulta JSON para la base de datos de monitoreos de agua basada en la pregunta del usuario.

ESTRUCTURA DE CADA REGISTRO:
%s

FORMATO DE LA CONSULTA:
{
  "where": [{"field": "<campo del registro>", "op": "<operador>", "value": <texto o número>}],
  "parametros": [{"parametro": "<código>", "where": [{"field": "<campo del parámetro>", "op": "<operador>", "value": <texto o número>}]}],
  "order_by": "<campo del registro>",
  "desc": true,
  "limit": <número>
}

REGLAS IMPORTANTES:
1. Todas las claves son opcionales; {} devuelve todos los registros.
2. Operadores permitidos: "=", "!=", ">", ">=", "<", "<=", "contains".
3. "where" filtra campos del registro: id, cliente, tipo_agua, tipo_muestreo, fecha_muestreo, coordenadas, punto_muestreo, observaciones, pdf_origen, fecha_procesamiento, num_parametros.
4. Para buscar dentro del arreglo parametros usa "parametros": un registro coincide si ALGÚN parámetro cumple todas las condiciones de la entrada. Campos: parametro, valor, valor_original, unidad, metodo, limite.
   Ejemplo DQO mayor a 100: {"parametros": [{"parametro": "DQO", "where": [{"field": "valor", "op": ">", "value": 100}]}]}
5. Los campos de texto son case-sensitive.
6. Usa "contains" para búsquedas parciales: {"field": "cliente", "op": "contains", "value": "Empresa"}
7. Para fechas usa comparación de strings: {"field": "fecha_muestreo", "op": ">", "value": "2024-01-01"}
8. Los valores numéricos van sin comillas.

PREGUNTA DEL USUARIO:
%s

Responde SOLO con el objeto JSON, sin explicaciones, sin markdown.
Si la pregunta es ambigua, genera la consulta más razonable.
`

const summaryPromptTemplate = `
La pregunta del usuario fue: "%s"

Los resultados de la base de datos son:
%s

Genera un resumen claro y conciso de los resultados en lenguaje natural.
Incluye:
- Cuántos resultados se encontraron
- Información relevante de cada resultado
- Si hay patrones o datos destacables

Responde en tono profesional pero conversacional.
`

// Ask answers one question. It never returns an error: translation and execution
// failures yield AnswerFailed, an empty result yields AnswerNoResults, and a failed
// summary falls back to a plain listing of the first records.
func (f *QueryFunction) Ask(ctx context.Context, question string) *models.AskResponse {
	logCtx := f.logger.With("question", question)
	res := &models.AskResponse{Question: question}

	query, err := f.Translate(ctx, question)
	if err != nil {
		logCtx.Error("Failed to translate question", "error", err)
		res.Status, res.Stage, res.Error = models.AnswerFailed, StageTranslate, err.Error()
		return res
	}
	res.Query = query
	logCtx = logCtx.With("query", query)
	logCtx.Info("Query generated.")

	records, err := f.executor.Execute(ctx, query)
	if err != nil {
		logCtx.Error("Failed to execute generated query", "error", err)
		res.Status, res.Stage, res.Error = models.AnswerFailed, StageExecute, err.Error()
		return res
	}
	logCtx.Info("Query executed.", "results", len(records))

	if len(records) == 0 {
		res.Status = models.AnswerNoResults
		return res
	}
	res.Records = records

	payload, err := summaryPayload(records)
	if err == nil {
		var summary string
		summary, err = f.summarizer.Generate(ctx, fmt.Sprintf(summaryPromptTemplate, question, payload))
		if err == nil {
			res.Status, res.Summary = models.AnswerOK, summary
			return res
		}
	}

	logCtx.Warn("Could not summarize results, falling back to raw listing", "error", err)
	res.Status, res.Summary = models.AnswerRawFallback, rawListing(records)
	return res
}

// Translate asks the model for a query document answering question.
func (f *QueryFunction) Translate(ctx context.Context, question string) (string, error) {
	prompt := fmt.Sprintf(queryPromptTemplate, recordExample, question)
	reply, err := f.translator.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranslation, err)
	}
	return extraction.StripFences(reply), nil
}

// summaryPayload serializes at most the first ten records and notes how many more exist.
func summaryPayload(records []models.MonitoringEvent) (string, error) {
	shown := records
	if len(shown) > summaryRecordLimit {
		shown = shown[:summaryRecordLimit]
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(shown); err != nil {
		return "", fmt.Errorf("failed to serialize results: %w", err)
	}
	text := strings.TrimRight(buf.String(), "\n")
	if extra := len(records) - len(shown); extra > 0 {
		text += fmt.Sprintf("\n\n... y %d resultados más", extra)
	}
	return text, nil
}

func rawListing(records []models.MonitoringEvent) string {
	var b strings.Builder
	for i, r := range records {
		if i == fallbackRecordLimit {
			break
		}
		date := "sin fecha"
		if r.SamplingDate != nil {
			date = *r.SamplingDate
		}
		fmt.Fprintf(&b, "%d. Cliente: %s\n   Fecha: %s\n   Parámetros: %d\n\n", i+1, r.Client, date, r.ParameterCount)
	}
	return strings.TrimRight(b.String(), "\n")
}
