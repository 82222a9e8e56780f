// Package extraction turns the intermediate document representation into
// monitoring-event drafts with a generation model, then validates and
// re-normalizes the model's reply locally.
package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/Lllllllleong/waterqualityflow/internal/models"
)

// ErrMalformedOutput marks model replies that are not JSON of the expected shape.
var ErrMalformedOutput = errors.New("malformed model output")

// DefaultContentBudget is the number of characters of serialized document content
// sent to the model. Anything past it is dropped.
const DefaultContentBudget = 20000

// Generator answers a single prompt with text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Engine extracts monitoring events from one document per call.
type Engine struct {
	model         Generator
	catalog       []Parameter
	contentBudget int
	logger        *slog.Logger
}

func NewEngine(model Generator, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		model:         model,
		catalog:       Catalog,
		contentBudget: DefaultContentBudget,
		logger:        logger,
	}
}

const extractionPromptTemplate = `
Eres un experto en análisis fisicoquímicos y microbiológicos de agua. Analiza el contenido extraído 
de un PDF de caracterización de agua y extrae la información en JSON.

IMPORTANTE: Un PDF puede tener MÚLTIPLES MONITOREOS. Separa cada uno.

EXTRAER:
- cliente: Nombre del solicitante
- tipo_agua: Tipo (residual, superficial, potable, etc.)
- tipo_muestreo: Tipo de muestreo
- fecha_muestreo: Fecha más antigua (YYYY-MM-DD)
- coordenadas: Coordenadas (mantener formato original)
- punto_muestreo: Identificador del punto

PARÁMETROS:
%s

REGLAS VALORES:
- "< X" → valor: X/2, valor_original: "< X"
- "> X" → valor: X, valor_original: "> X"
- "25.5" → valor: 25.5, valor_original: "25.5"

CONTENIDO:
%s

JSON (sin markdown, sin backticks):
{
  "monitoreos": [
    {
      "cliente": "...",
      "tipo_agua": "...",
      "tipo_muestreo": "...",
      "fecha_muestreo": "YYYY-MM-DD",
      "coordenadas": "...",
      "punto_muestreo": "...",
      "parametros": [
        {
          "parametro": "DQO",
          "valor": 125.5,
          "valor_original": "125.5",
          "unidad": "mg/L",
          "metodo": "...",
          "limite": "..."
        }
      ],
      "observaciones": "..."
    }
  ]
}
`

// Prompt builds the extraction request for doc.
func (e *Engine) Prompt(doc *models.IntermediateDocument) (string, error) {
	var content bytes.Buffer
	enc := json.NewEncoder(&content)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return "", fmt.Errorf("failed to serialize document content: %w", err)
	}
	return fmt.Sprintf(extractionPromptTemplate, catalogJSON(e.catalog), truncateRunes(content.String(), e.contentBudget)), nil
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// Normalize asks the model for the monitoring events in doc. Model call failures are
// returned as is; unparseable replies wrap ErrMalformedOutput. Nothing is retried.
func (e *Engine) Normalize(ctx context.Context, doc *models.IntermediateDocument) ([]models.MonitoringDraft, error) {
	prompt, err := e.Prompt(doc)
	if err != nil {
		return nil, err
	}

	reply, err := e.model.Generate(ctx, prompt)
	if err != nil {
		e.logger.Error("Call to the extraction model failed", "error", err)
		return nil, fmt.Errorf("extraction model: %w", err)
	}

	drafts, err := ParseReply(reply)
	if err != nil {
		e.logger.Error("Failed to parse extraction reply", "error", err, "responseBody", reply)
		return nil, err
	}
	e.logger.Info("Monitoring events extracted.", "count", len(drafts))
	return drafts, nil
}

// StripFences removes markdown code fences a model may wrap around its reply.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// flexText decodes a JSON string, number or null into optional text.
type flexText struct {
	value *string
}

func (f *flexText) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		f.value = nil
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		f.value = &s
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	s := n.String()
	f.value = &s
	return nil
}

// text returns the trimmed value, or nil when absent or blank.
func (f flexText) text() *string {
	if f.value == nil {
		return nil
	}
	s := strings.TrimSpace(*f.value)
	if s == "" {
		return nil
	}
	return &s
}

type replyParameter struct {
	Parameter     string   `json:"parametro"`
	Value         flexText `json:"valor"`
	OriginalValue flexText `json:"valor_original"`
	Unit          flexText `json:"unidad"`
	Method        flexText `json:"metodo"`
	Limit         flexText `json:"limite"`
}

type replyEvent struct {
	Client        flexText         `json:"cliente"`
	WaterType     flexText         `json:"tipo_agua"`
	SamplingType  flexText         `json:"tipo_muestreo"`
	SamplingDate  flexText         `json:"fecha_muestreo"`
	Coordinates   flexText         `json:"coordenadas"`
	SamplingPoint flexText         `json:"punto_muestreo"`
	Parameters    []replyParameter `json:"parametros"`
	Observations  flexText         `json:"observaciones"`
}

type reply struct {
	Events []replyEvent `json:"monitoreos"`
}

// ParseReply validates a model reply against the reply schema and converts it into
// drafts. Parameter values are recomputed from their original text, parameter names
// are mapped onto catalog codes where they match an alias, and the sampling date is
// reduced to the earliest date it mentions.
func ParseReply(raw string) ([]models.MonitoringDraft, error) {
	cleaned := StripFences(raw)
	if cleaned == "" {
		return nil, fmt.Errorf("%w: empty reply", ErrMalformedOutput)
	}

	dec := json.NewDecoder(strings.NewReader(cleaned))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	if err := replySchema.Validate(generic); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}

	var r reply
	if err := json.Unmarshal([]byte(cleaned), &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}

	drafts := make([]models.MonitoringDraft, 0, len(r.Events))
	for _, ev := range r.Events {
		draft := models.MonitoringDraft{
			WaterType:     ev.WaterType.text(),
			SamplingType:  ev.SamplingType.text(),
			SamplingDate:  NormalizeSamplingDate(ev.SamplingDate.text()),
			Coordinates:   ev.Coordinates.text(),
			SamplingPoint: ev.SamplingPoint.text(),
			Observations:  ev.Observations.text(),
			Parameters:    make([]models.ParameterMeasurement, 0, len(ev.Parameters)),
		}
		if c := ev.Client.text(); c != nil {
			draft.Client = *c
		}
		for _, p := range ev.Parameters {
			draft.Parameters = append(draft.Parameters, measurement(p))
		}
		drafts = append(drafts, draft)
	}
	return drafts, nil
}

func measurement(p replyParameter) models.ParameterMeasurement {
	name := strings.TrimSpace(p.Parameter)
	if code, ok := Canonical(name); ok {
		name = code
	}

	m := models.ParameterMeasurement{
		Parameter: name,
		Unit:      p.Unit.text(),
		Method:    p.Method.text(),
		Limit:     p.Limit.text(),
	}

	if orig := p.OriginalValue.value; orig != nil {
		m.OriginalValue = *orig
	} else if v := p.Value.text(); v != nil {
		m.OriginalValue = *v
	}

	if v, ok := NormalizeValue(m.OriginalValue); ok {
		m.Value = &v
	} else if v := p.Value.text(); v != nil {
		if n, err := strconv.ParseFloat(*v, 64); err == nil {
			m.Value = &n
		}
	}
	return m
}
