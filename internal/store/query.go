package store

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Lllllllleong/waterqualityflow/internal/models"
)

// Query is the restricted read query the store executes. It is the only query form
// accepted from outside the process; raw database query text never reaches a backend.
//
//	{"where":[{"field":"cliente","op":"contains","value":"Acme"}],
//	 "parametros":[{"parametro":"DQO","where":[{"field":"valor","op":">","value":100}]}],
//	 "order_by":"fecha_muestreo","desc":true,"limit":20}
type Query struct {
	Where      []Condition       `json:"where,omitempty"`
	Parameters []ParameterFilter `json:"parametros,omitempty"`
	OrderBy    string            `json:"order_by,omitempty"`
	Desc       bool              `json:"desc,omitempty"`
	Limit      int               `json:"limit,omitempty"`
}

// Condition compares one field against a literal.
type Condition struct {
	Field string `json:"field"`
	Op    string `json:"op"`
	Value any    `json:"value"`
}

// ParameterFilter matches a record when at least one of its parameter measurements
// has the given code (if set) and satisfies every condition.
type ParameterFilter struct {
	Parameter string      `json:"parametro,omitempty"`
	Where     []Condition `json:"where,omitempty"`
}

const (
	OpEq       = "="
	OpNe       = "!="
	OpGt       = ">"
	OpGte      = ">="
	OpLt       = "<"
	OpLte      = "<="
	OpContains = "contains"
)

var validOps = map[string]bool{OpEq: true, OpNe: true, OpGt: true, OpGte: true, OpLt: true, OpLte: true, OpContains: true}

var eventFields = map[string]bool{
	"id": true, "cliente": true, "tipo_agua": true, "tipo_muestreo": true, "fecha_muestreo": true,
	"coordenadas": true, "punto_muestreo": true, "observaciones": true, "pdf_origen": true,
	"fecha_procesamiento": true, "num_parametros": true,
}

var parameterFields = map[string]bool{
	"parametro": true, "valor": true, "valor_original": true, "unidad": true, "metodo": true, "limite": true,
}

// ParseQuery decodes and validates a query document. Unknown keys, fields and
// operators are rejected rather than ignored.
func ParseQuery(s string) (*Query, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	dec.DisallowUnknownFields()

	var q Query
	if err := dec.Decode(&q); err != nil {
		return nil, fmt.Errorf("invalid query document: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("invalid query document: trailing data after query object")
	}
	if err := q.validate(); err != nil {
		return nil, err
	}
	return &q, nil
}

func (q *Query) validate() error {
	if q.Limit < 0 {
		return fmt.Errorf("limit must not be negative, got %d", q.Limit)
	}
	if q.OrderBy != "" && !eventFields[q.OrderBy] {
		return fmt.Errorf("unknown order_by field %q", q.OrderBy)
	}
	for i := range q.Where {
		if err := q.Where[i].normalize(eventFields); err != nil {
			return fmt.Errorf("where[%d]: %w", i, err)
		}
	}
	for i := range q.Parameters {
		pf := &q.Parameters[i]
		if pf.Parameter == "" && len(pf.Where) == 0 {
			return fmt.Errorf("parametros[%d]: needs a parametro or at least one condition", i)
		}
		for j := range pf.Where {
			if err := pf.Where[j].normalize(parameterFields); err != nil {
				return fmt.Errorf("parametros[%d].where[%d]: %w", i, j, err)
			}
		}
	}
	return nil
}

// normalize checks the condition and turns JSON numbers into float64.
func (c *Condition) normalize(fields map[string]bool) error {
	if !fields[c.Field] {
		return fmt.Errorf("unknown field %q", c.Field)
	}
	if !validOps[c.Op] {
		return fmt.Errorf("unknown operator %q", c.Op)
	}
	switch v := c.Value.(type) {
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return fmt.Errorf("value %q is not a number: %w", v, err)
		}
		c.Value = f
	case float64:
	case int:
		c.Value = float64(v)
	case string:
	default:
		return fmt.Errorf("value for %q must be a string or a number, got %T", c.Field, c.Value)
	}
	if _, isString := c.Value.(string); c.Op == OpContains && !isString {
		return fmt.Errorf("contains needs a string value")
	}
	return nil
}

// Match reports whether e satisfies every condition of the query.
func (q *Query) Match(e *models.MonitoringEvent) bool {
	for _, c := range q.Where {
		v, ok := eventField(e, c.Field)
		if !ok || !compare(v, c.Op, c.Value) {
			return false
		}
	}
	for _, pf := range q.Parameters {
		if !pf.matchAny(e.Parameters) {
			return false
		}
	}
	return true
}

func (pf ParameterFilter) matchAny(params []models.ParameterMeasurement) bool {
	for i := range params {
		if pf.match(&params[i]) {
			return true
		}
	}
	return false
}

func (pf ParameterFilter) match(p *models.ParameterMeasurement) bool {
	if pf.Parameter != "" && p.Parameter != pf.Parameter {
		return false
	}
	for _, c := range pf.Where {
		v, ok := parameterField(p, c.Field)
		if !ok || !compare(v, c.Op, c.Value) {
			return false
		}
	}
	return true
}

// stringEqualities returns the top-level equality conditions on text fields, which
// backends may push down to the database.
func (q *Query) stringEqualities() []Condition {
	var out []Condition
	for _, c := range q.Where {
		if c.Op != OpEq || c.Field == "fecha_procesamiento" {
			continue
		}
		if _, ok := c.Value.(string); ok {
			out = append(out, c)
		}
	}
	return out
}

// processedAtLayout is fixed width so timestamps order correctly as text.
const processedAtLayout = "2006-01-02T15:04:05.000000000Z07:00"

func text(s *string) (any, bool) {
	if s == nil {
		return nil, false
	}
	return *s, true
}

func eventField(e *models.MonitoringEvent, name string) (any, bool) {
	switch name {
	case "id":
		return e.ID, true
	case "cliente":
		return e.Client, true
	case "tipo_agua":
		return text(e.WaterType)
	case "tipo_muestreo":
		return text(e.SamplingType)
	case "fecha_muestreo":
		return text(e.SamplingDate)
	case "coordenadas":
		return text(e.Coordinates)
	case "punto_muestreo":
		return text(e.SamplingPoint)
	case "observaciones":
		return text(e.Observations)
	case "pdf_origen":
		return e.SourceDocument, true
	case "fecha_procesamiento":
		if e.ProcessedAt.IsZero() {
			return nil, false
		}
		return e.ProcessedAt.UTC().Format(processedAtLayout), true
	case "num_parametros":
		return float64(e.ParameterCount), true
	}
	return nil, false
}

func parameterField(p *models.ParameterMeasurement, name string) (any, bool) {
	switch name {
	case "parametro":
		return p.Parameter, true
	case "valor":
		if p.Value == nil {
			return nil, false
		}
		return *p.Value, true
	case "valor_original":
		return p.OriginalValue, true
	case "unidad":
		return text(p.Unit)
	case "metodo":
		return text(p.Method)
	case "limite":
		return text(p.Limit)
	}
	return nil, false
}

// compare applies op to a field value and a literal. Numbers compare numerically,
// text compares bytewise and case-sensitively. Mixed types never match.
func compare(field any, op string, literal any) bool {
	if op == OpContains {
		fs, ok1 := field.(string)
		ls, ok2 := literal.(string)
		return ok1 && ok2 && strings.Contains(fs, ls)
	}
	c, ok := order(field, literal)
	if !ok {
		return false
	}
	switch op {
	case OpEq:
		return c == 0
	case OpNe:
		return c != 0
	case OpGt:
		return c > 0
	case OpGte:
		return c >= 0
	case OpLt:
		return c < 0
	case OpLte:
		return c <= 0
	}
	return false
}

func order(a, b any) (int, bool) {
	switch av := a.(type) {
	case float64:
		bv, ok := b.(float64)
		if !ok {
			return 0, false
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		}
		return 0, true
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bv), true
	}
	return 0, false
}
