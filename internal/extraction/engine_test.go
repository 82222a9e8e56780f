package extraction

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/Lllllllleong/waterqualityflow/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoEventReply = "```json\n" + `{
  "monitoreos": [
    {
      "cliente": "Aguas del Valle S.A.",
      "tipo_agua": "residual",
      "tipo_muestreo": "compuesto",
      "fecha_muestreo": "2024-03-05",
      "coordenadas": "4.60971, -74.08175",
      "punto_muestreo": "PTAR-1",
      "parametros": [
        {"parametro": "DQO", "valor": 125.5, "valor_original": "125.5", "unidad": "mg/L", "metodo": "SM 5220 D", "limite": "150"},
        {"parametro": "Sólidos Suspendidos Totales", "valor": 10, "valor_original": "< 10", "unidad": "mg/L"},
        {"parametro": "Coliformes Totales", "valor": "2400", "valor_original": "> 2400", "unidad": "NMP/100 mL"}
      ],
      "observaciones": ""
    },
    {
      "cliente": null,
      "fecha_muestreo": "06/03/2024 - 05/03/2024",
      "punto_muestreo": 2,
      "parametros": [
        {"parametro": "pH", "valor": 7.2}
      ]
    }
  ]
}` + "\n```"

func TestParseReply(t *testing.T) {
	drafts, err := ParseReply(twoEventReply)
	require.NoError(t, err)
	require.Len(t, drafts, 2)

	first := drafts[0]
	assert.Equal(t, "Aguas del Valle S.A.", first.Client)
	assert.Equal(t, "residual", *first.WaterType)
	assert.Equal(t, "2024-03-05", *first.SamplingDate)
	assert.Nil(t, first.Observations)
	require.Len(t, first.Parameters, 3)

	dqo := first.Parameters[0]
	assert.Equal(t, "DQO", dqo.Parameter)
	assert.Equal(t, 125.5, *dqo.Value)
	assert.Equal(t, "125.5", dqo.OriginalValue)
	assert.Equal(t, "SM 5220 D", *dqo.Method)

	// The model's own arithmetic is overridden by the "< X" rule.
	sst := first.Parameters[1]
	assert.Equal(t, "SST", sst.Parameter)
	assert.Equal(t, 5.0, *sst.Value)
	assert.Equal(t, "< 10", sst.OriginalValue)

	coli := first.Parameters[2]
	assert.Equal(t, "Coliformes_Totales", coli.Parameter)
	assert.Equal(t, 2400.0, *coli.Value)
	assert.Equal(t, "> 2400", coli.OriginalValue)

	second := drafts[1]
	assert.Equal(t, "", second.Client)
	assert.Equal(t, "2024-03-05", *second.SamplingDate)
	assert.Equal(t, "2", *second.SamplingPoint)
	require.Len(t, second.Parameters, 1)
	assert.Equal(t, "7.2", second.Parameters[0].OriginalValue)
	assert.Equal(t, 7.2, *second.Parameters[0].Value)
}

func TestParseReplyKeepsNonNumericOriginal(t *testing.T) {
	drafts, err := ParseReply(`{"monitoreos":[{"cliente":"X","parametros":[{"parametro":"E. coli","valor":null,"valor_original":"Ausencia"}]}]}`)
	require.NoError(t, err)

	p := drafts[0].Parameters[0]
	assert.Equal(t, "E_coli", p.Parameter)
	assert.Equal(t, "Ausencia", p.OriginalValue)
	assert.Nil(t, p.Value)
}

func TestParseReplyKeepsDateWithTime(t *testing.T) {
	drafts, err := ParseReply(`{"monitoreos":[{"cliente":"Acme","fecha_muestreo":"2024-03-15T08:30:00Z","parametros":[{"parametro":"pH","valor_original":"7,2"}]}]}`)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, ptr("2024-03-15"), drafts[0].SamplingDate)
}

func TestParseReplyRejectsMalformed(t *testing.T) {
	tests := map[string]string{
		"empty":               "",
		"not json":            "Lo siento, no puedo procesar el documento.",
		"truncated":           `{"monitoreos": [{"cliente": "X"`,
		"missing monitoreos":  `{"resultados": []}`,
		"monitoreos not list": `{"monitoreos": {"cliente": "X"}}`,
		"parameter no name":   `{"monitoreos":[{"parametros":[{"valor": 1}]}]}`,
		"parameter no value":  `{"monitoreos":[{"parametros":[{"parametro": "DQO"}]}]}`,
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseReply(in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedOutput))
		})
	}
}

func TestNormalizeSendsCatalogAndContent(t *testing.T) {
	gen := &fakeGenerator{reply: `{"monitoreos":[{"cliente":"Acme","parametros":[{"parametro":"DQO","valor":125.5,"valor_original":"125.5","unidad":"mg/L"}]}]}`}
	engine := NewEngine(gen, nil)

	doc := &models.IntermediateDocument{
		Text: "DQO 125.5 mg/L\n",
		Tables: []models.Table{{Number: 1, Rows: 1, Columns: 2, Cells: []models.Cell{
			{Row: 0, Column: 0, Content: "DQO"}, {Row: 0, Column: 1, Content: "125.5"},
		}}},
	}
	drafts, err := engine.Normalize(context.Background(), doc)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, "Acme", drafts[0].Client)

	require.Len(t, gen.prompts, 1)
	prompt := gen.prompts[0]
	assert.Contains(t, prompt, `"Fosforo_Total": ["Fósforo Total","Total Phosphorus","Ptot","P Total"]`)
	assert.Contains(t, prompt, `"texto": "DQO 125.5 mg/L\n"`)
	assert.Contains(t, prompt, `"numero_tabla": 1`)
	assert.Contains(t, prompt, `"< X" → valor: X/2`)
}

func TestPromptTruncatesContent(t *testing.T) {
	engine := NewEngine(&fakeGenerator{}, nil)
	doc := &models.IntermediateDocument{Text: strings.Repeat("ó", 3*DefaultContentBudget), Tables: []models.Table{}}

	prompt, err := engine.Prompt(doc)
	require.NoError(t, err)

	start := strings.Index(prompt, "CONTENIDO:\n") + len("CONTENIDO:\n")
	end := strings.Index(prompt, "\n\nJSON (sin markdown")
	content := prompt[start:end]
	assert.Equal(t, DefaultContentBudget, utf8.RuneCountInString(content))
	assert.True(t, utf8.ValidString(content))
}

func TestNormalizePropagatesModelFailure(t *testing.T) {
	engine := NewEngine(&fakeGenerator{err: errors.New("quota exceeded")}, nil)

	_, err := engine.Normalize(context.Background(), &models.IntermediateDocument{})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrMalformedOutput))
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, StripFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, StripFences("```\n{\"a\":1}```"))
	assert.Equal(t, `{"a":1}`, StripFences("  {\"a\":1}  "))
}
