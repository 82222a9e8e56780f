package gcp

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
)

// --- Extraction Model Prompts ---
const ExtractionSystemPrompt = "Experto en análisis fisicoquímicos y microbiológicos de agua. Responde solo JSON válido."

// --- Query Model Prompts ---
const QuerySystemPrompt = "Eres un experto en construir consultas estructuradas sobre una base de datos de monitoreos de agua. Respondes solo con un objeto JSON de consulta válido."

// --- Summary Model Prompts ---
const SummarySystemPrompt = "Eres un asistente que explica resultados de bases de datos de forma clara."

// TextModel is a configured Gemini model that answers one prompt with plain text.
type TextModel struct {
	model *genai.GenerativeModel
}

// Generate sends a single user prompt and returns the concatenated text parts of the
// first candidate. An empty candidate list yields an empty string.
func (m *TextModel) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := m.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content from gemini: %w", err)
	}
	return responseText(resp), nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return strings.TrimSpace(b.String())
}

// VertexClient holds all pre-configured generative models for the app.
type VertexClient struct {
	ExtractionModel *TextModel
	QueryModel      *TextModel
	SummaryModel    *TextModel
	ProbeModel      *TextModel
	baseClient      *genai.Client
}

func newModel(base *genai.Client, name, systemPrompt string, temperature float32, maxTokens int32, jsonOutput bool) *TextModel {
	m := base.GenerativeModel(name)
	if systemPrompt != "" {
		m.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(systemPrompt)},
		}
	}
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:     genai.Ptr(temperature),
		MaxOutputTokens: genai.Ptr(maxTokens),
	}
	if jsonOutput {
		m.GenerationConfig.ResponseMIMEType = "application/json"
	}
	return &TextModel{model: m}
}

// NewVertexClient creates a new client holding all necessary models.
func NewVertexClient(ctx context.Context, projectID, region, modelName string) (*VertexClient, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("NewVertexClient: projectID and region cannot be empty")
	}
	if modelName == "" {
		modelName = "gemini-1.5-pro"
	}

	baseClient, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	return &VertexClient{
		// Low temperature keeps extraction literal.
		ExtractionModel: newModel(baseClient, modelName, ExtractionSystemPrompt, 0.1, 4000, true),
		QueryModel:      newModel(baseClient, modelName, QuerySystemPrompt, 0.1, 500, true),
		SummaryModel:    newModel(baseClient, modelName, SummarySystemPrompt, 0.3, 1000, false),
		ProbeModel:      newModel(baseClient, modelName, "", 0.0, 5, false),
		baseClient:      baseClient,
	}, nil
}

func (c *VertexClient) Close() error {
	if c.baseClient != nil {
		return c.baseClient.Close()
	}
	return nil
}
