package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/markdave123-py/docingest/internal/core"
)

type GeminiLLM struct {
	client         *genai.Client
	modelName      string
	visionModel    string
	temperature    float32
	maxImageTokens int32
}

func NewGeminiLLM(ctx context.Context, apiKey, modelName, visionModel string, temperature float32) (*GeminiLLM, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: GEMINI_API_KEY is empty", core.ErrConfiguration)
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}
	if visionModel == "" {
		visionModel = modelName
	}
	return &GeminiLLM{
		client:         cl,
		modelName:      modelName,
		visionModel:    visionModel,
		temperature:    temperature,
		maxImageTokens: 2048,
	}, nil
}

func (g *GeminiLLM) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

func (g *GeminiLLM) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	m := g.client.GenerativeModel(g.modelName)
	m.SetTemperature(g.temperature)
	if systemPrompt != "" {
		m.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(systemPrompt)},
		}
	}

	resp, err := m.GenerateContent(ctx, genai.Text(userPrompt))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return candidateText(resp), nil
}

func (g *GeminiLLM) DescribeImage(ctx context.Context, image []byte, mimeType, instruction string) (string, error) {
	m := g.client.GenerativeModel(g.visionModel)
	m.SetMaxOutputTokens(g.maxImageTokens)

	resp, err := m.GenerateContent(ctx, genai.Blob{MIMEType: mimeType, Data: image}, genai.Text(instruction))
	if err != nil {
		return "", fmt.Errorf("gemini vision: %w", err)
	}
	return candidateText(resp), nil
}

func candidateText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String()
}

var _ core.LLMProvider = (*GeminiLLM)(nil)
