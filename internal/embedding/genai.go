package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GenAI embeds with the Gemini API.
type GenAI struct {
	client   *genai.Client
	model    string
	taskType string
}

// NewGenAI creates a provider. model defaults to gemini-embedding-001 and taskType
// to SEMANTIC_SIMILARITY.
func NewGenAI(ctx context.Context, apiKey, model, taskType string) (*GenAI, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("GenAI API key is required (set GEMINI_API_KEY)")
	}
	if model == "" {
		model = "gemini-embedding-001"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GenAI{client: client, model: model, taskType: normalizeTaskType(taskType)}, nil
}

func normalizeTaskType(taskType string) string {
	switch t := strings.ToUpper(strings.TrimSpace(taskType)); t {
	case "CLASSIFICATION", "CLUSTERING", "RETRIEVAL_DOCUMENT", "RETRIEVAL_QUERY", "QUESTION_ANSWERING":
		return t
	default:
		return "SEMANTIC_SIMILARITY"
	}
}

// Embed embeds one text.
func (e *GenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	return single(e.EmbedBatch(ctx, []string{text}))
}

// EmbedBatch embeds texts in one request.
func (e *GenAI) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	resp, err := e.client.Models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{
		TaskType: e.taskType,
	})
	if err != nil {
		return nil, fmt.Errorf("genai embed: %w", err)
	}
	if err := checkCount("genai", len(texts), len(resp.Embeddings)); err != nil {
		return nil, err
	}

	out := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		out[i] = emb.Values
	}
	return out, nil
}

// Name identifies the provider and model.
func (e *GenAI) Name() string { return "genai:" + e.model }
