package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/sashabaranov/go-openai"
	"github.com/vladimiradmaev/dish-journal/internal/domain"
	apperrors "github.com/vladimiradmaev/dish-journal/internal/errors"
	"google.golang.org/api/option"
)

// AnalysisRequest is one call to a vision model.
type AnalysisRequest struct {
	Image    []byte
	MIMEType string
	Prompt   string
}

// Analyzer is the boundary to an external analysis provider. It returns the
// parsed result or a provider error; it never touches records.
type Analyzer interface {
	Analyze(ctx context.Context, req AnalysisRequest) (domain.Document, error)
}

// ProviderObserver is told about each provider call and its token usage.
type ProviderObserver interface {
	ObserveProvider(provider string, err error, inputTokens, outputTokens int)
}

type observedAnalyzer struct {
	Analyzer
	provider string
	observer ProviderObserver
}

// Observe reports every call of a to o under the provider label.
func Observe(a Analyzer, provider string, o ProviderObserver) Analyzer {
	return observedAnalyzer{Analyzer: a, provider: provider, observer: o}
}

func (a observedAnalyzer) Analyze(ctx context.Context, req AnalysisRequest) (domain.Document, error) {
	result, err := a.Analyzer.Analyze(ctx, req)
	var in, out float64
	if err == nil {
		in, _ = result.Number("input_token")
		out, _ = result.Number("output_token")
	}
	a.observer.ObserveProvider(a.provider, err, int(in), int(out))
	return result, err
}

type GeminiAnalyzer struct {
	client *genai.Client
	model  string
}

func NewGeminiAnalyzer(ctx context.Context, apiKey, model string) (*GeminiAnalyzer, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiAnalyzer{client: client, model: model}, nil
}

func (a *GeminiAnalyzer) Close() error {
	return a.client.Close()
}

func (a *GeminiAnalyzer) Analyze(ctx context.Context, req AnalysisRequest) (domain.Document, error) {
	start := time.Now()

	model := a.client.GenerativeModel(a.model)
	model.SetTemperature(0)

	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt), genai.ImageData(imageFormat(req.MIMEType), req.Image))
	if err != nil {
		return nil, apperrors.NewExternalAPIError(err, "gemini")
	}
	return geminiResult(resp, a.model, start)
}

// geminiResult parses the first candidate's text parts as the analysis JSON.
func geminiResult(resp *genai.GenerateContentResponse, model string, start time.Time) (domain.Document, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, apperrors.NewExternalAPIError(fmt.Errorf("empty response"), "gemini")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}

	result, err := parseModelJSON(text.String())
	if err != nil {
		return nil, apperrors.NewExternalAPIError(err, "gemini")
	}
	// The pinned genai release does not report token usage.
	return enrich(result, model, 0, 0, start), nil
}

type OpenAIAnalyzer struct {
	client *openai.Client
	model  string
}

// NewOpenAIAnalyzer talks to the OpenAI API, or to a compatible endpoint when
// baseURL is set.
func NewOpenAIAnalyzer(apiKey, baseURL, model string) *OpenAIAnalyzer {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return NewOpenAIAnalyzerWithConfig(cfg, model)
}

func NewOpenAIAnalyzerWithConfig(cfg openai.ClientConfig, model string) *OpenAIAnalyzer {
	return &OpenAIAnalyzer{client: openai.NewClientWithConfig(cfg), model: model}
}

func (a *OpenAIAnalyzer) Analyze(ctx context.Context, req AnalysisRequest) (domain.Document, error) {
	start := time.Now()

	mime := req.MIMEType
	if mime == "" {
		mime = "image/jpeg"
	}
	dataURL := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(req.Image)

	resp, err := a.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model:       a.model,
			Temperature: 0,
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
			Messages: []openai.ChatCompletionMessage{
				{
					Role: openai.ChatMessageRoleUser,
					MultiContent: []openai.ChatMessagePart{
						{
							Type: openai.ChatMessagePartTypeText,
							Text: req.Prompt,
						},
						{
							Type: openai.ChatMessagePartTypeImageURL,
							ImageURL: &openai.ChatMessageImageURL{
								URL:    dataURL,
								Detail: openai.ImageURLDetailHigh,
							},
						},
					},
				},
			},
		},
	)
	if err != nil {
		return nil, apperrors.NewExternalAPIError(err, "openai")
	}
	if len(resp.Choices) == 0 {
		return nil, apperrors.NewExternalAPIError(fmt.Errorf("empty response"), "openai")
	}

	result, err := parseModelJSON(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, apperrors.NewExternalAPIError(err, "openai")
	}
	return enrich(result, a.model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens, start), nil
}

// imageFormat turns a MIME type into the short format genai expects.
func imageFormat(mime string) string {
	f := strings.TrimPrefix(mime, "image/")
	if f == "" || f == "jpg" {
		return "jpeg"
	}
	return f
}

// parseModelJSON decodes the JSON object in a model response, tolerating code
// fences or text around it. Numbers are kept exact.
func parseModelJSON(s string) (domain.Document, error) {
	jsonStr := extractJSON(s)
	if jsonStr == "" {
		return nil, fmt.Errorf("no valid JSON found in response")
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(jsonStr)))
	dec.UseNumber()
	var doc domain.Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return doc, nil
}

// enrich records which model produced a result, its token usage and how long
// the call took in seconds.
func enrich(result domain.Document, model string, inputTokens, outputTokens int, start time.Time) domain.Document {
	result["model"] = model
	result["input_token"] = inputTokens
	result["output_token"] = outputTokens
	result["analysis_time"] = math.Round(time.Since(start).Seconds()*1000) / 1000
	return result
}

// extractJSON attempts to extract a valid JSON object from the given string.
// It handles cases where the JSON is wrapped in code blocks (```json ... ```) or other text.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	if start == -1 {
		return ""
	}
	end := strings.LastIndex(s, "}")
	if end == -1 || end <= start {
		return ""
	}
	return s[start : end+1]
}
