package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/ophion/companion/internal/infrastructure/config"
	"github.com/ophion/companion/internal/infrastructure/logger"
	"github.com/ophion/companion/internal/infrastructure/metrics"
	"github.com/ophion/companion/internal/ports"
)

// Gateway talks to an OpenAI-compatible chat completions endpoint
type Gateway struct {
	client      *openai.Client
	configured  bool
	model       string
	temperature float32
	timeout     time.Duration
	limiter     *rate.Limiter
	requests    *prometheus.CounterVec
	logger      *logger.Logger
}

// NewGateway creates a gateway from configuration. Without an API key every
// call fails fast with ErrAIUnavailable.
func NewGateway(cfg config.AIConfig, requests *prometheus.CounterVec, logger *logger.Logger) *Gateway {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	return &Gateway{
		client:      openai.NewClientWithConfig(clientCfg),
		configured:  cfg.Configured(),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
		limiter:     rate.NewLimiter(limit, burst),
		requests:    requests,
		logger:      logger.WithComponent("ai_gateway"),
	}
}

// Configured reports whether calls can reach the model
func (g *Gateway) Configured() bool {
	return g.configured
}

func (g *Gateway) GenerateStructured(ctx context.Context, req ports.StructuredRequest, out any) (err error) {
	defer func() { g.observe(req.Name, err) }()

	schema, wrapped, err := responseSchema(req.Schema)
	if err != nil {
		return err
	}

	content, err := g.complete(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Temperature: g.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   req.Name,
				Schema: schema,
			},
		},
	})
	if err != nil {
		return err
	}
	if content == "" {
		return nil
	}

	raw := []byte(stripFence(content))
	if wrapped {
		var envelope struct {
			Items json.RawMessage `json:"items"`
		}
		if err := json.Unmarshal(raw, &envelope); err != nil {
			return fmt.Errorf("%w: %s: %v", ports.ErrMalformedResponse, req.Name, err)
		}
		if len(envelope.Items) == 0 || bytes.Equal(envelope.Items, []byte("null")) {
			return nil
		}
		raw = envelope.Items
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %s: %v", ports.ErrMalformedResponse, req.Name, err)
	}
	return nil
}

func (g *Gateway) GenerateText(ctx context.Context, prompt string) (text string, err error) {
	defer func() { g.observe("text", err) }()

	return g.complete(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Temperature: g.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
}

func (g *Gateway) complete(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	if !g.configured {
		return "", ports.ErrAIUnavailable
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("ai rate limit: %w", err)
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (g *Gateway) observe(operation string, err error) {
	if g.requests == nil {
		return
	}
	outcome := metrics.Outcome(err)
	if errors.Is(err, ports.ErrAIUnavailable) {
		outcome = "unavailable"
	}
	g.requests.WithLabelValues(operation, outcome).Inc()
}

// responseSchema wraps top-level array schemas in an object, which is the only
// root type json_schema response formats accept.
func responseSchema(schema json.Marshaler) (json.Marshaler, bool, error) {
	if schema == nil {
		return nil, false, fmt.Errorf("structured request without schema")
	}
	raw, err := schema.MarshalJSON()
	if err != nil {
		return nil, false, fmt.Errorf("encode schema: %w", err)
	}

	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, false, fmt.Errorf("decode schema: %w", err)
	}
	if head.Type != "array" {
		return json.RawMessage(raw), false, nil
	}

	wrapped, err := json.Marshal(map[string]any{
		"type":                 "object",
		"properties":           map[string]json.RawMessage{"items": raw},
		"required":             []string{"items"},
		"additionalProperties": false,
	})
	if err != nil {
		return nil, false, fmt.Errorf("wrap schema: %w", err)
	}
	return json.RawMessage(wrapped), true, nil
}

// stripFence removes a markdown code fence some models put around JSON.
func stripFence(content string) string {
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimPrefix(content, "json")
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	return strings.TrimSpace(content)
}
