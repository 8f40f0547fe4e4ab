// Package llm rewrites generic triage replies with an OpenAI chat model.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"triage_server/core/domain"
	"triage_server/core/port/out"
	"triage_server/pkg/httputil"
)

const (
	DefaultModel       = "gpt-4o-mini"
	defaultMaxTokens   = 300
	defaultTemperature = 0.4
	defaultTimeout     = 8 * time.Second

	// historyTurns bounds how much conversation goes into the prompt.
	historyTurns = 6
)

const systemPrompt = `Kamu adalah admin WhatsApp bengkel mobil.
Tulis ulang draf balasan agar terdengar natural dan sopan dalam Bahasa Indonesia.
Aturan:
- Pertahankan semua pertanyaan dan informasi di draf. Jangan menambah harga, janji, atau diagnosa.
- Maksimal 5 kalimat, tanpa markdown.
- Jawab hanya dengan teks balasan.`

var _ out.ReplyPolisher = (*Polisher)(nil)

// Config holds polisher settings. Zero values use defaults.
type Config struct {
	APIKey      string
	BaseURL     string // overridable for tests and compatible gateways
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// Polisher implements out.ReplyPolisher.
type Polisher struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	timeout     time.Duration
}

// NewPolisher creates a polisher over the pooled OpenAI HTTP client.
func NewPolisher(cfg Config) *Polisher {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.HTTPClient = httputil.NewOptimizedClient(httputil.OpenAIClientConfig())
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	p := &Polisher{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: float32(cfg.Temperature),
		timeout:     cfg.Timeout,
	}
	if p.model == "" {
		p.model = DefaultModel
	}
	if p.maxTokens <= 0 {
		p.maxTokens = defaultMaxTokens
	}
	if p.temperature <= 0 {
		p.temperature = defaultTemperature
	}
	if p.timeout <= 0 {
		p.timeout = defaultTimeout
	}
	return p
}

// Polish returns the model's rewrite of draft. An empty answer returns draft.
func (p *Polisher) Polish(ctx context.Context, draft string, history []domain.ChatMessage, signals domain.SignalBundle) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.model,
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
		Messages:    buildMessages(draft, history, signals),
	})
	if err != nil {
		return draft, fmt.Errorf("polish reply: %w", err)
	}
	if len(resp.Choices) == 0 {
		return draft, nil
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return draft, nil
	}
	return text, nil
}

func buildMessages(draft string, history []domain.ChatMessage, signals domain.SignalBundle) []openai.ChatCompletionMessage {
	msgs := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
	}

	if len(history) > historyTurns {
		history = history[len(history)-historyTurns:]
	}
	for _, m := range history {
		role := openai.ChatMessageRoleUser
		if m.Role == domain.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Text})
	}

	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: fmt.Sprintf("Konteks: %s\n\nDraf balasan:\n%s", describeSignals(signals), draft),
	})
	return msgs
}

// describeSignals renders the assessment as one context line for the prompt.
func describeSignals(s domain.SignalBundle) string {
	parts := []string{
		"kendaraan=" + string(s.VehicleTier),
		fmt.Sprintf("urgensi=%d/10", s.Urgency),
		fmt.Sprintf("keseriusan=%d/100", s.Seriousness),
	}
	if names := s.Symptoms.Names(); len(names) > 0 {
		parts = append(parts, "gejala="+strings.Join(names, ","))
	}
	return strings.Join(parts, " ")
}
