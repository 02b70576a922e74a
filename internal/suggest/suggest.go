// Package suggest asks a chat-completions endpoint for narrative business
// suggestions about an analysed batch.
package suggest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"salone/internal/core"
	"salone/internal/log"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4"

	systemPrompt = "Sei un esperto consulente per saloni di parrucchieri. Analizza i dati forniti e genera suggerimenti dettagliati per migliorare il business."
	userPrompt   = "Analizza questi dati del salone e l'analisi fornita per diversi mesi. Genera 3-5 suggerimenti dettagliati per migliorare il business, concentrandoti su trend, punti di forza e di debolezza degli operatori e dei servizi nel tempo: \nDati: %s\nAnalisi: %s"

	maxResponseBytes = 4 << 20
)

var (
	// ErrMissingAPIKey is returned before any network call when no key is configured.
	ErrMissingAPIKey = errors.New("API key non trovata")
	// ErrUnexpectedResponse is returned when the reply carries no choices.
	ErrUnexpectedResponse = errors.New("unexpected chat completion response")
)

// StatusError is a non-2xx reply from the endpoint.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("chat completion: status %d", e.StatusCode)
	}
	return fmt.Sprintf("chat completion: status %d: %s", e.StatusCode, e.Message)
}

// Request is the payload forwarded to the model: the raw monthly rows and
// the analysis computed from them, both as JSON.
type Request struct {
	MonthlyData json.RawMessage `json:"monthlyData"`
	Analysis    json.RawMessage `json:"analysis"`
}

// NewRequest encodes a dataset and its analysis.
func NewRequest(data core.PeriodDataset, result core.AnalysisResult) (Request, error) {
	d, err := json.Marshal(data)
	if err != nil {
		return Request{}, fmt.Errorf("encode monthly data: %w", err)
	}
	a, err := json.Marshal(result)
	if err != nil {
		return Request{}, fmt.Errorf("encode analysis: %w", err)
	}
	return Request{MonthlyData: d, Analysis: a}, nil
}

// Config configures the client.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Client calls the chat-completions API. It performs a single attempt per
// call; failures surface to the caller.
type Client struct {
	httpClient *http.Client
	apiKey     string
	endpoint   string
	model      string
	logger     *log.Logger
}

func New(cfg Config, logger *log.Logger) *Client {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if logger == nil {
		logger = log.Default(log.ComponentSuggest)
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		apiKey:     strings.TrimSpace(cfg.APIKey),
		endpoint:   base + "/chat/completions",
		model:      model,
		logger:     logger,
	}
}

// Enabled reports whether an API key is configured.
func (c *Client) Enabled() bool { return c.apiKey != "" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Suggest returns the model's text verbatim.
func (c *Client) Suggest(ctx context.Context, req Request) (string, error) {
	if c.apiKey == "" {
		return "", ErrMissingAPIKey
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: fmt.Sprintf(userPrompt, orNull(req.MonthlyData), orNull(req.Analysis))},
		},
	})
	if err != nil {
		return "", fmt.Errorf("encode chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("read chat response: %w", err)
	}
	c.logger.DebugContext(ctx, "Chat completion answered",
		log.FieldModel, c.model,
		log.FieldStatusCode, resp.StatusCode,
		log.FieldDuration, time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var ae apiError
		_ = json.Unmarshal(raw, &ae)
		return "", &StatusError{StatusCode: resp.StatusCode, Message: ae.Error.Message}
	}

	var cr chatResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(cr.Choices) == 0 {
		return "", ErrUnexpectedResponse
	}
	return cr.Choices[0].Message.Content, nil
}

func orNull(m json.RawMessage) string {
	if len(m) == 0 {
		return "null"
	}
	return string(m)
}
