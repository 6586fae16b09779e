package explain

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
)

const (
	DefaultNarrativeURL   = "https://api.groq.com/openai/v1/chat/completions"
	DefaultNarrativeModel = "llama3-70b-8192"
	DefaultTimeout        = 15 * time.Second

	systemPrompt = "You are an expert system analyst. Explain the likely technical cause for application resource spikes."
)

var (
	ErrNarrativeDisabled = errors.New("narrative service not configured")
	ErrNarrativeStatus   = errors.New("narrative service returned error status")
	ErrNarrativePayload  = errors.New("malformed narrative payload")
)

type NarrativeConfig struct {
	URL         string
	Model       string
	APIKey      string
	Temperature float64
	Timeout     time.Duration
}

// NarrativeClient calls an OpenAI-compatible chat-completions endpoint.
type NarrativeClient struct {
	config NarrativeConfig
	client *http.Client
}

func NewNarrativeClient(cfg NarrativeConfig) *NarrativeClient {
	if cfg.URL == "" {
		cfg.URL = DefaultNarrativeURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultNarrativeModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &NarrativeClient{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *NarrativeClient) Enabled() bool {
	return c != nil && c.config.APIKey != ""
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete sends one prompt and returns the first choice. The call is
// bounded by the configured timeout even if ctx has no deadline.
func (c *NarrativeClient) Complete(ctx context.Context, prompt string) (string, error) {
	if !c.Enabled() {
		return "", ErrNarrativeDisabled
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	body, err := json.Marshal(chatRequest{
		Model: c.config.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: c.config.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal narrative request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.URL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create narrative request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call narrative service: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read narrative response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: %d", ErrNarrativeStatus, resp.StatusCode)
	}

	var out chatResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("%w: %v", ErrNarrativePayload, err)
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("%w: no content", ErrNarrativePayload)
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

var metricPrompts = map[string]string{
	"cpu": `The system has detected high CPU usage.
The application using the most CPU is '%s' at %.2f%% CPU.

Explain clearly why this app might be consuming so much CPU. Include possible technical causes such as:
- infinite loops
- inefficient algorithms
- background threads
- stuck or zombie processes
- driver or system misconfigurations`,
	"memory": `The system has detected high memory usage.
The application using the most memory is '%s' at %.2f%% of memory.

Explain clearly why this app might be consuming such high memory. Include possible technical causes such as:
- memory leaks
- inefficient data structures
- background threads
- heavy computations
- system misconfiguration`,
	"disk": `The system has detected high disk usage.
The heaviest disk consumer is '%s' at %.2f%% usage.

Explain clearly why this might be consuming so much disk. Include causes like:
- heavy read/write operations
- logging loops
- large file generation
- database I/O spikes`,
}

// BuildPrompt seeds the narrative request with the deterministic
// explanation and the heaviest process for the anomalous metric.
func BuildPrompt(tc TickContext, baseline string) string {
	metric := tc.Verdict.Kind.Metric()
	extra := fmt.Sprintf(metricPrompts[metric], tc.TopApp.Name, topValue(tc))
	return strings.TrimSpace(baseline) + "\n\nAdd to the above:\n" + extra
}
