package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/olzhask/aqylbot/llm"
)

// Client talks to the Generative Language REST API (generateContent).
type Client struct {
	BaseURL string
	APIKey  string
	Model   string
	HTTP    *http.Client
}

func New(baseURL, apiKey, model string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Model:   model,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

type generatePart struct {
	Text string `json:"text"`
}

type generateContent struct {
	Role  string         `json:"role,omitempty"`
	Parts []generatePart `json:"parts"`
}

type generateRequest struct {
	Contents []generateContent `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []generatePart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Gemini uses "model" where chat completions use "assistant".
func geminiRole(role string) string {
	if role == llm.RoleAssistant {
		return "model"
	}
	return llm.RoleUser
}

func (c *Client) Chat(ctx context.Context, req llm.Request) (llm.Result, error) {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = c.Model
	}
	body := generateRequest{}
	for _, m := range req.Messages {
		body.Contents = append(body.Contents, generateContent{
			Role:  geminiRole(m.Role),
			Parts: []generatePart{{Text: m.Content}},
		})
	}

	b, err := json.Marshal(body)
	if err != nil {
		return llm.Result{}, err
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.BaseURL, model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return llm.Result{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-goog-api-key", c.APIKey)

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return llm.Result{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return llm.Result{}, err
	}

	var out generateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return llm.Result{}, fmt.Errorf("gemini: decode response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if out.Error != nil && out.Error.Message != "" {
			return llm.Result{}, fmt.Errorf("gemini http %d: %s", resp.StatusCode, out.Error.Message)
		}
		return llm.Result{}, fmt.Errorf("gemini http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return llm.Result{}, fmt.Errorf("gemini: empty candidates")
	}

	var sb strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return llm.Result{
		Text:     sb.String(),
		Duration: time.Since(start),
	}, nil
}
