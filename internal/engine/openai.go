package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

const (
	// DefaultOpenAIBaseURL is Groq's OpenAI-compatible endpoint.
	DefaultOpenAIBaseURL = "https://api.groq.com/openai/v1"
	// DefaultOpenAIModel is the hosted model used when none is configured.
	DefaultOpenAIModel = "llama-3.3-70b-versatile"

	defaultTimeout = 60 * time.Second
)

// OpenAIEngine talks to any OpenAI-compatible chat completions API.
type OpenAIEngine struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewOpenAIEngine creates an engine for the given base URL. An empty baseURL
// selects DefaultOpenAIBaseURL.
func NewOpenAIEngine(apiKey, baseURL string) *OpenAIEngine {
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	return &OpenAIEngine{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

func (e *OpenAIEngine) Name() string { return "openai" }

type responseFormat struct {
	Type string `json:"type"`
}

type completionRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type completionResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// Chat sends a non-streaming chat completion. With a schema, JSON mode is
// enabled and the schema is appended to the system instructions, since
// json_object mode is the lowest common denominator across compatible APIs.
func (e *OpenAIEngine) Chat(ctx context.Context, req Request) (string, error) {
	body := completionRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
	}
	if req.Schema != nil {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
		body.Messages = withSchemaInstruction(req.Messages, req.Schema)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", errors.Wrap(err, "marshaling request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", errors.Wrap(err, "creating request")
	}
	e.setHeaders(httpReq)

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return "", errors.Wrap(err, "executing request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &StatusError{Engine: e.Name(), StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	var out completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", errors.Wrap(err, "decoding response")
	}
	if len(out.Choices) == 0 {
		return "", errors.New("response contained no choices")
	}
	return out.Choices[0].Message.Content, nil
}

// IsRunning reports whether GET /models answers 200 with the configured key.
func (e *OpenAIEngine) IsRunning(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/models", nil)
	if err != nil {
		return false
	}
	e.setHeaders(req)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (e *OpenAIEngine) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}
}

// withSchemaInstruction returns a copy of messages whose first system message
// ends with the schema the reply must follow. A system message is prepended
// when none exists.
func withSchemaInstruction(messages []Message, s *Schema) []Message {
	instruction := "Respond only with a JSON object named " + s.Name +
		" that conforms to this JSON schema:\n" + string(s.Definition)

	out := make([]Message, 0, len(messages)+1)
	added := false
	for _, m := range messages {
		if !added && m.Role == RoleSystem {
			m.Content = m.Content + "\n\n" + instruction
			added = true
		}
		out = append(out, m)
	}
	if !added {
		out = append([]Message{{Role: RoleSystem, Content: instruction}}, out...)
	}
	return out
}
