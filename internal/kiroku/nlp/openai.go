package nlp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kiroku-app/kiroku/internal/kiroku/action"
)

const (
	defaultNLPBase  = "https://api.openai.com/v1"
	defaultNLPModel = "gpt-4o-mini"
	defaultTimeout  = 30 * time.Second

	// maxPromptTitles bounds how many recent titles are injected into the
	// system prompt so catalog growth never blows up token spend.
	maxPromptTitles = 100
)

// Config configures the OpenAI-compatible provider.
type Config struct {
	// APIKey is the bearer token used to authenticate against the API.
	APIKey string

	// BaseURL overrides the API endpoint. Useful for local models (Ollama),
	// Azure OpenAI, or any other OpenAI-compatible endpoint.
	// Defaults to https://api.openai.com/v1 when empty.
	BaseURL string

	// Model is the chat model to use. Defaults to gpt-4o-mini when empty
	// (cost-efficient, sufficient for this translation task).
	Model string

	// Timeout is the HTTP request timeout. Defaults to 30 s.
	Timeout time.Duration
}

// openAIProvider implements Provider using the OpenAI chat completions API
// with JSON-mode output to guarantee a parseable document.
type openAIProvider struct {
	cfg    Config
	client *http.Client
}

// New returns a Provider backed by the OpenAI (or compatible) chat API.
// The returned provider is safe for concurrent use.
func New(cfg Config) Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultNLPBase
	}
	if cfg.Model == "" {
		cfg.Model = defaultNLPModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	return &openAIProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// --- minimal OpenAI wire types ---

type oaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaiRequest struct {
	Model          string       `json:"model"`
	Messages       []oaiMessage `json:"messages"`
	MaxTokens      int          `json:"max_tokens,omitempty"`
	ResponseFormat *oaiFormat   `json:"response_format,omitempty"`
}

type oaiFormat struct {
	Type string `json:"type"` // "json_object"
}

type oaiResponse struct {
	Choices []oaiChoice `json:"choices"`
	Error   *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

type oaiChoice struct {
	Message      oaiMessage `json:"message"`
	FinishReason string     `json:"finish_reason"`
}

// actionPromptTmpl is the system message for the text-to-actions path.
// Substituted at call time:
//  1. %s — workspace name ("media" or "food")
//  2. %s — comma-separated payload field vocabulary for the workspace
//  3. %s — comma-separated canonical status values
//  4. %s — newline-separated recent titles (or a placeholder)
const actionPromptTmpl = `You are Kiroku, the assistant of a personal %s diary.

Your only job is to translate the user's message into a JSON batch of candidate
catalog mutations. You NEVER apply mutations yourself — you only propose them;
every proposal is validated and confirmed by the user before anything changes.

Payload fields you may use: %s
Canonical status values: %s

Recent entries in the diary (newest first):
%s

RULES (strict — do not deviate):
1. Respond ONLY with valid JSON. No markdown, no code fences, no prose outside JSON.
2. Each action has "kind" ("create", "update", or "delete") and a "payload" object.
3. "payload" must always include "title". For update/delete, use the title the
   user referred to; do not invent entries that were never mentioned.
4. Ratings are numbers from 0 to 10. Dates are ISO YYYY-MM-DD strings.
5. Produce one action per item the user mentioned, in the order mentioned.
6. If nothing in the message is a mutation, return an empty "actions" array.

JSON schema for your response:
{
  "intent":  "<one short sentence describing the user's request>",
  "actions": [ {"kind": "create|update|delete", "payload": {"title": "...", ...}}, ... ]
}
`

// queryPromptTmpl is the system message for the text-to-SQL path.
// Substituted at call time:
//  1. %s — workspace name
const queryPromptTmpl = `You are Kiroku, the analytics assistant of a personal %s diary.

Translate the user's question into ONE read-only SQLite SELECT statement over
this table:

entries(id TEXT, workspace TEXT, title TEXT, medium TEXT, type TEXT,
        status TEXT, genre TEXT /*JSON array*/, platform TEXT, my_rating REAL,
        start_date TEXT /*YYYY-MM-DD*/, finish_date TEXT, episodes_watched INTEGER,
        total_episodes INTEGER, price REAL, language TEXT /*JSON array*/,
        poster TEXT, external_id TEXT, created_at TIMESTAMP, updated_at TIMESTAMP)

RULES (strict — do not deviate):
1. Respond ONLY with valid JSON. No markdown, no code fences, no prose outside JSON.
2. The statement must be a single SELECT. Never write INSERT, UPDATE, DELETE,
   DROP, ALTER, CREATE, TRUNCATE, GRANT, or REVOKE.
3. Always filter on workspace = '%s' unless the user explicitly asks across diaries.
4. Prefer readable column aliases; the result is rendered directly to the user.

JSON schema for your response:
{
  "sql":         "<the SELECT statement>",
  "explanation": "<one sentence describing what the query computes>"
}
`

// GenerateActions sends the user text to the LLM and returns the candidate
// action batch for the request's workspace.
func (p *openAIProvider) GenerateActions(ctx context.Context, req GenerateRequest) (*ActionResult, error) {
	titles := req.RecentTitles
	if len(titles) > maxPromptTitles {
		titles = titles[:maxPromptTitles]
	}
	titleBlock := strings.Join(titles, "\n")
	if titleBlock == "" {
		titleBlock = "(the diary is empty)"
	}

	system := fmt.Sprintf(actionPromptTmpl,
		req.Workspace,
		strings.Join(payloadFields, ", "),
		strings.Join(action.KnownStatuses, ", "),
		titleBlock,
	)

	content, err := p.complete(ctx, system, req.Text)
	if err != nil {
		return nil, err
	}
	return DecodeActions(req.Workspace, []byte(content))
}

// GenerateQuery sends the user text to the LLM and returns a SQL proposal.
// The caller is responsible for running it through the allow-list guard.
func (p *openAIProvider) GenerateQuery(ctx context.Context, req GenerateRequest) (*QueryResult, error) {
	system := fmt.Sprintf(queryPromptTmpl, req.Workspace, req.Workspace)

	content, err := p.complete(ctx, system, req.Text)
	if err != nil {
		return nil, err
	}

	var result QueryResult
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return nil, fmt.Errorf("%w: decode query JSON: %v (raw content: %.200s)", ErrMalformedOutput, err, content)
	}
	if strings.TrimSpace(result.SQL) == "" {
		return nil, fmt.Errorf("%w: empty sql field", ErrMalformedOutput)
	}
	return &result, nil
}

// payloadFields is the vocabulary advertised to the model; it matches the
// store's patchable-column whitelist.
var payloadFields = []string{
	"title", "medium", "type", "status", "genre", "platform", "my_rating",
	"start_date", "finish_date", "episodes_watched", "total_episodes",
	"price", "language", "poster", "external_id",
}

// complete performs one JSON-mode chat completion and returns the message
// content. HTTP 429 maps to ErrRateLimit so callers can surface the right
// user message.
func (p *openAIProvider) complete(ctx context.Context, system, user string) (string, error) {
	body := oaiRequest{
		Model: p.cfg.Model,
		Messages: []oaiMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens:      1024,
		ResponseFormat: &oaiFormat{Type: "json_object"},
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("nlp: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.cfg.BaseURL+"/chat/completions",
		bytes.NewReader(data),
	)
	if err != nil {
		return "", fmt.Errorf("nlp: create http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("nlp: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", ErrRateLimit
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("nlp: read response body: %w", err)
	}

	var oaiResp oaiResponse
	if err := json.Unmarshal(respBody, &oaiResp); err != nil {
		return "", fmt.Errorf("nlp: decode API response: %w", err)
	}

	if oaiResp.Error != nil {
		return "", fmt.Errorf("nlp: API error (%s): %s", oaiResp.Error.Type, oaiResp.Error.Message)
	}
	if len(oaiResp.Choices) == 0 {
		return "", fmt.Errorf("nlp: no choices returned (HTTP %d)", resp.StatusCode)
	}

	return oaiResp.Choices[0].Message.Content, nil
}
