package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"blocknotes/internal/domain"
)

const (
	DefaultEndpoint = "https://api.anthropic.com/v1/messages"
	APIVersion      = "2023-06-01"
	DefaultModel    = "claude-sonnet-4-20250514"
	DefaultTimeout  = 60 * time.Second
)

const systemPrompt = `You edit a block-based document. The user message holds the page as JSON
followed by an instruction. Respond only with tool calls. Block types: paragraph,
heading_1, heading_2, heading_3, todo, code, quote, image, link. Text blocks take
content {"text": "...", "marks": []}; todo adds "checked"; code takes {"code", "language"};
link takes {"url", "text"}; image takes {"url", "caption"}.`

// Client calls a Messages-style API and turns tool calls into Actions.
type Client struct {
	endpoint   string
	apiKey     string
	model      string
	httpClient *http.Client
}

// Config configures a Client. Zero fields take defaults.
type Config struct {
	Endpoint string
	APIKey   string
	Model    string
	Timeout  time.Duration
}

func NewClient(cfg Config) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

var _ Assistant = (*Client)(nil)

type message struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type  string          `json:"type"`
	Text  string          `json:"text,omitempty"`
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

type tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []message `json:"messages"`
	Tools     []tool    `json:"tools"`
}

type messagesResponse struct {
	Content    []contentPart `json:"content"`
	StopReason string        `json:"stop_reason"`
}

var blockSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"type":            map[string]any{"type": "string"},
		"content":         map[string]any{"type": "object"},
		"backgroundColor": map[string]any{"type": "string"},
	},
	"required": []string{"type", "content"},
}

var tools = []tool{
	{
		Name:        string(ActionInsertBlocks),
		Description: "Insert blocks after afterBlockId, or at the end of the page when it is omitted.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"afterBlockId": map[string]any{"type": "string"},
				"blocks":       map[string]any{"type": "array", "items": blockSchema},
			},
			"required": []string{"blocks"},
		},
	},
	{
		Name:        string(ActionUpdateBlock),
		Description: "Change the text, checked state or whole content of a block.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"blockId": map[string]any{"type": "string"},
				"text":    map[string]any{"type": "string"},
				"checked": map[string]any{"type": "boolean"},
				"content": map[string]any{"type": "object"},
			},
			"required": []string{"blockId"},
		},
	},
	{
		Name:        string(ActionDeleteBlock),
		Description: "Delete a block.",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"blockId": map[string]any{"type": "string"}},
			"required":   []string{"blockId"},
		},
	},
	{
		Name:        string(ActionCreatePage),
		Description: "Create a child page of the current page.",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"title": map[string]any{"type": "string"}},
			"required":   []string{"title"},
		},
	},
}

// Propose sends the page and instruction and collects the tool calls of
// the reply. Transport and API failures wrap domain.ErrUpstream.
func (c *Client) Propose(ctx context.Context, req Request) ([]Action, error) {
	page, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal page: %w", err)
	}
	body, err := json.Marshal(messagesRequest{
		Model:     c.model,
		MaxTokens: 4096,
		System:    systemPrompt,
		Messages: []message{{
			Role: "user",
			Content: []contentPart{
				{Type: "text", Text: string(page)},
				{Type: "text", Text: req.Instruction},
			},
		}},
		Tools: tools,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", APIVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: assistant request: %v", domain.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: assistant API error %d: %s", domain.ErrUpstream, resp.StatusCode, string(msg))
	}

	var out messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode assistant response: %v", domain.ErrUpstream, err)
	}
	return parseActions(out.Content)
}

func parseActions(parts []contentPart) ([]Action, error) {
	var actions []Action
	for _, p := range parts {
		if p.Type != "tool_use" {
			continue
		}
		var a Action
		if len(p.Input) > 0 {
			if err := json.Unmarshal(p.Input, &a); err != nil {
				return nil, fmt.Errorf("%w: malformed %s input: %v", domain.ErrUpstream, p.Name, err)
			}
		}
		a.Type = ActionType(p.Name)
		actions = append(actions, a)
	}
	return actions, nil
}
