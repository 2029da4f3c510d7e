package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/zap"
)

// Response schemas sent with each request and enforced on each reply. The
// service is instructed to return JSON matching the schema; we still validate
// because instruction-following is best effort.
const messageSchema = `{
  "type": "object",
  "properties": {
    "message": {"type": "string", "minLength": 1}
  },
  "required": ["message"],
  "additionalProperties": false
}`

const replySchema = `{
  "type": "object",
  "properties": {
    "message": {"type": "string", "minLength": 1},
    "destinationChange": {
      "oneOf": [
        {"type": "null"},
        {
          "type": "object",
          "properties": {
            "x": {"type": "integer"},
            "y": {"type": "integer"}
          },
          "required": ["x", "y"],
          "additionalProperties": false
        }
      ]
    }
  },
  "required": ["message", "destinationChange"],
  "additionalProperties": false
}`

// HTTPClient talks to a text-generation endpoint over HTTP.
type HTTPClient struct {
	url         string
	temperature float64
	http        *http.Client
	log         *zap.Logger

	msgSchema   *jsonschema.Schema
	replySchema *jsonschema.Schema
}

// NewHTTPClient builds a client for the given endpoint. timeout caps each
// request end to end, on top of whatever deadline the caller's context
// carries.
func NewHTTPClient(url string, timeout time.Duration, temperature float64, log *zap.Logger) (*HTTPClient, error) {
	ms, err := jsonschema.CompileString("message.json", messageSchema)
	if err != nil {
		return nil, fmt.Errorf("compile message schema: %w", err)
	}
	rs, err := jsonschema.CompileString("reply.json", replySchema)
	if err != nil {
		return nil, fmt.Errorf("compile reply schema: %w", err)
	}
	return &HTTPClient{
		url:         url,
		temperature: temperature,
		http:        &http.Client{Timeout: timeout},
		log:         log,
		msgSchema:   ms,
		replySchema: rs,
	}, nil
}

type generateRequest struct {
	Schema      json.RawMessage `json:"schema"`
	Prompt      string          `json:"prompt"`
	Temperature float64         `json:"temperature"`
}

func (c *HTTPClient) GenerateMessage(ctx context.Context, prompt string) (string, error) {
	raw, err := c.call(ctx, prompt, messageSchema, c.msgSchema)
	if err != nil {
		return "", err
	}
	var out struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("%w: decode: %v", ErrUnavailable, err)
	}
	return out.Message, nil
}

func (c *HTTPClient) ProcessMessage(ctx context.Context, prompt string) (Reply, error) {
	raw, err := c.call(ctx, prompt, replySchema, c.replySchema)
	if err != nil {
		return Reply{}, err
	}
	var out Reply
	if err := json.Unmarshal(raw, &out); err != nil {
		return Reply{}, fmt.Errorf("%w: decode: %v", ErrUnavailable, err)
	}
	return out, nil
}

// call issues one generation request and returns the validated response body.
func (c *HTTPClient) call(ctx context.Context, prompt, schemaText string, schema *jsonschema.Schema) (json.RawMessage, error) {
	body, err := json.Marshal(generateRequest{
		Schema:      json.RawMessage(schemaText),
		Prompt:      prompt,
		Temperature: c.temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %v", ErrUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		c.log.Warn("oracle request failed",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", truncate(raw, 256)))
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("%w: non-JSON response: %v", ErrUnavailable, err)
	}
	if err := schema.Validate(v); err != nil {
		c.log.Warn("oracle response failed validation", zap.Error(err))
		return nil, fmt.Errorf("%w: schema violation: %v", ErrUnavailable, err)
	}
	return raw, nil
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
