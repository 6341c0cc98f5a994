package internal

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ResponsesClient is the secondary transport: a plain HTTP POST to the
// Responses endpoint. Its payload is rebuilt from the CompletionRequest, with
// the web search tool attached as a hosted tool rather than a chat option.
type ResponsesClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewResponsesClient creates the raw HTTP transport
func NewResponsesClient(apiKey, baseURL string, client *http.Client) *ResponsesClient {
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &ResponsesClient{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

func buildResponsesPayload(req CompletionRequest) ([]byte, error) {
	payload := []byte(`{}`)
	var err error
	if payload, err = sjson.SetBytes(payload, "model", req.Model); err != nil {
		return nil, err
	}
	if payload, err = sjson.SetBytes(payload, "input", req.Prompt); err != nil {
		return nil, err
	}
	if req.WebSearch {
		if payload, err = sjson.SetRawBytes(payload, "tools", []byte(`[{"type":"web_search_preview"}]`)); err != nil {
			return nil, err
		}
	}
	return payload, nil
}

// Complete posts the request and extracts the output text
func (c *ResponsesClient) Complete(ctx context.Context, req CompletionRequest) (Completion, error) {
	if c.apiKey == "" {
		return Completion{}, ErrMissingAPIKey
	}

	payload, err := buildResponsesPayload(req)
	if err != nil {
		return Completion{}, fmt.Errorf("building request payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/responses", bytes.NewReader(payload))
	if err != nil {
		return Completion{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return Completion{}, fmt.Errorf("posting to responses endpoint: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8*1024*1024))
	if err != nil {
		return Completion{}, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := gjson.GetBytes(body, "error.message").String()
		if msg == "" {
			msg = strings.TrimSpace(string(body))
		}
		return Completion{}, fmt.Errorf("responses endpoint returned %d: %s", resp.StatusCode, msg)
	}

	text := extractOutputText(body)
	if text == "" {
		return Completion{}, fmt.Errorf("no output text in response")
	}
	return Completion{Text: text, Transport: TransportHTTP}, nil
}

// extractOutputText joins the output_text parts of every message item.
// Chat-completions shaped bodies from compatible servers are accepted too.
func extractOutputText(body []byte) string {
	if s := gjson.GetBytes(body, "output_text"); s.Type == gjson.String && s.String() != "" {
		return strings.TrimSpace(s.String())
	}

	var parts []string
	gjson.GetBytes(body, "output").ForEach(func(_, item gjson.Result) bool {
		if item.Get("type").String() != "message" {
			return true
		}
		item.Get("content").ForEach(func(_, part gjson.Result) bool {
			if part.Get("type").String() == "output_text" {
				parts = append(parts, part.Get("text").String())
			}
			return true
		})
		return true
	})
	if len(parts) > 0 {
		return strings.TrimSpace(strings.Join(parts, "\n"))
	}

	return strings.TrimSpace(gjson.GetBytes(body, "choices.0.message.content").String())
}
