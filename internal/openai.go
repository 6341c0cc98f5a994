package internal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

// ErrMissingAPIKey is returned before any model call when no key is configured
var ErrMissingAPIKey = errors.New("OpenAI API key is required - set it in config.toml or OPENAI_API_KEY environment variable")

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// Transport names recorded on a Completion
const (
	TransportSDK  = "sdk"
	TransportHTTP = "http"
)

// CompletionRequest is everything a transport needs to reproduce a call
type CompletionRequest struct {
	Prompt    string
	Model     string
	WebSearch bool
}

// Completion is the text answer and the transport that produced it
type Completion struct {
	Text      string
	Transport string
}

// Completer sends a prompt to a generative model
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
}

// CompleterFunc adapts a function to the Completer interface
type CompleterFunc func(ctx context.Context, req CompletionRequest) (Completion, error)

func (f CompleterFunc) Complete(ctx context.Context, req CompletionRequest) (Completion, error) {
	return f(ctx, req)
}

// OpenAIClient is the primary transport, built on the official Go SDK.
// The SDK client is created on first use so commands that never call the
// model do not need a key.
type OpenAIClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client

	clientOnce sync.Once
	client     openai.Client
}

// NewOpenAIClient creates a new OpenAI client
func NewOpenAIClient(apiKey, baseURL string, httpClient *http.Client) *OpenAIClient {
	return &OpenAIClient{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

func (c *OpenAIClient) ensureClient() error {
	if c.apiKey == "" {
		return ErrMissingAPIKey
	}
	c.clientOnce.Do(func() {
		opts := []option.RequestOption{option.WithAPIKey(c.apiKey)}
		if c.baseURL != "" {
			opts = append(opts, option.WithBaseURL(c.baseURL))
		}
		if c.httpClient != nil {
			opts = append(opts, option.WithHTTPClient(c.httpClient))
		}
		c.client = openai.NewClient(opts...)
	})
	return nil
}

// Complete runs a chat completion. With WebSearch set the request carries
// web_search_options, which only search-capable models accept.
func (c *OpenAIClient) Complete(ctx context.Context, req CompletionRequest) (Completion, error) {
	if err := c.ensureClient(); err != nil {
		return Completion{}, err
	}

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(req.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(req.Prompt),
		},
	}
	if req.WebSearch {
		params.WebSearchOptions = openai.ChatCompletionNewParamsWebSearchOptions{
			SearchContextSize: "medium",
		}
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return Completion{}, err
	}
	if len(resp.Choices) == 0 {
		return Completion{}, fmt.Errorf("no response choices from OpenAI")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return Completion{}, fmt.Errorf("empty response from model %s", req.Model)
	}
	return Completion{Text: text, Transport: TransportSDK}, nil
}
