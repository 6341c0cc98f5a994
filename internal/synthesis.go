package internal

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/tiktoken-go/tokenizer"
)

// SynthesisRequest is one template run against an enriched context block
type SynthesisRequest struct {
	Context     string
	TemplateKey string
	Goal        string
	Keyword     string
	Language    string
}

// Synthesizer renders synthesis templates and sends them to the model
type Synthesizer struct {
	completer Completer
	prompts   *PromptManager
	model     string
	timeout   time.Duration
	logger    *slog.Logger
}

// NewSynthesizer creates a synthesizer. A zero timeout means no per-call bound.
func NewSynthesizer(completer Completer, prompts *PromptManager, model string, timeout time.Duration, logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{
		completer: completer,
		prompts:   prompts,
		model:     model,
		timeout:   timeout,
		logger:    logger,
	}
}

// Synthesize runs one template. It never fails: errors come back as
// "Synthesis failed (<key>): <reason>" in place of the model output.
func (s *Synthesizer) Synthesize(ctx context.Context, req SynthesisRequest) string {
	prompt, err := s.prompts.CreatePrompt(req.TemplateKey, PromptData{
		Keyword:  req.Keyword,
		Goal:     req.Goal,
		Context:  req.Context,
		Language: req.Language,
	})
	if err != nil {
		return synthesisFailure(req.TemplateKey, err)
	}

	s.logger.Debug("synthesis: sending prompt",
		slog.String("template", req.TemplateKey),
		slog.String("model", s.model),
		slog.Int("tokens", EstimateTokens(prompt)))

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	out, err := s.completer.Complete(ctx, CompletionRequest{
		Prompt: prompt,
		Model:  s.model,
	})
	if err != nil {
		s.logger.Warn("synthesis failed", slog.String("template", req.TemplateKey), slog.Any("err", err))
		return synthesisFailure(req.TemplateKey, err)
	}
	s.logger.Debug("synthesis: done", slog.String("template", req.TemplateKey), slog.String("transport", out.Transport))
	return out.Text
}

func synthesisFailure(key string, err error) string {
	return fmt.Sprintf("Synthesis failed (%s): %v", key, err)
}

// SynthesizeAll runs every key against the same context concurrently and
// returns the outputs keyed by template
func (s *Synthesizer) SynthesizeAll(ctx context.Context, base SynthesisRequest, keys []string, workers int) map[string]string {
	type keyed struct {
		key  string
		text string
	}
	results := Gather(ctx, keys, workers,
		func(ctx context.Context, key string) (keyed, error) {
			req := base
			req.TemplateKey = key
			return keyed{key: key, text: s.Synthesize(ctx, req)}, nil
		},
		func(key string, err error) keyed {
			return keyed{key: key, text: synthesisFailure(key, err)}
		},
	)

	out := make(map[string]string, len(results))
	for _, r := range results {
		out[r.key] = r.text
	}
	return out
}

// BuildContext joins the successful enrichment results into the block
// placed in every synthesis prompt. Failed results are left out.
func BuildContext(header string, results []EnrichmentResult) string {
	var b strings.Builder
	if header != "" {
		b.WriteString(header)
		b.WriteString("\n\n")
	}
	n := 0
	for _, r := range results {
		if !r.Success {
			continue
		}
		n++
		fmt.Fprintf(&b, "### Video %d: %s\n", n, r.Title)
		fmt.Fprintf(&b, "URL: %s\n", r.URL)
		fmt.Fprintf(&b, "Views: %s\n", FormatViews(r.ViewCount))
		if r.SourceKeyword != "" {
			fmt.Fprintf(&b, "Keyword: %s\n", r.SourceKeyword)
		}
		b.WriteString("\n")
		b.WriteString(strings.TrimRightFunc(r.Body, unicode.IsSpace))
		b.WriteString("\n\n")
	}
	return strings.TrimSpace(b.String())
}

var (
	tokenCodecOnce sync.Once
	tokenCodec     tokenizer.Codec
)

// EstimateTokens counts prompt tokens with the cl100k encoding, falling back
// to a rough four characters per token
func EstimateTokens(s string) int {
	tokenCodecOnce.Do(func() {
		codec, err := tokenizer.Get(tokenizer.Cl100kBase)
		if err == nil {
			tokenCodec = codec
		}
	})
	if tokenCodec != nil {
		if ids, _, err := tokenCodec.Encode(s); err == nil {
			return len(ids)
		}
	}
	return (len(s) + 3) / 4
}
