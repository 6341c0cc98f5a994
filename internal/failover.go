package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// DefaultFallbackSignatures are error fragments that mean the primary
// transport cannot express the request, as opposed to the request failing
var DefaultFallbackSignatures = []string{
	"web_search_options",
	"Unrecognized request argument",
	"unknown parameter",
	"not supported with this model",
	"does not support",
}

// UnsupportedFeatureError marks a primary transport error that matched a
// known incompatibility signature
type UnsupportedFeatureError struct {
	Signature string
	Err       error
}

func (e *UnsupportedFeatureError) Error() string {
	return fmt.Sprintf("unsupported feature (%s): %v", e.Signature, e.Err)
}

func (e *UnsupportedFeatureError) Unwrap() error {
	return e.Err
}

// ClassifyError wraps err in an UnsupportedFeatureError when its text
// contains one of signatures. Other errors are returned unchanged.
func ClassifyError(err error, signatures []string) error {
	if err == nil {
		return nil
	}
	var uf *UnsupportedFeatureError
	if errors.As(err, &uf) {
		return err
	}
	msg := strings.ToLower(err.Error())
	for _, sig := range signatures {
		if sig != "" && strings.Contains(msg, strings.ToLower(sig)) {
			return &UnsupportedFeatureError{Signature: sig, Err: err}
		}
	}
	return err
}

// FailoverCompleter tries the primary transport and, only when it fails
// with an unsupported-feature error, repeats the request once on the
// secondary transport
type FailoverCompleter struct {
	primary    Completer
	secondary  Completer
	signatures []string
	logger     *slog.Logger
}

// NewFailoverCompleter creates the two-step resolver
func NewFailoverCompleter(primary, secondary Completer, signatures []string, logger *slog.Logger) *FailoverCompleter {
	if signatures == nil {
		signatures = DefaultFallbackSignatures
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FailoverCompleter{
		primary:    primary,
		secondary:  secondary,
		signatures: signatures,
		logger:     logger,
	}
}

func (f *FailoverCompleter) Complete(ctx context.Context, req CompletionRequest) (Completion, error) {
	out, err := f.primary.Complete(ctx, req)
	if err == nil {
		return out, nil
	}

	err = ClassifyError(err, f.signatures)
	var uf *UnsupportedFeatureError
	if !errors.As(err, &uf) || f.secondary == nil {
		return Completion{}, err
	}

	f.logger.Info("completion: primary transport unsupported, using fallback",
		slog.String("signature", uf.Signature), slog.String("model", req.Model))

	out, err = f.secondary.Complete(ctx, CompletionRequest{
		Prompt:    req.Prompt,
		Model:     req.Model,
		WebSearch: req.WebSearch,
	})
	if err != nil {
		return Completion{}, fmt.Errorf("fallback transport: %w", err)
	}
	return out, nil
}
