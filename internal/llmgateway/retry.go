package llmgateway

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	apperrors "github.com/riskline/riskline/internal/errors"
)

const (
	maxRetries = 5
	baseDelay  = 5 * time.Second
)

// generateWithRetry wraps Gemini's GenerateContent with exponential backoff
// on quota/rate-limit errors: 5s, 10s, 20s, 40s, 80s. A non-quota failure or
// exhausted retries surfaces a TransientRemote or Quota error respectively.
func generateWithRetry(ctx context.Context, logger *slog.Logger, client *genai.Client, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		resp, err := client.Models.GenerateContent(ctx, model, contents, config)
		if err == nil {
			if attempt > 0 {
				logger.Info("gemini request succeeded after retry", "attempt", attempt+1)
			}
			return resp, nil
		}

		if !isQuotaError(err) {
			return nil, apperrors.TransientRemoteError(err, "gemini generate content")
		}

		if attempt == maxRetries {
			return nil, apperrors.QuotaError(err, "gemini quota exhausted after retries")
		}

		delay := baseDelay * time.Duration(1<<uint(attempt))
		logger.Warn("gemini rate limit, retrying with backoff",
			"attempt", attempt+1, "max_retries", maxRetries, "delay", delay)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, apperrors.TransientRemoteError(ctx.Err(), "gemini retry cancelled")
		}
	}
	return nil, apperrors.InternalError("unexpected gemini retry loop exit")
}

func isQuotaError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "Resource exhausted") ||
		strings.Contains(msg, "RESOURCE_EXHAUSTED")
}
