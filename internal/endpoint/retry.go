package endpoint

import (
	"context"
	"time"

	"github.com/nextlevelbuilder/mcpbridge/internal/config"
	"github.com/nextlevelbuilder/mcpbridge/internal/mcperr"
	"github.com/nextlevelbuilder/mcpbridge/internal/mcpservice"
)

// retryableSet builds a lookup from a RetryConfig's configured code list,
// falling back to the taxonomy default when the config leaves it empty.
func retryableSet(cfg config.RetryConfig) map[mcperr.Code]bool {
	if len(cfg.RetryableCodes) == 0 {
		return map[mcperr.Code]bool{
			mcperr.CodeServiceUnavailable: true,
			mcperr.CodeTimeout:            true,
			mcperr.CodeTransportError:     true,
			mcperr.CodeToolExecutionError: true,
		}
	}
	set := make(map[mcperr.Code]bool, len(cfg.RetryableCodes))
	for _, c := range cfg.RetryableCodes {
		set[mcperr.Code(c)] = true
	}
	return set
}

// callToolWithRetry wraps a single tool dispatch with the Endpoint's
// configured retry policy: retryable failures are retried with
// cfg.Delay(attempt) backoff up to MaxAttempts; a non-retryable
// failure (e.g. ToolNotFound) short-circuits immediately.
func callToolWithRetry(ctx context.Context, catalog ToolCatalog, cfg config.RetryConfig, name string, args map[string]interface{}) (*mcpservice.ToolResult, error) {
	retryable := retryableSet(cfg)
	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := catalog.CallTool(ctx, name, args)
		if err == nil {
			return result, nil
		}
		lastErr = err

		code := mcperr.CodeOf(err)
		if !retryable[code] || attempt == maxAttempts {
			return nil, err
		}

		delay := cfg.Delay(attempt)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, lastErr
}
