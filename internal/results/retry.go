package results

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
)

// isNetworkError checks if an error is likely due to network issues
func isNetworkError(err error) bool {
	if err == nil {
		return false
	}

	errorStr := strings.ToLower(err.Error())
	networkErrorPatterns := []string{
		"connection refused",
		"connection timeout",
		"connection timed out",
		"connection reset",
		"network is unreachable",
		"no such host",
		"temporary failure in name resolution",
		"i/o timeout",
		"dial tcp",
		"tls handshake timeout",
		"bad gateway",
		"service unavailable",
		"gateway timeout",
		"slow down",
	}

	for _, pattern := range networkErrorPatterns {
		if strings.Contains(errorStr, pattern) {
			return true
		}
	}

	return false
}

// retryWithBackoff retries fn on network errors with a growing delay
func (p *Publisher) retryWithBackoff(ctx context.Context, operation string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < p.retryAttempts; attempt++ {
		if attempt > 0 {
			backoffDelay := time.Duration(float64(p.retryDelay) * (1.5 * float64(attempt)))

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoffDelay):
			}

			p.logger.Warn("retrying",
				zap.String("operation", operation),
				zap.Int("attempt", attempt+1),
				zap.Int("of", p.retryAttempts),
			)
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		// only network errors are worth retrying
		if !isNetworkError(lastErr) {
			break
		}
		if ctx.Err() != nil {
			break
		}
	}

	return lastErr
}
