package enhancer

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"
)

type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 2,
		BaseDelay:  time.Second,
		MaxDelay:   8 * time.Second,
	}
}

func (r RetryConfig) delay(attempt int) time.Duration {
	d := time.Duration(float64(r.BaseDelay) * math.Pow(1.5, float64(attempt)))
	if d > r.MaxDelay {
		d = r.MaxDelay
	}
	return d
}

// generate sends one prompt, pacing on the limiter and retrying failed calls
// with exponential backoff. The response is trimmed.
func (e *Enhancer) generate(ctx context.Context, prompt string, opts ...llms.CallOption) (string, error) {
	var lastErr error

	for attempt := 0; attempt <= e.retry.MaxRetries; attempt++ {
		if err := e.limiter.Wait(ctx); err != nil {
			return "", err
		}

		text, err := llms.GenerateFromSinglePrompt(ctx, e.model, prompt, opts...)
		if err == nil {
			return strings.TrimSpace(text), nil
		}
		lastErr = err

		if attempt == e.retry.MaxRetries || ctx.Err() != nil {
			break
		}

		delay := e.retry.delay(attempt)
		e.logger.WithFields(logrus.Fields{
			"attempt": attempt + 1,
			"delay":   delay,
			"error":   err.Error(),
		}).Warn("Retrying LLM call")

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
	}

	return "", fmt.Errorf("LLM call failed: %w", lastErr)
}
