package retry

import (
	"context"
	"time"
)

// Backoff define a política de retentativa exponencial de um passo
type Backoff struct {
	Base        time.Duration
	Max         time.Duration
	MaxAttempts int
}

// DelayFor calcula o atraso antes da tentativa seguinte: base * 2^(attempt-1),
// limitado ao teto configurado
func (b Backoff) DelayFor(attempt int) time.Duration {
	delay := b.Base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= b.Max {
			return b.Max
		}
	}
	if delay > b.Max {
		return b.Max
	}
	return delay
}

// Config controla a execução com retentativas
type Config struct {
	Backoff Backoff

	// Retryable decide se o erro da tentativa permite nova tentativa
	Retryable func(error) bool

	// OnRetry é chamado entre tentativas; retornando erro a execução é
	// abortada imediatamente (usado para checar cancelamento do job)
	OnRetry func(attempt int, err error) error
}

// Do executa fn até sucesso, erro não-retentável, esgotamento de tentativas ou
// cancelamento do contexto. Retorna o número de tentativas executadas e o
// último erro observado.
func Do(ctx context.Context, cfg Config, fn func(context.Context) error) (int, error) {
	var lastErr error

	maxAttempts := cfg.Backoff.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return attempt, nil
		}

		if cfg.Retryable != nil && !cfg.Retryable(lastErr) {
			return attempt, lastErr
		}

		if attempt == maxAttempts {
			break
		}

		if cfg.OnRetry != nil {
			if err := cfg.OnRetry(attempt, lastErr); err != nil {
				return attempt, err
			}
		}

		select {
		case <-time.After(cfg.Backoff.DelayFor(attempt)):
		case <-ctx.Done():
			return attempt, ctx.Err()
		}
	}

	return maxAttempts, lastErr
}
