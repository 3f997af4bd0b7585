package authorization

import (
	"context"
	"time"

	"clinical-consent/internal/domain/qrtokens"
	"clinical-consent/internal/platform/logger"
)

const (
	DefaultCleanupInterval = 10 * time.Minute
	DefaultTokenRetention  = 24 * time.Hour
)

// Janitor borra tokens vencidos hace más de retention. Es solo higiene:
// el vencimiento se valida siempre al leer, no depende de que corra a tiempo.
// Los grants nunca se borran.
type Janitor struct {
	tokens    qrtokens.Repository
	interval  time.Duration
	retention time.Duration
	log       logger.Logger
	now       func() time.Time
}

func NewJanitor(tokens qrtokens.Repository, interval, retention time.Duration, log logger.Logger) *Janitor {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	if retention < 0 {
		retention = DefaultTokenRetention
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Janitor{
		tokens:    tokens,
		interval:  interval,
		retention: retention,
		log:       log,
		now:       time.Now,
	}
}

// Run bloquea hasta que ctx se cancela.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = j.Sweep(ctx)
		}
	}
}

func (j *Janitor) Sweep(ctx context.Context) (int64, error) {
	before := j.now().Add(-j.retention)
	n, err := j.tokens.DeleteExpired(ctx, before)
	if err != nil {
		j.log.Warn("token cleanup failed", map[string]any{"error": err})
		return 0, err
	}
	if n > 0 {
		j.log.Info("expired tokens purged", map[string]any{"count": n, "before": before})
	}
	return n, nil
}
