package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xela07ax/agent-mandate/internal/connectors"
	"github.com/xela07ax/agent-mandate/internal/domain"
	"github.com/xela07ax/agent-mandate/internal/infra"
)

const breakerName = "purchase-provider"

// ReliabilityWrapper оборачивает поставщика: Rate Limiter -> Circuit Breaker -> Retries -> Timeout.
// Сам реализует PurchaseProvider, поэтому шлюз не знает о его существовании.
type ReliabilityWrapper struct {
	next        PurchaseProvider
	cb          *gobreaker.CircuitBreaker
	limiter     *rate.Limiter
	attempts    uint
	callTimeout time.Duration
}

func NewReliabilityWrapper(next PurchaseProvider, cfg infra.EngineConfig, metrics *Metrics, logger *zap.Logger) *ReliabilityWrapper {
	log := logger.Named("reliability")

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: cfg.CBMaxRequests,
		Interval:    cfg.CBInterval,
		Timeout:     cfg.CBTimeout, // Время, через которое CB попробует "закрыться"
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// Более 5 ошибок подряд, открываемся
			return counts.ConsecutiveFailures > 5
		},
		// Бизнес-отказ поставщика не признак его падения
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, connectors.ErrProductUnavailable)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
			if metrics != nil {
				metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			}
		},
	})

	attempts := cfg.RetryAttempts
	if attempts == 0 {
		attempts = 1
	}

	return &ReliabilityWrapper{
		next:        next,
		cb:          cb,
		limiter:     rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		attempts:    attempts,
		callTimeout: cfg.CallTimeout,
	}
}

// Quote: чтение цен: только лимитер, без предохранителя.
func (w *ReliabilityWrapper) Quote(ctx context.Context, productName string) ([]domain.ProductSpecification, error) {
	if err := w.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit exceeded: %w", err)
	}
	return w.next.Quote(ctx, productName)
}

func (w *ReliabilityWrapper) Purchase(ctx context.Context, order domain.PurchaseOrder) (domain.PurchaseReceipt, error) {
	// 1. Rate Limiter
	if err := w.limiter.Wait(ctx); err != nil {
		return domain.PurchaseReceipt{}, fmt.Errorf("rate limit exceeded: %w", err)
	}

	var receipt domain.PurchaseReceipt

	// 2. Circuit Breaker
	_, err := w.cb.Execute(func() (interface{}, error) {
		r := retry.New(
			retry.Context(ctx),
			retry.Attempts(w.attempts),
			retry.LastErrorOnly(true),
			retry.RetryIf(func(err error) bool {
				return !errors.Is(err, connectors.ErrProductUnavailable)
			}),
			retry.DelayType(func(n uint, err error, config retry.DelayContext) time.Duration {
				// Поставщик сам сказал, сколько ждать
				var tErr *connectors.ThrottleError
				if errors.As(err, &tErr) {
					return tErr.RetryAfter
				}
				return retry.BackOffDelay(n, err, config)
			}),
		)

		retryErr := r.Do(func() error {
			tCtx, cancel := w.withTimeout(ctx)
			defer cancel()

			var callErr error
			receipt, callErr = w.next.Purchase(tCtx, order)
			return callErr
		})

		return nil, retryErr
	})

	if err != nil {
		return domain.PurchaseReceipt{}, err
	}
	return receipt, nil
}

func (w *ReliabilityWrapper) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if w.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, w.callTimeout)
}
