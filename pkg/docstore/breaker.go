package docstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

type BreakerConfig struct {
	Name        string
	MaxFailures uint32
	OpenTimeout time.Duration
}

// Breaker guards a Backend with a circuit breaker. Only transient failures
// count against the circuit; a permission denial is a healthy answer.
type Breaker struct {
	next Backend
	cb   *gobreaker.CircuitBreaker[any]
}

func NewBreaker(next Backend, cfg BreakerConfig, log *slog.Logger) *Breaker {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 15 * time.Second
	}
	if cfg.Name == "" {
		cfg.Name = "docstore"
	}
	if log == nil {
		log = slog.Default()
	}

	st := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= cfg.MaxFailures
		},
		IsSuccessful: func(err error) bool {
			return !IsTransient(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Info("circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
		},
	}
	return &Breaker{next: next, cb: gobreaker.NewCircuitBreaker[any](st)}
}

func (b *Breaker) State() gobreaker.State { return b.cb.State() }

func (b *Breaker) Get(ctx context.Context, parent, id string) (Document, error) {
	v, err := b.cb.Execute(func() (any, error) {
		return b.next.Get(ctx, parent, id)
	})
	if err != nil {
		return Document{}, wrapBreaker(err)
	}
	return v.(Document), nil
}

func (b *Breaker) Query(ctx context.Context, q Query) ([]Document, error) {
	v, err := b.cb.Execute(func() (any, error) {
		return b.next.Query(ctx, q)
	})
	if err != nil {
		return nil, wrapBreaker(err)
	}
	return v.([]Document), nil
}

func (b *Breaker) Commit(ctx context.Context, m Mutation) (Document, error) {
	v, err := b.cb.Execute(func() (any, error) {
		return b.next.Commit(ctx, m)
	})
	if err != nil {
		return Document{}, wrapBreaker(err)
	}
	return v.(Document), nil
}

func wrapBreaker(err error) error {
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return err
}
