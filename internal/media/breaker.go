package media

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"chanplan/internal/models"
)

// breakerServer guards every remote call with a circuit breaker so a dead
// server fails fast instead of stalling sync jobs on timeouts.
type breakerServer struct {
	inner ContentServer
	cb    *gobreaker.CircuitBreaker
}

// WithBreaker wraps a client in a circuit breaker. The breaker opens after
// three consecutive failures and probes again after thirty seconds.
func WithBreaker(inner ContentServer) ContentServer {
	return &breakerServer{
		inner: inner,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:     inner.Name(),
			Interval: time.Minute,
			Timeout:  30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 3
			},
			// Only dependency failures count toward opening. A missing
			// item, a rejected token or a cancelled job says nothing
			// about the server's health.
			IsSuccessful: func(err error) bool {
				return models.KindOf(err) != models.KindDependency
			},
		}),
	}
}

func (b *breakerServer) Name() string            { return b.inner.Name() }
func (b *breakerServer) Type() models.ServerType { return b.inner.Type() }

func (b *breakerServer) TestConnection(ctx context.Context) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, b.inner.TestConnection(ctx)
	})
	return b.classify(err)
}

func (b *breakerServer) GetLibraries(ctx context.Context) ([]models.Library, error) {
	v, err := b.cb.Execute(func() (any, error) {
		return b.inner.GetLibraries(ctx)
	})
	if err != nil {
		return nil, b.classify(err)
	}
	return v.([]models.Library), nil
}

func (b *breakerServer) GetLibraryItems(ctx context.Context, libraryID string) ([]models.Content, error) {
	v, err := b.cb.Execute(func() (any, error) {
		return b.inner.GetLibraryItems(ctx, libraryID)
	})
	if err != nil {
		return nil, b.classify(err)
	}
	return v.([]models.Content), nil
}

func (b *breakerServer) GetItemDetails(ctx context.Context, itemID string) (*models.PoolItem, error) {
	v, err := b.cb.Execute(func() (any, error) {
		return b.inner.GetItemDetails(ctx, itemID)
	})
	if err != nil {
		return nil, b.classify(err)
	}
	return v.(*models.PoolItem), nil
}

// classify turns breaker rejections into dependency errors; everything else
// already carries its own classification from the client.
func (b *breakerServer) classify(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return models.DependencyError("media server %s: %w", b.inner.Name(), err)
	}
	return err
}
