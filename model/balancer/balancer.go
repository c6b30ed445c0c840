// Package balancer spreads completion requests over several model backends.
//
// Requests are assigned round-robin. When a backend fails before emitting any
// chunk the request fails over to the next backend, so N agents sharing one
// Balancer keep working while individual nodes are down.
package balancer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/hupe1980/reactmesh/logging"
	"github.com/hupe1980/reactmesh/model"
)

// Options configures a Balancer.
type Options struct {
	Logger logging.Logger

	// Failover retries on the next backend when one fails before producing output.
	Failover bool
}

// Balancer implements model.Model over a fixed set of backends.
type Balancer struct {
	backends []model.Model
	next     atomic.Uint64
	opts     Options
}

var _ model.Model = (*Balancer)(nil)

// New creates a balancer. At least one backend is required.
func New(backends []model.Model, optFns ...func(o *Options)) (*Balancer, error) {
	if len(backends) == 0 {
		return nil, errors.New("balancer: at least one backend is required")
	}

	opts := Options{
		Logger:   logging.NoOpLogger{},
		Failover: true,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Balancer{backends: append([]model.Model(nil), backends...), opts: opts}, nil
}

// Generate forwards the request to the next backend in rotation.
func (b *Balancer) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	start := int(b.next.Add(1)-1) % len(b.backends)

	go func() {
		defer close(out)
		defer close(errCh)

		attempts := 1
		if b.opts.Failover {
			attempts = len(b.backends)
		}

		var errs []error

		for i := 0; i < attempts; i++ {
			idx := (start + i) % len(b.backends)
			backend := b.backends[idx]

			forwarded, err := forward(ctx, backend, req, out)
			if err == nil {
				return
			}

			b.opts.Logger.Warn("model.backend.failed", "backend", idx, "model", backend.Info().Name, "error", err.Error())
			errs = append(errs, fmt.Errorf("backend %d: %w", idx, err))

			if forwarded || ctx.Err() != nil {
				break
			}
		}

		errCh <- errors.Join(errs...)
	}()

	return out, errCh
}

// forward pipes one backend's chunks to out and reports whether any chunk was sent.
func forward(ctx context.Context, m model.Model, req model.Request, out chan<- model.Response) (bool, error) {
	respCh, errCh := m.Generate(ctx, req)

	forwarded := false

	for respCh != nil || errCh != nil {
		select {
		case r, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			select {
			case out <- r:
				forwarded = true
			case <-ctx.Done():
				return forwarded, ctx.Err()
			}
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return forwarded, err
			}
		case <-ctx.Done():
			return forwarded, ctx.Err()
		}
	}

	return forwarded, nil
}

// Info describes the balancer and its backends.
func (b *Balancer) Info() model.Info {
	names := make([]string, len(b.backends))
	providers := make([]string, 0, len(b.backends))
	seen := map[string]bool{}

	for i, m := range b.backends {
		info := m.Info()
		names[i] = info.Name
		if !seen[info.Provider] {
			seen[info.Provider] = true
			providers = append(providers, info.Provider)
		}
	}

	return model.Info{
		Name:     "balancer(" + strings.Join(names, ",") + ")",
		Provider: strings.Join(providers, ","),
	}
}

// Len returns the number of backends.
func (b *Balancer) Len() int { return len(b.backends) }
