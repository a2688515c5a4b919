package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/cenk/backoff"
	circuit "github.com/rubyist/circuitbreaker"

	"github.com/matzehuels/mvnresolve/pkg/artifact"
)

// DefaultBreakerThreshold is the number of consecutive transfer failures
// that opens a host's circuit.
const DefaultBreakerThreshold = 5

// Breakers keeps one circuit breaker per host, shared by every transport
// talking to that host. Not-found outcomes never count as failures.
type Breakers struct {
	threshold int
	factory   func(artifact.RemoteRepository) Transport
	mu        sync.RWMutex
	breakers  map[string]*circuit.Breaker
}

// NewBreakers returns a breaker set creating the inner transports with
// factory.
func NewBreakers(threshold int, factory func(artifact.RemoteRepository) Transport) *Breakers {
	if threshold <= 0 {
		threshold = DefaultBreakerThreshold
	}
	return &Breakers{threshold: threshold, factory: factory, breakers: make(map[string]*circuit.Breaker)}
}

// For returns the breaker-guarded transport of repo.
func (b *Breakers) For(repo artifact.RemoteRepository) *BreakerTransport {
	host := hostOf(repo.URL)
	return &BreakerTransport{next: b.factory(repo), host: host, breaker: b.breaker(host)}
}

// Wrap guards next with the breaker of host.
func (b *Breakers) Wrap(host string, next Transport) *BreakerTransport {
	return &BreakerTransport{next: next, host: host, breaker: b.breaker(host)}
}

// State reports "open" or "closed" per host.
func (b *Breakers) State() map[string]string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	states := make(map[string]string, len(b.breakers))
	for host, br := range b.breakers {
		if br.Tripped() {
			states[host] = "open"
		} else {
			states[host] = "closed"
		}
	}
	return states
}

func (b *Breakers) breaker(host string) *circuit.Breaker {
	b.mu.RLock()
	br, ok := b.breakers[host]
	b.mu.RUnlock()
	if ok {
		return br
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if br, ok := b.breakers[host]; ok {
		return br
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 30 * time.Second
	expBackoff.MaxInterval = 5 * time.Minute
	expBackoff.Multiplier = 2.0
	expBackoff.Reset()

	br = circuit.NewBreakerWithOptions(&circuit.Options{
		BackOff:    expBackoff,
		ShouldTrip: circuit.ThresholdTripFunc(int64(b.threshold)),
	})
	b.breakers[host] = br
	return br
}

// BreakerTransport fails fast while the circuit of its host is open.
type BreakerTransport struct {
	next    Transport
	host    string
	breaker *circuit.Breaker
}

// NewBreakerTransport guards next with a private breaker that opens after
// threshold consecutive transfer failures.
func NewBreakerTransport(next Transport, threshold int) *BreakerTransport {
	host := "default"
	if h, ok := next.(*HTTPTransport); ok {
		host = h.Host()
	}
	return NewBreakers(threshold, nil).Wrap(host, next)
}

func (t *BreakerTransport) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	var body io.ReadCloser
	err := t.call(path, func() error {
		var err error
		body, err = t.next.Get(ctx, path)
		return err
	})
	return body, err
}

func (t *BreakerTransport) Put(ctx context.Context, path string, data []byte) error {
	return t.call(path, func() error { return t.next.Put(ctx, path, data) })
}

func (t *BreakerTransport) call(path string, fn func() error) error {
	if !t.breaker.Ready() {
		return transferError(path, fmt.Errorf("circuit breaker open for %s", t.host))
	}
	var missing error
	err := t.breaker.Call(func() error {
		err := fn()
		if errors.Is(err, ErrNotFound) {
			missing = err
			return nil
		}
		return err
	}, 0)
	if missing != nil {
		return missing
	}
	return err
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Host
}
