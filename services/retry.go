package services

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github/itish2003/rentalqa/models"
)

// RetryPolicy bounds every call to an external capability.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	CallTimeout     time.Duration
}

// DefaultRetryPolicy returns the policy used when config leaves it unset.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		CallTimeout:     60 * time.Second,
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.InitialInterval <= 0 {
		p.InitialInterval = def.InitialInterval
	}
	if p.MaxInterval <= 0 {
		p.MaxInterval = def.MaxInterval
	}
	if p.CallTimeout <= 0 {
		p.CallTimeout = def.CallTimeout
	}
	return p
}

// do runs op until it succeeds, the attempts are used up, or ctx is done.
// Exhaustion is reported as ErrCapabilityUnavailable.
func (p RetryPolicy) do(ctx context.Context, name string, op func(ctx context.Context) error) error {
	p = p.withDefaults()

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.InitialInterval
	eb.MaxInterval = p.MaxInterval
	eb.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(p.MaxAttempts-1)), ctx)

	attempts := 0
	err := backoff.RetryNotify(func() error {
		attempts++
		callCtx, cancel := context.WithTimeout(ctx, p.CallTimeout)
		defer cancel()
		err := op(callCtx)
		if err != nil && ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}, b, func(err error, wait time.Duration) {
		logrus.WithFields(logrus.Fields{
			"component": "retry",
			"call":      name,
			"attempt":   attempts,
			"wait":      wait,
		}).Warnf("call failed, retrying: %v", err)
	})
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%s: %w", name, ctx.Err())
	}
	return fmt.Errorf("%w: %s failed after %d attempts: %w", ErrCapabilityUnavailable, name, attempts, err)
}

type retryEmbedder struct {
	next   Embedder
	policy RetryPolicy
}

// RetryEmbedder wraps e so each call is timed out and retried per policy.
func RetryEmbedder(e Embedder, policy RetryPolicy) Embedder {
	return &retryEmbedder{next: e, policy: policy}
}

func (r *retryEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	var out [][]float32
	err := r.policy.do(ctx, "embed documents", func(ctx context.Context) error {
		v, err := r.next.EmbedDocuments(ctx, texts)
		out = v
		return err
	})
	return out, err
}

func (r *retryEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	var out []float32
	err := r.policy.do(ctx, "embed query", func(ctx context.Context) error {
		v, err := r.next.EmbedQuery(ctx, text)
		out = v
		return err
	})
	return out, err
}

type retryGenerator struct {
	next   Generator
	policy RetryPolicy
}

// RetryGenerator wraps g so each call is timed out and retried per policy.
func RetryGenerator(g Generator, policy RetryPolicy) Generator {
	return &retryGenerator{next: g, policy: policy}
}

func (r *retryGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	var out string
	err := r.policy.do(ctx, "generate", func(ctx context.Context) error {
		v, err := r.next.Generate(ctx, system, prompt)
		out = v
		return err
	})
	return out, err
}

type retryIndex struct {
	next   VectorIndex
	policy RetryPolicy
}

// RetryIndex wraps idx so each call is timed out and retried per policy.
// Close is passed through untouched.
func RetryIndex(idx VectorIndex, policy RetryPolicy) VectorIndex {
	return &retryIndex{next: idx, policy: policy}
}

func (r *retryIndex) Upsert(ctx context.Context, namespace string, records []models.IndexedRecord) error {
	return r.policy.do(ctx, "index upsert", func(ctx context.Context) error {
		return r.next.Upsert(ctx, namespace, records)
	})
}

func (r *retryIndex) Query(ctx context.Context, namespace string, vector []float32, k int) ([]models.RetrievedDocument, error) {
	var out []models.RetrievedDocument
	err := r.policy.do(ctx, "index query", func(ctx context.Context) error {
		v, err := r.next.Query(ctx, namespace, vector, k)
		out = v
		return err
	})
	return out, err
}

func (r *retryIndex) DeleteBySource(ctx context.Context, namespace, source string) error {
	return r.policy.do(ctx, "index delete", func(ctx context.Context) error {
		return r.next.DeleteBySource(ctx, namespace, source)
	})
}

func (r *retryIndex) Count(ctx context.Context, namespace string) (int, error) {
	var out int
	err := r.policy.do(ctx, "index count", func(ctx context.Context) error {
		v, err := r.next.Count(ctx, namespace)
		out = v
		return err
	})
	return out, err
}

func (r *retryIndex) Close() error { return r.next.Close() }
