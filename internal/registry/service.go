package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Cache stores fetched documents keyed by business identifier.
type Cache interface {
	Get(ctx context.Context, businessID string) (*Document, bool, error)
	Put(ctx context.Context, businessID string, doc *Document) error
}

// Service resolves business documents, polling the registry until the
// requested document is ready and caching the result.
type Service struct {
	client   Client
	cache    Cache
	attempts int
	interval time.Duration
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithCache enables document caching.
func WithCache(cache Cache) Option {
	return func(s *Service) {
		s.cache = cache
	}
}

// WithPolling bounds how long a pending document is waited for.
func WithPolling(attempts int, interval time.Duration) Option {
	return func(s *Service) {
		if attempts > 0 {
			s.attempts = attempts
		}
		if interval > 0 {
			s.interval = interval
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func NewService(client Client, opts ...Option) *Service {
	s := &Service{
		client:   client,
		attempts: 5,
		interval: 2 * time.Second,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Lookup returns the registry document for businessID. A business unknown to
// the registry yields an error for which IsNotFound is true.
func (s *Service) Lookup(ctx context.Context, businessID string) (*Document, error) {
	if s.cache != nil {
		doc, ok, err := s.cache.Get(ctx, businessID)
		if err != nil {
			s.logger.WarnContext(ctx, "registry cache read failed", "business_id", businessID, "error", err)
		} else if ok {
			return doc, nil
		}
	}

	doc, err := s.fetch(ctx, businessID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Put(ctx, businessID, doc); err != nil {
			s.logger.WarnContext(ctx, "registry cache write failed", "business_id", businessID, "error", err)
		}
	}
	return doc, nil
}

func (s *Service) fetch(ctx context.Context, businessID string) (*Document, error) {
	var (
		requestID string
		err       error
	)
	for attempt := 0; attempt < s.attempts; attempt++ {
		if attempt > 0 {
			if err := s.wait(ctx); err != nil {
				return nil, err
			}
		}
		if requestID == "" {
			requestID, err = s.client.RequestDocuments(ctx, businessID)
			if errors.Is(err, ErrDocumentNotReady) {
				continue
			}
			if err != nil {
				return nil, err
			}
		}

		doc, err := s.client.FetchDocument(ctx, businessID, requestID)
		if errors.Is(err, ErrDocumentNotReady) {
			s.logger.DebugContext(ctx, "registry document pending",
				"business_id", businessID, "attempt", attempt+1)
			continue
		}
		if err != nil {
			return nil, err
		}
		return doc, nil
	}
	return nil, newError(ErrorTimeout,
		fmt.Sprintf("document for %s not ready after %d attempts", businessID, s.attempts), ErrDocumentNotReady)
}

func (s *Service) wait(ctx context.Context) error {
	timer := time.NewTimer(s.interval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
