package remote

import (
	"context"
	"log"
	"os"

	"github.com/mind-engage/dsat-sync/internal/attempt"
	"github.com/mind-engage/dsat-sync/internal/metrics"
)

// Notifier is told which ids a bulk upsert wrote. Notifier errors are logged,
// never returned to the caller: the records are already stored.
type Notifier interface {
	AttemptsSaved(ctx context.Context, userID string, ids []string) error
}

type Service struct {
	store     Store
	metrics   *metrics.Metrics
	notifiers []Notifier
	log       *log.Logger
}

type Option func(*Service)

func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifiers = append(s.notifiers, n)
		}
	}
}

func WithLogger(l *log.Logger) Option { return func(s *Service) { s.log = l } }

func NewService(store Store, opts ...Option) *Service {
	s := &Service{store: store, log: log.New(os.Stderr, "[remote] ", log.LstdFlags)}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) List(ctx context.Context, userID string, since int64) ([]attempt.Wire, error) {
	if userID == "" {
		return nil, ErrNoUser
	}
	defer s.metrics.ObserveStore("list")()
	out, err := s.store.List(ctx, userID, since)
	if err != nil {
		return nil, err
	}
	s.metrics.Listed(len(out))
	return out, nil
}

// BulkUpsert validates the whole batch before touching the store.
func (s *Service) BulkUpsert(ctx context.Context, userID string, batch []attempt.Wire) ([]string, error) {
	if userID == "" {
		return nil, ErrNoUser
	}
	if err := ValidateBatch(batch); err != nil {
		s.metrics.BatchFailed("invalid")
		return nil, err
	}
	done := s.metrics.ObserveStore("bulk_upsert")
	saved, err := s.store.BulkUpsert(ctx, userID, batch)
	done()
	if err != nil {
		s.metrics.BatchFailed("error")
		return nil, err
	}
	s.metrics.Upserted(len(saved), len(batch)-len(saved))
	if saved == nil {
		saved = []string{}
	}
	if len(saved) > 0 {
		for _, n := range s.notifiers {
			if err := n.AttemptsSaved(ctx, userID, saved); err != nil {
				s.log.Printf("notify %T: %v", n, err)
			}
		}
	}
	return saved, nil
}
