package market

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"stocksage/internal/store"
)

// Service throttles provider calls, keeps the last quote per symbol and
// falls back to it when the providers fail.
type Service struct {
	provider    Provider
	minInterval time.Duration
	store       *store.Store
	now         func() time.Time

	mu                  sync.Mutex
	lastFetch           time.Time
	cache               map[string]Quote
	consecutiveFailures int
}

func NewService(provider Provider, minInterval time.Duration, st *store.Store) *Service {
	if minInterval < 0 {
		minInterval = 0
	}
	return &Service{
		provider:    provider,
		minInterval: minInterval,
		store:       st,
		now:         time.Now,
		cache:       make(map[string]Quote),
	}
}

func (s *Service) GetQuotes(ctx context.Context, symbols []string) ([]Quote, error) {
	res, err := s.Lookup(ctx, symbols)
	return res.Quotes, err
}

func (s *Service) Lookup(ctx context.Context, symbols []string) (Result, error) {
	if s == nil || s.provider == nil {
		return Result{}, fmt.Errorf("market provider not configured")
	}
	if len(symbols) == 0 {
		return Result{}, fmt.Errorf("symbols is empty")
	}

	s.mu.Lock()
	if s.minInterval > 0 && s.now().Sub(s.lastFetch) < s.minInterval {
		if cached, err := s.getFromCacheLocked(symbols); err == nil {
			s.mu.Unlock()
			return Result{
				Quotes:   cached,
				Stale:    true,
				Source:   "cache",
				SourceTS: maxQuoteTS(cached),
				Warnings: []string{"requests too frequent, serving cached quotes"},
			}, nil
		}
	}
	s.mu.Unlock()

	quotes, source, err := s.provider.GetQuotes(ctx, symbols)
	if err == nil {
		s.mu.Lock()
		for _, q := range quotes {
			s.cache[cacheKey(q.Symbol)] = q
		}
		s.lastFetch = s.now()
		s.consecutiveFailures = 0
		s.mu.Unlock()
		return Result{Quotes: quotes, Source: source, SourceTS: s.now().Unix()}, nil
	}

	s.mu.Lock()
	s.consecutiveFailures++
	cached, cacheErr := s.getFromCacheLocked(symbols)
	s.mu.Unlock()
	if cacheErr == nil {
		return Result{
			Quotes:   cached,
			Stale:    true,
			Source:   "cache",
			SourceTS: maxQuoteTS(cached),
			Warnings: []string{fmt.Sprintf("quote fetch failed, serving cache: %v", err)},
		}, nil
	}
	return Result{Source: source}, err
}

// PollAndStore fetches quotes and records one snapshot per symbol.
func (s *Service) PollAndStore(ctx context.Context, symbols []string) error {
	res, err := s.Lookup(ctx, symbols)
	if err != nil {
		log.Printf("market poll error: %v", err)
		return err
	}
	if res.Stale {
		return nil
	}
	for _, q := range res.Quotes {
		snapshot := store.MarketSnapshot{
			TS:        q.TS,
			Symbol:    q.Symbol,
			Price:     q.Price,
			ChangePct: q.ChangePct,
			Volume:    q.Volume,
			Raw:       q.Raw,
		}
		if err := s.store.InsertMarketSnapshot(snapshot); err != nil {
			log.Printf("insert market snapshot error: %v", err)
		}
	}
	return nil
}

// PollLoop polls the symbols returned by list until ctx is done, backing off
// after repeated failures.
func (s *Service) PollLoop(ctx context.Context, list func() []string, baseInterval time.Duration) {
	if baseInterval <= 0 {
		baseInterval = 30 * time.Second
	}
	for {
		var err error
		if symbols := list(); len(symbols) > 0 {
			err = s.PollAndStore(ctx, symbols)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.nextPollInterval(baseInterval, err != nil)):
		}
	}
}

func (s *Service) nextPollInterval(base time.Duration, failed bool) time.Duration {
	if !failed {
		return base
	}
	s.mu.Lock()
	failures := s.consecutiveFailures
	s.mu.Unlock()
	if failures >= 6 {
		return base * 4
	}
	if failures >= 3 {
		return base * 2
	}
	return base
}

func (s *Service) getFromCacheLocked(symbols []string) ([]Quote, error) {
	out := make([]Quote, 0, len(symbols))
	for _, sym := range symbols {
		q, ok := s.cache[cacheKey(sym)]
		if !ok {
			return nil, fmt.Errorf("cache miss for symbol: %s", sym)
		}
		out = append(out, q)
	}
	return out, nil
}

func cacheKey(symbol string) string {
	return strings.ToLower(strings.TrimSpace(symbol))
}

func maxQuoteTS(quotes []Quote) int64 {
	var maxTS int64
	for _, q := range quotes {
		if q.TS > maxTS {
			maxTS = q.TS
		}
	}
	return maxTS
}
