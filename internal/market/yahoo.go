package market

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/quote"
)

// YahooProvider serves exchange tickers such as AAPL or BRK-B.
type YahooProvider struct {
	fetch func(symbol string) (*finance.Quote, error)
}

func NewYahooProvider() *YahooProvider {
	return &YahooProvider{fetch: quote.Get}
}

func (p *YahooProvider) GetQuotes(ctx context.Context, symbols []string) ([]Quote, string, error) {
	if len(symbols) == 0 {
		return nil, "", fmt.Errorf("symbols is empty")
	}
	out := make([]Quote, 0, len(symbols))
	for _, sym := range symbols {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}
		q, err := p.getOne(sym)
		if err != nil {
			return nil, "", err
		}
		out = append(out, q)
	}
	return out, "yahoo", nil
}

func (p *YahooProvider) getOne(symbol string) (Quote, error) {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	if sym == "" {
		return Quote{}, fmt.Errorf("invalid symbol: %q", symbol)
	}
	q, err := p.fetch(sym)
	if err != nil {
		return Quote{}, fmt.Errorf("request yahoo %s: %w", sym, err)
	}
	if q == nil {
		return Quote{}, fmt.Errorf("yahoo: no quote for %s", sym)
	}
	if q.RegularMarketPrice <= 0 {
		return Quote{}, fmt.Errorf("invalid price for %s", sym)
	}

	ts := int64(q.RegularMarketTime)
	if ts == 0 {
		ts = time.Now().Unix()
	}
	raw, _ := json.Marshal(map[string]any{
		"price":      q.RegularMarketPrice,
		"change_pct": q.RegularMarketChangePercent,
		"open":       q.RegularMarketOpen,
		"high":       q.RegularMarketDayHigh,
		"low":        q.RegularMarketDayLow,
		"prev_close": q.RegularMarketPreviousClose,
		"volume":     q.RegularMarketVolume,
	})
	return Quote{
		Symbol:    sym,
		Name:      q.ShortName,
		Price:     q.RegularMarketPrice,
		ChangePct: q.RegularMarketChangePercent,
		Volume:    float64(q.RegularMarketVolume),
		TS:        ts,
		Raw:       string(raw),
	}, nil
}
