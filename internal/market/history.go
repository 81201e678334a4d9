package market

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
)

// Bar is one daily OHLCV candle.
type Bar struct {
	TS     int64   `json:"ts"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// HistorySource returns daily bars, oldest first.
type HistorySource interface {
	History(ctx context.Context, symbol string, days int) ([]Bar, error)
}

// YahooHistory reads daily candles from the Yahoo chart endpoint.
type YahooHistory struct {
	fetch func(params *chart.Params) ([]Bar, error)
	now   func() time.Time
}

func NewYahooHistory() *YahooHistory {
	return &YahooHistory{fetch: fetchChart, now: time.Now}
}

func (y *YahooHistory) History(ctx context.Context, symbol string, days int) ([]Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sym := toYahooSymbol(symbol)
	if sym == "" {
		return nil, fmt.Errorf("invalid symbol: %q", symbol)
	}
	if days <= 0 {
		days = 120
	}
	end := y.now()
	start := end.AddDate(0, 0, -days)
	bars, err := y.fetch(&chart.Params{
		Symbol:   sym,
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
		Interval: datetime.OneDay,
	})
	if err != nil {
		return nil, fmt.Errorf("request yahoo chart %s: %w", sym, err)
	}
	return bars, nil
}

func fetchChart(params *chart.Params) ([]Bar, error) {
	iter := chart.Get(params)
	var out []Bar
	for iter.Next() {
		b := iter.Bar()
		open, _ := b.Open.Float64()
		high, _ := b.High.Float64()
		low, _ := b.Low.Float64()
		closePrice, _ := b.Close.Float64()
		if closePrice <= 0 {
			continue
		}
		out = append(out, Bar{
			TS:     int64(b.Timestamp),
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closePrice,
			Volume: float64(b.Volume),
		})
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// toYahooSymbol maps sh/sz A-share codes to Yahoo's .SS/.SZ suffixes and
// upper-cases everything else.
func toYahooSymbol(symbol string) string {
	s := strings.ToLower(strings.TrimSpace(symbol))
	if isAShare(s) {
		if strings.HasPrefix(s, "sh") {
			return s[2:] + ".SS"
		}
		return s[2:] + ".SZ"
	}
	return strings.ToUpper(s)
}
