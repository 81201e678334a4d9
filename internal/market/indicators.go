package market

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"
)

// MinIndicatorBars is the shortest history that yields a MACD signal line.
const MinIndicatorBars = 35

// Indicators summarises daily history as of the last bar. SMA50 is only set
// when at least 50 bars are available.
type Indicators struct {
	Symbol     string   `json:"symbol"`
	AsOf       int64    `json:"as_of"`
	Bars       int      `json:"bars"`
	Close      float64  `json:"close"`
	SMA20      float64  `json:"sma20"`
	SMA50      *float64 `json:"sma50,omitempty"`
	EMA12      float64  `json:"ema12"`
	EMA26      float64  `json:"ema26"`
	MACD       float64  `json:"macd"`
	MACDSignal float64  `json:"macd_signal"`
	MACDHist   float64  `json:"macd_hist"`
	RSI14      float64  `json:"rsi14"`
	BollUpper  float64  `json:"boll_upper"`
	BollLower  float64  `json:"boll_lower"`
	ATR14      float64  `json:"atr14"`
	OBV        float64  `json:"obv"`
}

// ComputeIndicators derives the indicator set from bars ordered oldest
// first.
func ComputeIndicators(symbol string, bars []Bar) (Indicators, error) {
	if len(bars) < MinIndicatorBars {
		return Indicators{}, fmt.Errorf("need %d bars for indicators, got %d", MinIndicatorBars, len(bars))
	}
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}

	ema12 := emaSeries(closes, 12)
	ema26 := emaSeries(closes, 26)
	// MACD is defined once the slow EMA has seeded.
	macd := make([]float64, 0, len(closes)-25)
	for i := 25; i < len(closes); i++ {
		macd = append(macd, ema12[i]-ema26[i])
	}
	signal := emaSeries(macd, 9)

	last := len(closes) - 1
	mid := sma(closes, 20)
	sd := stddev(closes[len(closes)-20:], mid)

	ind := Indicators{
		Symbol:     symbol,
		AsOf:       bars[last].TS,
		Bars:       len(bars),
		Close:      round4(closes[last]),
		SMA20:      round4(mid),
		EMA12:      round4(ema12[last]),
		EMA26:      round4(ema26[last]),
		MACD:       round4(macd[len(macd)-1]),
		MACDSignal: round4(signal[len(signal)-1]),
		MACDHist:   round4(macd[len(macd)-1] - signal[len(signal)-1]),
		RSI14:      round4(rsi(closes, 14)),
		BollUpper:  round4(mid + 2*sd),
		BollLower:  round4(mid - 2*sd),
		ATR14:      round4(atr(bars, 14)),
		OBV:        obv(bars),
	}
	if len(closes) >= 50 {
		v := round4(sma(closes, 50))
		ind.SMA50 = &v
	}
	return ind, nil
}

// sma averages the last period values.
func sma(values []float64, period int) float64 {
	var total float64
	for _, v := range values[len(values)-period:] {
		total += v
	}
	return total / float64(period)
}

// emaSeries seeds with the SMA of the first period values; entries before
// the seed are zero.
func emaSeries(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if len(values) < period {
		return out
	}
	var seed float64
	for _, v := range values[:period] {
		seed += v
	}
	out[period-1] = seed / float64(period)
	k := 2 / float64(period+1)
	for i := period; i < len(values); i++ {
		out[i] = values[i]*k + out[i-1]*(1-k)
	}
	return out
}

func stddev(values []float64, mean float64) float64 {
	var sum float64
	for _, v := range values {
		sum += (v - mean) * (v - mean)
	}
	return math.Sqrt(sum / float64(len(values)))
}

// rsi uses Wilder smoothing.
func rsi(closes []float64, period int) float64 {
	var gain, loss float64
	for i := 1; i <= period; i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	gain /= float64(period)
	loss /= float64(period)
	for i := period + 1; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		up, down := 0.0, 0.0
		if d > 0 {
			up = d
		} else {
			down = -d
		}
		gain = (gain*float64(period-1) + up) / float64(period)
		loss = (loss*float64(period-1) + down) / float64(period)
	}
	if loss == 0 {
		if gain == 0 {
			return 50
		}
		return 100
	}
	return 100 - 100/(1+gain/loss)
}

// atr uses Wilder smoothing over true ranges.
func atr(bars []Bar, period int) float64 {
	tr := make([]float64, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		prev := bars[i-1].Close
		tr = append(tr, math.Max(bars[i].High-bars[i].Low,
			math.Max(math.Abs(bars[i].High-prev), math.Abs(bars[i].Low-prev))))
	}
	var v float64
	for _, x := range tr[:period] {
		v += x
	}
	v /= float64(period)
	for _, x := range tr[period:] {
		v = (v*float64(period-1) + x) / float64(period)
	}
	return v
}

func obv(bars []Bar) float64 {
	var v float64
	for i := 1; i < len(bars); i++ {
		switch {
		case bars[i].Close > bars[i-1].Close:
			v += bars[i].Volume
		case bars[i].Close < bars[i-1].Close:
			v -= bars[i].Volume
		}
	}
	return v
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

// Analyzer computes indicators from a HistorySource and caches them per
// symbol for ttl.
type Analyzer struct {
	history HistorySource
	days    int
	ttl     time.Duration
	now     func() time.Time

	mu    sync.Mutex
	cache map[string]analyzed
}

type analyzed struct {
	ind Indicators
	at  time.Time
}

func NewAnalyzer(history HistorySource, days int, ttl time.Duration) *Analyzer {
	if days <= 0 {
		days = 120
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Analyzer{
		history: history,
		days:    days,
		ttl:     ttl,
		now:     time.Now,
		cache:   make(map[string]analyzed),
	}
}

func (a *Analyzer) Indicators(ctx context.Context, symbol string) (Indicators, error) {
	if a == nil || a.history == nil {
		return Indicators{}, fmt.Errorf("history source not configured")
	}
	key := strings.ToLower(strings.TrimSpace(symbol))
	if key == "" {
		return Indicators{}, fmt.Errorf("symbol is required")
	}

	a.mu.Lock()
	if c, ok := a.cache[key]; ok && a.now().Sub(c.at) < a.ttl {
		a.mu.Unlock()
		return c.ind, nil
	}
	a.mu.Unlock()

	bars, err := a.history.History(ctx, symbol, a.days)
	if err != nil {
		return Indicators{}, err
	}
	ind, err := ComputeIndicators(strings.TrimSpace(symbol), bars)
	if err != nil {
		return Indicators{}, err
	}

	a.mu.Lock()
	a.cache[key] = analyzed{ind: ind, at: a.now()}
	a.mu.Unlock()
	return ind, nil
}
