package market

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	finance "github.com/piquette/finance-go"

	"stocksage/internal/store"
)

type fakeProvider struct {
	calls  int
	quotes []Quote
	err    error
	source string
}

func (f *fakeProvider) GetQuotes(_ context.Context, symbols []string) ([]Quote, string, error) {
	f.calls++
	if f.err != nil {
		return nil, "", f.err
	}
	return f.quotes, f.source, nil
}

func TestMultiProvider_FallsBack(t *testing.T) {
	first := &fakeProvider{err: errors.New("rate limited")}
	second := &fakeProvider{quotes: []Quote{{Symbol: "AAPL", Price: 190}}, source: "second"}
	m := NewMultiProvider(first, second)

	quotes, source, err := m.GetQuotes(context.Background(), []string{"AAPL"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if source != "second" || len(quotes) != 1 || first.calls != 1 || second.calls != 1 {
		t.Fatalf("unexpected result: source=%s quotes=%v", source, quotes)
	}
}

func TestMultiProvider_AllFail(t *testing.T) {
	m := NewMultiProvider(&fakeProvider{err: errors.New("down")}, &fakeProvider{})
	if _, _, err := m.GetQuotes(context.Background(), []string{"AAPL"}); err == nil {
		t.Fatal("expected error")
	}
	if _, _, err := NewMultiProvider().GetQuotes(context.Background(), []string{"AAPL"}); err == nil {
		t.Fatal("expected error without providers")
	}
}

func TestService_ThrottlesToCache(t *testing.T) {
	p := &fakeProvider{quotes: []Quote{{Symbol: "AAPL", Price: 190, TS: 42}}, source: "fake"}
	svc := NewService(p, time.Minute, nil)

	res, err := svc.Lookup(context.Background(), []string{"AAPL"})
	if err != nil || res.Stale || res.Source != "fake" {
		t.Fatalf("unexpected first lookup: %#v err=%v", res, err)
	}
	res, err = svc.Lookup(context.Background(), []string{"aapl"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !res.Stale || res.Source != "cache" || res.SourceTS != 42 || p.calls != 1 {
		t.Fatalf("expected cached result, got %#v calls=%d", res, p.calls)
	}
}

func TestService_ThrottledCacheMissFetches(t *testing.T) {
	p := &fakeProvider{quotes: []Quote{{Symbol: "AAPL", Price: 190}}, source: "fake"}
	svc := NewService(p, time.Minute, nil)
	if _, err := svc.Lookup(context.Background(), []string{"AAPL"}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	p.quotes = []Quote{{Symbol: "MSFT", Price: 410}}
	res, err := svc.Lookup(context.Background(), []string{"MSFT"})
	if err != nil || res.Stale || p.calls != 2 {
		t.Fatalf("expected a fresh fetch, got %#v calls=%d err=%v", res, p.calls, err)
	}
}

func TestService_FailureServesCache(t *testing.T) {
	p := &fakeProvider{quotes: []Quote{{Symbol: "AAPL", Price: 190}}, source: "fake"}
	svc := NewService(p, 0, nil)
	if _, err := svc.Lookup(context.Background(), []string{"AAPL"}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	p.err = errors.New("timeout")
	res, err := svc.Lookup(context.Background(), []string{"AAPL"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !res.Stale || len(res.Warnings) != 1 {
		t.Fatalf("expected stale cached result, got %#v", res)
	}
	if _, err := svc.Lookup(context.Background(), []string{"TSLA"}); err == nil {
		t.Fatal("expected error on cache miss")
	}
	if got := svc.nextPollInterval(time.Second, true); got != time.Second {
		t.Fatalf("unexpected interval after 2 failures: %v", got)
	}
	svc.Lookup(context.Background(), []string{"TSLA"})
	if got := svc.nextPollInterval(time.Second, true); got != 2*time.Second {
		t.Fatalf("unexpected interval after 3 failures: %v", got)
	}
}

func TestService_PollAndStore(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "market.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	p := &fakeProvider{quotes: []Quote{{Symbol: "AAPL", Price: 190, TS: 100}, {Symbol: "MSFT", Price: 410, TS: 100}}, source: "fake"}
	svc := NewService(p, 0, st)
	if err := svc.PollAndStore(context.Background(), []string{"AAPL", "MSFT"}); err != nil {
		t.Fatalf("poll: %v", err)
	}
	items, err := st.QueryMarketSnapshots("MSFT", 10, 0)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(items) != 1 || items[0].Price != 410 {
		t.Fatalf("unexpected snapshots: %#v", items)
	}
}

func TestService_NotConfigured(t *testing.T) {
	var svc *Service
	if _, err := svc.Lookup(context.Background(), []string{"AAPL"}); err == nil {
		t.Fatal("expected error")
	}
	if _, err := NewService(&fakeProvider{}, 0, nil).Lookup(context.Background(), nil); err == nil {
		t.Fatal("expected error for empty symbols")
	}
}

func TestParseSinaBody(t *testing.T) {
	body := "var hq_str_gb_aapl=\"Apple,229.8700,0.79,2024-09-20 16:00:00,1.8000,228.5000,230.1000,227.0000,237.23,164.08,51234567,60000000\";\n" +
		"var hq_str_sh600000=\"PFYH,7.10,7.00,7.35,7.40,7.05,7.34,7.35,123456,900000\";\n" +
		"var hq_str_gb_nope=\"\";\n"
	quotes := parseSinaBody(body, 99)
	if len(quotes) != 2 {
		t.Fatalf("unexpected quotes: %#v", quotes)
	}
	us := quotes[0]
	if us.Symbol != "AAPL" || us.Price != 229.87 || us.ChangePct != 0.79 || us.Volume != 51234567 || us.TS != 99 {
		t.Fatalf("unexpected us quote: %#v", us)
	}
	cn := quotes[1]
	if cn.Symbol != "sh600000" || cn.Price != 7.35 || cn.Volume != 123456 {
		t.Fatalf("unexpected a-share quote: %#v", cn)
	}
	if cn.ChangePct < 4.99 || cn.ChangePct > 5.01 {
		t.Fatalf("unexpected change pct: %v", cn.ChangePct)
	}
}

func TestToSinaCode(t *testing.T) {
	cases := map[string]string{
		"AAPL":     "gb_aapl",
		"brk.b":    "gb_brk$b",
		"sh600000": "sh600000",
		"SZ000001": "sz000001",
		"shop":     "gb_shop",
	}
	for in, want := range cases {
		if got := toSinaCode(in); got != want {
			t.Fatalf("toSinaCode(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestYahooProvider(t *testing.T) {
	p := &YahooProvider{fetch: func(symbol string) (*finance.Quote, error) {
		switch symbol {
		case "AAPL":
			return &finance.Quote{Symbol: "AAPL", ShortName: "Apple Inc.", RegularMarketPrice: 190.5, RegularMarketChangePercent: -1.2, RegularMarketVolume: 1000, RegularMarketTime: 1700000000}, nil
		case "GONE":
			return nil, nil
		default:
			return nil, errors.New("not found")
		}
	}}

	quotes, source, err := p.GetQuotes(context.Background(), []string{"aapl"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if source != "yahoo" || len(quotes) != 1 {
		t.Fatalf("unexpected result: %s %#v", source, quotes)
	}
	q := quotes[0]
	if q.Symbol != "AAPL" || q.Name != "Apple Inc." || q.Price != 190.5 || q.ChangePct != -1.2 || q.Volume != 1000 || q.TS != 1700000000 {
		t.Fatalf("unexpected quote: %#v", q)
	}
	if _, _, err := p.GetQuotes(context.Background(), []string{"GONE"}); err == nil {
		t.Fatal("expected error for missing quote")
	}
	if _, _, err := p.GetQuotes(context.Background(), []string{"XXXX"}); err == nil {
		t.Fatal("expected error for failed fetch")
	}
}
