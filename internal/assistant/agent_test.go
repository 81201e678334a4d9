package assistant

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"stocksage/internal/chat"
	"stocksage/internal/markup"
	"stocksage/internal/market"
)

type fakeModel struct {
	input []*schema.Message
	reply string
	err   error
}

func (f *fakeModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.input = input
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

type fakeIndicators struct {
	ind market.Indicators
	err error
}

func (f fakeIndicators) Indicators(_ context.Context, _ string) (market.Indicators, error) {
	return f.ind, f.err
}

type fakeQuotes struct {
	quotes []market.Quote
	err    error
}

func (f fakeQuotes) GetQuotes(_ context.Context, _ []string) ([]market.Quote, error) {
	return f.quotes, f.err
}

func TestReply_BuildsConversation(t *testing.T) {
	m := &fakeModel{reply: "  [p]Buy the dip.[/p]\n"}
	a := newWithModel(m, "test-model", fakeQuotes{quotes: []market.Quote{{Symbol: "AAPL", Price: 190}}}, fakeIndicators{ind: market.Indicators{Symbol: "AAPL", Bars: 80, RSI14: 61.5}})

	text, err := a.Reply(context.Background(), chat.Request{
		Message: "Should I buy?",
		Subject: "AAPL",
		History: []chat.HistoryMessage{
			{Role: "user", Content: "Hi"},
			{Role: "assistant", Content: "Hello"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if text != "[p]Buy the dip.[/p]" {
		t.Fatalf("unexpected reply: %q", text)
	}

	in := m.input
	if len(in) != 7 {
		t.Fatalf("unexpected message count: %d", len(in))
	}
	if in[0].Role != schema.System || !strings.Contains(in[0].Content, "[section]") {
		t.Fatalf("expected markup instructions first, got %#v", in[0])
	}
	if !strings.Contains(in[1].Content, "You are analyzing the stock AAPL") {
		t.Fatalf("unexpected subject instruction: %q", in[1].Content)
	}
	if in[2].Role != schema.System || !strings.Contains(in[2].Content, `"price":190`) {
		t.Fatalf("expected quote context, got %#v", in[2])
	}
	if in[3].Role != schema.System || !strings.HasPrefix(in[3].Content, "Technical indicators for AAPL from the last 80 daily sessions") ||
		!strings.Contains(in[3].Content, `"rsi14":61.5`) {
		t.Fatalf("expected indicator context, got %#v", in[3])
	}
	if in[4].Role != schema.User || in[4].Content != "Hi" {
		t.Fatalf("unexpected history user message: %#v", in[4])
	}
	if in[5].Role != schema.Assistant || in[5].Content != "Hello" {
		t.Fatalf("unexpected history assistant message: %#v", in[5])
	}
	if in[6].Role != schema.User || in[6].Content != "Regarding AAPL: Should I buy?" {
		t.Fatalf("unexpected final message: %#v", in[6])
	}
}

func TestReply_WithoutQuoteContext(t *testing.T) {
	msgs := BuildMessages(chat.Request{Message: "hi", Subject: "MSFT"}, nil, nil)
	if len(msgs) != 3 {
		t.Fatalf("unexpected message count: %d", len(msgs))
	}
}

func TestReply_ModelError(t *testing.T) {
	a := newWithModel(&fakeModel{err: errors.New("429 too many requests")}, "m", nil, nil)
	if _, err := a.Reply(context.Background(), chat.Request{Message: "hi", Subject: "AAPL"}); err == nil {
		t.Fatal("expected error")
	}
	if _, err := a.Send(context.Background(), chat.Request{Message: "hi", Subject: "AAPL"}); err == nil {
		t.Fatal("expected transport error")
	}
}

func TestReply_EmptyModelReply(t *testing.T) {
	a := newWithModel(&fakeModel{reply: "   "}, "m", nil, nil)
	if _, err := a.Reply(context.Background(), chat.Request{Message: "hi", Subject: "AAPL"}); err == nil {
		t.Fatal("expected error for empty reply")
	}
}

func TestReply_ValidatesRequest(t *testing.T) {
	a := New(Config{Enabled: false}, nil, nil)
	if _, err := a.Reply(context.Background(), chat.Request{Message: "hi"}); err == nil {
		t.Fatal("expected error without stock")
	}
	if _, err := a.Reply(context.Background(), chat.Request{Subject: "AAPL", Message: " "}); err == nil {
		t.Fatal("expected error without message")
	}
}

func TestReply_FallbackWhenDisabled(t *testing.T) {
	a := New(Config{Enabled: false}, fakeQuotes{quotes: []market.Quote{{Symbol: "AAPL", Name: "Apple Inc.", Price: 190.456, ChangePct: 1.234, Volume: 1000, TS: 1700000000}}}, nil)
	if a.Enabled() {
		t.Fatal("expected disabled agent")
	}
	resp, err := a.Send(context.Background(), chat.Request{Message: "price?", Subject: "AAPL"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	blocks := markup.Parse(resp.Message)
	var table *markup.Table
	for _, b := range blocks {
		if tb, ok := b.(markup.Table); ok {
			table = &tb
		}
	}
	if table == nil {
		t.Fatalf("expected a table block, got %#v", blocks)
	}
	if strings.Join(table.Header, ",") != "Metric,Value" {
		t.Fatalf("unexpected header: %v", table.Header)
	}
	rows := map[string]string{}
	for _, r := range table.Rows {
		if len(r) == 2 {
			rows[r[0]] = r[1]
		}
	}
	if rows["Price"] != "190.46" || rows["Change"] != "+1.23%" || rows["Volume"] != "1000" || rows["Name"] != "Apple Inc." {
		t.Fatalf("unexpected rows: %v", rows)
	}
	if rows["As of"] != "2023-11-14 22:13 UTC" {
		t.Fatalf("unexpected timestamp row: %q", rows["As of"])
	}
}

func TestFallbackReply_NoQuote(t *testing.T) {
	blocks := markup.Parse(FallbackReply("TSLA", nil, nil))
	if len(blocks) != 3 {
		t.Fatalf("unexpected blocks: %#v", blocks)
	}
	if h, ok := blocks[0].(markup.Heading); !ok || h.Value != "TSLA" || h.Level != 1 {
		t.Fatalf("unexpected heading: %#v", blocks[0])
	}
}

func TestFallbackReply_NegativeChangeAndEscaping(t *testing.T) {
	out := FallbackReply("X", &market.Quote{Name: "A|B [x]", Price: 1, ChangePct: -0.5}, nil)
	if !strings.Contains(out, "[row]Change|-0.50%[/row]") {
		t.Fatalf("unexpected change row: %s", out)
	}
	if !strings.Contains(out, "[row]Name|A/B (x)[/row]") {
		t.Fatalf("unexpected name row: %s", out)
	}
}

func TestPing(t *testing.T) {
	disabled := New(Config{}, nil, nil)
	resp, err := disabled.Ping(context.Background())
	if err != nil || resp["mode"] != "fallback" || resp["reason"] != "disabled by config" {
		t.Fatalf("unexpected ping: %v err=%v", resp, err)
	}

	a := newWithModel(&fakeModel{reply: "pong"}, "gpt-test", nil, nil)
	resp, err = a.Ping(context.Background())
	if err != nil || resp["mode"] != "llm" || resp["model"] != "gpt-test" {
		t.Fatalf("unexpected ping: %v err=%v", resp, err)
	}
}

func TestFallbackReply_ParsesWithoutStrayText(t *testing.T) {
	for _, q := range []*market.Quote{nil, {Symbol: "AAPL", Price: 1, Volume: 5, TS: 1}} {
		for _, b := range markup.Parse(FallbackReply("AAPL", q, &market.Indicators{SMA20: 1})) {
			if b.Kind() == markup.KindText {
				t.Fatalf("unexpected text block %#v for quote %v", b, q)
			}
		}
	}
}

func TestBuildMessages_SkipsUnencodableContext(t *testing.T) {
	msgs := BuildMessages(chat.Request{Message: "hi", Subject: "AAPL"}, &market.Quote{Symbol: "AAPL", Price: math.NaN()}, nil)
	if len(msgs) != 3 {
		t.Fatalf("expected quote context to be skipped, got %d messages", len(msgs))
	}
	for _, m := range msgs {
		if strings.Contains(m.Content, "Latest market data") {
			t.Fatalf("unexpected quote context: %q", m.Content)
		}
	}
}

func TestReply_SkipsIndicatorContextOnError(t *testing.T) {
	m := &fakeModel{reply: "ok"}
	a := newWithModel(m, "m", nil, fakeIndicators{err: errors.New("need 35 bars")})
	if _, err := a.Reply(context.Background(), chat.Request{Message: "hi", Subject: "NEWCO"}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(m.input) != 3 {
		t.Fatalf("expected no context messages, got %d", len(m.input))
	}
}

func TestFallbackReply_IndicatorRows(t *testing.T) {
	sma50 := 180.0
	ind := &market.Indicators{SMA20: 190.123, SMA50: &sma50, RSI14: 70.456, MACD: 1.5, MACDSignal: 1.2, BollLower: 180, BollUpper: 200, ATR14: 3.333}
	a := New(Config{}, nil, fakeIndicators{ind: *ind})
	out, err := a.Reply(context.Background(), chat.Request{Message: "trend?", Subject: "AAPL"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	for _, want := range []string{
		"[row]SMA 20|190.12[/row]",
		"[row]SMA 50|180.00[/row]",
		"[row]RSI 14|70.46[/row]",
		"[row]MACD|1.50 (signal 1.20)[/row]",
		"[row]Bollinger 20/2|180.00 to 200.00[/row]",
		"[row]ATR 14|3.33[/row]",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %s", want, out)
		}
	}
	if strings.Contains(out, "[row]Price|") {
		t.Fatalf("unexpected quote rows without a quote: %s", out)
	}
}
