package market

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestEastmoneyProvider_GetQuotes(t *testing.T) {
	var gotSecID, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotSecID = r.URL.Query().Get("secid")
		_, _ = w.Write([]byte(`{"data":{"f57":"600000","f58":"PF Bank","f43":8.12,"f170":-1.05,"f47":123456}}`))
	}))
	defer srv.Close()

	p := newEastmoneyProvider(srv.URL, time.Second)
	p.now = func() time.Time { return time.Unix(1700000000, 0) }

	quotes, source, err := p.GetQuotes(context.Background(), []string{"SH600000"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if source != "eastmoney" || gotPath != "/api/qt/stock/get" || gotSecID != "1.600000" {
		t.Fatalf("unexpected request: source=%s path=%s secid=%s", source, gotPath, gotSecID)
	}
	q := quotes[0]
	if q.Symbol != "sh600000" || q.Name != "PF Bank" || q.Price != 8.12 || q.ChangePct != -1.05 || q.TS != 1700000000 {
		t.Fatalf("unexpected quote: %+v", q)
	}
}

func TestEastmoneyProvider_RejectsUSTickers(t *testing.T) {
	p := newEastmoneyProvider("http://127.0.0.1:1", time.Second)
	if _, _, err := p.GetQuotes(context.Background(), []string{"AAPL"}); err == nil {
		t.Fatal("expected error for non A-share symbol")
	}
}

func TestEastmoneyProvider_EmptyData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":null}`))
	}))
	defer srv.Close()

	p := newEastmoneyProvider(srv.URL, time.Second)
	if _, _, err := p.GetQuotes(context.Background(), []string{"sz000001"}); err == nil {
		t.Fatal("expected error for empty data")
	}
}

func TestToSecID(t *testing.T) {
	cases := map[string]string{"sh600000": "1.600000", "SZ000001": "0.000001"}
	for in, want := range cases {
		got, err := toSecID(in)
		if err != nil || got != want {
			t.Fatalf("toSecID(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := toSecID("sh60"); err == nil {
		t.Fatal("expected error for short code")
	}
}
