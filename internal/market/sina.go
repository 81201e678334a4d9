package market

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// SinaProvider covers US tickers (queried as gb_<ticker>) and A-share codes
// with an sh/sz prefix.
type SinaProvider struct {
	client *resty.Client
}

func NewSinaProvider(timeout time.Duration) *SinaProvider {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	client := resty.New()
	client.SetBaseURL("https://hq.sinajs.cn")
	client.SetTimeout(timeout)
	client.SetHeader("Referer", "https://finance.sina.com.cn")
	return &SinaProvider{client: client}
}

func (p *SinaProvider) GetQuotes(ctx context.Context, symbols []string) ([]Quote, string, error) {
	if len(symbols) == 0 {
		return nil, "", fmt.Errorf("symbols is empty")
	}
	codes := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		codes = append(codes, toSinaCode(sym))
	}
	resp, err := p.client.R().
		SetContext(ctx).
		Get("/list=" + strings.Join(codes, ","))
	if err != nil {
		return nil, "", fmt.Errorf("request sina: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, "", fmt.Errorf("sina status %d", resp.StatusCode())
	}
	out := parseSinaBody(resp.String(), time.Now().Unix())
	if len(out) == 0 {
		return nil, "", fmt.Errorf("empty sina response")
	}
	return out, "sina", nil
}

func parseSinaBody(body string, now int64) []Quote {
	var out []Quote
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if q, ok := parseSinaLine(line, now); ok {
			out = append(out, q)
		}
	}
	return out
}

// parseSinaLine reads one `var hq_str_<code>="f0,f1,...";` line.
// US (gb_) fields: name, price, change_pct, time, change, open, high, low, ..., volume at 10.
// A-share fields: name, open, preclose, price, high, low, bid, ask, volume, ...
func parseSinaLine(line string, now int64) (Quote, bool) {
	parts := strings.SplitN(line, "=", 2)
	if len(parts) < 2 {
		return Quote{}, false
	}
	code := strings.TrimPrefix(strings.TrimSpace(parts[0]), "var hq_str_")
	payload := strings.Trim(strings.TrimSpace(parts[1]), ";")
	payload = strings.Trim(payload, "\"")
	fields := strings.Split(payload, ",")
	if len(fields) < 10 {
		return Quote{}, false
	}

	q := Quote{Name: fields[0], TS: now, Raw: payload}
	if strings.HasPrefix(code, "gb_") {
		if len(fields) < 11 {
			return Quote{}, false
		}
		q.Symbol = strings.ToUpper(strings.TrimPrefix(code, "gb_"))
		q.Price = parseFloat(fields[1])
		q.ChangePct = parseFloat(fields[2])
		q.Volume = parseFloat(fields[10])
	} else {
		q.Symbol = strings.ToLower(code)
		q.Price = parseFloat(fields[3])
		preclose := parseFloat(fields[2])
		if preclose > 0 {
			q.ChangePct = (q.Price - preclose) / preclose * 100
		}
		q.Volume = parseFloat(fields[8])
	}
	if q.Price <= 0 {
		return Quote{}, false
	}
	return q, true
}

func toSinaCode(symbol string) string {
	s := strings.ToLower(strings.TrimSpace(symbol))
	if isAShare(s) {
		return s
	}
	return "gb_" + strings.ReplaceAll(s, ".", "$")
}

func isAShare(s string) bool {
	if !strings.HasPrefix(s, "sh") && !strings.HasPrefix(s, "sz") {
		return false
	}
	digits := s[2:]
	if len(digits) != 6 {
		return false
	}
	_, err := strconv.Atoi(digits)
	return err == nil
}

func parseFloat(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}
