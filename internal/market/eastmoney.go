package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// EastmoneyProvider serves A-share codes (sh/sz prefix) only. It sits last in
// the provider chain as a second source for mainland listings.
type EastmoneyProvider struct {
	client *resty.Client
	now    func() time.Time
}

type eastmoneyResp struct {
	Data *eastmoneyData `json:"data"`
}

type eastmoneyData struct {
	Name      string  `json:"f58"`
	Code      string  `json:"f57"`
	Price     float64 `json:"f43"`
	ChangePct float64 `json:"f170"`
	Volume    float64 `json:"f47"`
}

func NewEastmoneyProvider(timeout time.Duration) *EastmoneyProvider {
	return newEastmoneyProvider("https://push2.eastmoney.com", timeout)
}

func newEastmoneyProvider(baseURL string, timeout time.Duration) *EastmoneyProvider {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(timeout)
	client.SetRetryCount(2)
	client.SetRetryWaitTime(150 * time.Millisecond)
	client.AddRetryCondition(func(_ *resty.Response, err error) bool {
		return shouldRetry(err)
	})
	return &EastmoneyProvider{client: client, now: time.Now}
}

func (p *EastmoneyProvider) GetQuotes(ctx context.Context, symbols []string) ([]Quote, string, error) {
	if len(symbols) == 0 {
		return nil, "", fmt.Errorf("symbols is empty")
	}
	out := make([]Quote, 0, len(symbols))
	for _, sym := range symbols {
		q, err := p.getOne(ctx, sym)
		if err != nil {
			return nil, "", err
		}
		out = append(out, q)
	}
	return out, "eastmoney", nil
}

func (p *EastmoneyProvider) getOne(ctx context.Context, symbol string) (Quote, error) {
	secid, err := toSecID(symbol)
	if err != nil {
		return Quote{}, err
	}

	var payload eastmoneyResp
	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"secid":  secid,
			"fields": "f57,f58,f43,f170,f47",
			"fltt":   "2",
			"invt":   "2",
		}).
		SetResult(&payload).
		ForceContentType("application/json").
		Get("/api/qt/stock/get")
	if err != nil {
		return Quote{}, fmt.Errorf("request eastmoney: %w", err)
	}
	if !resp.IsSuccess() {
		return Quote{}, fmt.Errorf("eastmoney status %d", resp.StatusCode())
	}
	if payload.Data == nil {
		return Quote{}, fmt.Errorf("empty eastmoney data for %s", symbol)
	}
	if payload.Data.Price <= 0 {
		return Quote{}, fmt.Errorf("invalid price for %s", symbol)
	}

	raw, _ := json.Marshal(payload.Data)
	return Quote{
		Symbol:    strings.ToLower(strings.TrimSpace(symbol)),
		Name:      payload.Data.Name,
		Price:     payload.Data.Price,
		ChangePct: payload.Data.ChangePct,
		Volume:    payload.Data.Volume,
		TS:        p.now().Unix(),
		Raw:       string(raw),
	}, nil
}

func toSecID(symbol string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(symbol))
	if !isAShare(s) {
		return "", fmt.Errorf("eastmoney: unsupported symbol %s", symbol)
	}
	if strings.HasPrefix(s, "sh") {
		return "1." + s[2:], nil
	}
	return "0." + s[2:], nil
}

func shouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) {
		return true
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection reset") || strings.Contains(msg, "reset by peer")
}
