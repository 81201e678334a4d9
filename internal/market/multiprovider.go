package market

import (
	"context"
	"fmt"
)

// MultiProvider asks each provider in order and returns the first non-empty
// answer.
type MultiProvider struct {
	providers []Provider
}

func NewMultiProvider(providers ...Provider) *MultiProvider {
	return &MultiProvider{providers: providers}
}

func (m *MultiProvider) GetQuotes(ctx context.Context, symbols []string) ([]Quote, string, error) {
	if len(m.providers) == 0 {
		return nil, "", fmt.Errorf("no market providers configured")
	}
	var lastErr error
	for _, p := range m.providers {
		quotes, source, err := p.GetQuotes(ctx, symbols)
		if err == nil && len(quotes) > 0 {
			return quotes, source, nil
		}
		if err != nil {
			lastErr = fmt.Errorf("%s: %w", providerName(p), err)
		}
		if ctx.Err() != nil {
			break
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("all providers failed")
	}
	return nil, "", lastErr
}

func providerName(p Provider) string {
	switch p.(type) {
	case *YahooProvider:
		return "yahoo"
	case *SinaProvider:
		return "sina"
	case *EastmoneyProvider:
		return "eastmoney"
	default:
		return fmt.Sprintf("%T", p)
	}
}
