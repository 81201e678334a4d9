package market

import "context"

type Quote struct {
	Symbol    string  `json:"symbol"`
	Name      string  `json:"name,omitempty"`
	Price     float64 `json:"price"`
	ChangePct float64 `json:"change_pct"`
	Volume    float64 `json:"volume,omitempty"`
	TS        int64   `json:"ts"`
	Raw       string  `json:"raw,omitempty"`
}

// Provider returns quotes for all symbols plus the name of the source that
// answered.
type Provider interface {
	GetQuotes(ctx context.Context, symbols []string) ([]Quote, string, error)
}

// Result is a quote lookup as served by Service, possibly from cache.
type Result struct {
	Quotes   []Quote  `json:"quotes"`
	Stale    bool     `json:"stale"`
	Source   string   `json:"source"`
	SourceTS int64    `json:"source_ts"`
	Warnings []string `json:"warnings,omitempty"`
}
