package assistant

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"stocksage/internal/market"
)

// FallbackReply answers without a model: a heading, the latest quote and
// technical indicators as a table when known, and a note that analysis is
// unavailable.
func FallbackReply(symbol string, quote *market.Quote, ind *market.Indicators) string {
	symbol = strings.TrimSpace(symbol)
	var b strings.Builder
	// Tags are written in the order the parser groups them so the reply
	// reads top to bottom.
	fmt.Fprintf(&b, "[section]%s[/section]", symbol)
	if quote == nil && ind == nil {
		fmt.Fprintf(&b, "[p]No market data is available for %s right now.[/p]", symbol)
		b.WriteString(unavailableNote)
		return b.String()
	}

	b.WriteString("[subsection]Market data[/subsection]")
	b.WriteString(unavailableNote)
	b.WriteString("[table][row][header]Metric|Value[/header][/row]")
	if quote != nil {
		writeQuoteRows(&b, quote)
	}
	if ind != nil {
		writeIndicatorRows(&b, ind)
	}
	b.WriteString("[/table]")
	return b.String()
}

func writeQuoteRows(b *strings.Builder, quote *market.Quote) {
	if quote.Name != "" {
		fmt.Fprintf(b, "[row]Name|%s[/row]", cell(quote.Name))
	}
	fmt.Fprintf(b, "[row]Price|%s[/row]", fixed(quote.Price))
	fmt.Fprintf(b, "[row]Change|%s%%[/row]", signed(decimal.NewFromFloat(quote.ChangePct).Round(2)))
	if quote.Volume > 0 {
		fmt.Fprintf(b, "[row]Volume|%s[/row]", decimal.NewFromFloat(quote.Volume).Round(0).String())
	}
	if quote.TS > 0 {
		fmt.Fprintf(b, "[row]As of|%s[/row]", time.Unix(quote.TS, 0).UTC().Format("2006-01-02 15:04 MST"))
	}
}

func writeIndicatorRows(b *strings.Builder, ind *market.Indicators) {
	fmt.Fprintf(b, "[row]SMA 20|%s[/row]", fixed(ind.SMA20))
	if ind.SMA50 != nil {
		fmt.Fprintf(b, "[row]SMA 50|%s[/row]", fixed(*ind.SMA50))
	}
	fmt.Fprintf(b, "[row]RSI 14|%s[/row]", fixed(ind.RSI14))
	fmt.Fprintf(b, "[row]MACD|%s (signal %s)[/row]", fixed(ind.MACD), fixed(ind.MACDSignal))
	fmt.Fprintf(b, "[row]Bollinger 20/2|%s to %s[/row]", fixed(ind.BollLower), fixed(ind.BollUpper))
	fmt.Fprintf(b, "[row]ATR 14|%s[/row]", fixed(ind.ATR14))
}

func fixed(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

const unavailableNote = "[p]The analysis model is not configured, so only market data can be shown.[/p]"

func signed(d decimal.Decimal) string {
	s := d.StringFixed(2)
	if d.IsPositive() {
		return "+" + s
	}
	return s
}

// cell keeps a value from breaking the table markup.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", "/")
	s = strings.ReplaceAll(s, "[", "(")
	return strings.ReplaceAll(s, "]", ")")
}
