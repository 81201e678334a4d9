// Package assistant answers chat requests about one ticker, either with an
// OpenAI-compatible model through eino or with a quote-based fallback.
package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"stocksage/internal/chat"
	"stocksage/internal/market"
)

type Config struct {
	Enabled    bool   `yaml:"enabled"`
	Model      string `yaml:"model"`
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	ByAzure    bool   `yaml:"by_azure"`
	APIVersion string `yaml:"api_version"`
	TimeoutMs  int    `yaml:"timeout_ms"`
}

// QuoteSource supplies the market context placed in the prompt.
type QuoteSource interface {
	GetQuotes(ctx context.Context, symbols []string) ([]market.Quote, error)
}

// IndicatorSource supplies technical indicators from daily history.
type IndicatorSource interface {
	Indicators(ctx context.Context, symbol string) (market.Indicators, error)
}

type chatModel interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

type Agent struct {
	enabled        bool
	model          chatModel
	modelName      string
	disabledReason string
	quotes         QuoteSource
	indicators     IndicatorSource
}

func New(cfg Config, quotes QuoteSource, indicators IndicatorSource) *Agent {
	if !cfg.Enabled {
		return &Agent{enabled: false, disabledReason: "disabled by config", quotes: quotes, indicators: indicators}
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Model == "" {
		cfg.Model = os.Getenv("OPENAI_MODEL")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = os.Getenv("OPENAI_BASE_URL")
	}
	if cfg.APIKey == "" || cfg.Model == "" {
		log.Printf("assistant disabled: missing api key or model")
		return &Agent{enabled: false, disabledReason: "api_key or model missing", quotes: quotes, indicators: indicators}
	}

	timeout := time.Duration(cfg.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	cm, err := openai.NewChatModel(context.Background(), &openai.ChatModelConfig{
		APIKey:     cfg.APIKey,
		Model:      cfg.Model,
		BaseURL:    cfg.BaseURL,
		ByAzure:    cfg.ByAzure,
		APIVersion: cfg.APIVersion,
		Timeout:    timeout,
	})
	if err != nil {
		log.Printf("assistant init error: %v", err)
		return &Agent{enabled: false, disabledReason: "init failed", quotes: quotes, indicators: indicators}
	}

	return newWithModel(cm, cfg.Model, quotes, indicators)
}

func newWithModel(m chatModel, name string, quotes QuoteSource, indicators IndicatorSource) *Agent {
	return &Agent{enabled: true, model: m, modelName: name, quotes: quotes, indicators: indicators}
}

func (a *Agent) Enabled() bool {
	return a != nil && a.enabled && a.model != nil
}

// Send makes the agent usable as an in-process chat.Transport.
func (a *Agent) Send(ctx context.Context, req chat.Request) (chat.Response, error) {
	text, err := a.Reply(ctx, req)
	if err != nil {
		return chat.Response{}, err
	}
	return chat.Response{Message: text}, nil
}

// Reply returns the assistant's markup answer to req.
func (a *Agent) Reply(ctx context.Context, req chat.Request) (string, error) {
	symbol := strings.TrimSpace(req.Subject)
	if symbol == "" {
		return "", fmt.Errorf("stock is required")
	}
	if strings.TrimSpace(req.Message) == "" {
		return "", fmt.Errorf("message is required")
	}

	quote := a.lookupQuote(ctx, symbol)
	ind := a.lookupIndicators(ctx, symbol)
	if !a.Enabled() {
		return FallbackReply(symbol, quote, ind), nil
	}

	resp, err := a.model.Generate(ctx, BuildMessages(req, quote, ind))
	if err != nil {
		logLLMError(err)
		return "", fmt.Errorf("generate reply: %w", err)
	}
	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return "", fmt.Errorf("empty model reply")
	}
	logLLMOutput(text)
	return text, nil
}

func (a *Agent) Ping(ctx context.Context) (map[string]any, error) {
	if !a.Enabled() {
		reason := "not configured"
		if a != nil && a.disabledReason != "" {
			reason = a.disabledReason
		}
		return map[string]any{
			"ok":     true,
			"mode":   "fallback",
			"reason": reason,
		}, nil
	}

	start := time.Now()
	messages := []*schema.Message{
		schema.SystemMessage("Reply with the single word: pong"),
		schema.UserMessage("ping"),
	}
	_, err := a.model.Generate(ctx, messages)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		logLLMError(err)
		return map[string]any{
			"ok":     true,
			"mode":   "fallback",
			"reason": "llm error",
		}, err
	}
	return map[string]any{
		"ok":         true,
		"mode":       "llm",
		"model":      a.modelName,
		"latency_ms": latency,
	}, nil
}

func (a *Agent) lookupQuote(ctx context.Context, symbol string) *market.Quote {
	if a == nil || a.quotes == nil {
		return nil
	}
	quotes, err := a.quotes.GetQuotes(ctx, []string{symbol})
	if err != nil || len(quotes) == 0 {
		if err != nil {
			log.Printf("assistant quote lookup error: symbol=%s err=%v", symbol, err)
		}
		return nil
	}
	q := quotes[0]
	return &q
}

func (a *Agent) lookupIndicators(ctx context.Context, symbol string) *market.Indicators {
	if a == nil || a.indicators == nil {
		return nil
	}
	ind, err := a.indicators.Indicators(ctx, symbol)
	if err != nil {
		log.Printf("assistant indicator lookup error: symbol=%s err=%v", symbol, err)
		return nil
	}
	return &ind
}

// BuildMessages assembles the prompt: instructions, optional quote and
// indicator context, the prior transcript and the new question.
func BuildMessages(req chat.Request, quote *market.Quote, ind *market.Indicators) []*schema.Message {
	symbol := strings.TrimSpace(req.Subject)
	messages := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.SystemMessage(fmt.Sprintf("You are analyzing the stock %s. Provide relevant and detailed information based on the user's query.", symbol)),
	}
	if quote != nil {
		if data, ok := contextJSON(quote); ok {
			messages = append(messages, schema.SystemMessage(fmt.Sprintf("Latest market data for %s: %s", symbol, data)))
		}
	}
	if ind != nil {
		if data, ok := contextJSON(ind); ok {
			messages = append(messages, schema.SystemMessage(fmt.Sprintf(
				"Technical indicators for %s from the last %d daily sessions (SMA, EMA, MACD, RSI, Bollinger bands, ATR, OBV): %s",
				symbol, ind.Bars, data)))
		}
	}
	for _, h := range req.History {
		switch h.Role {
		case "user":
			messages = append(messages, schema.UserMessage(h.Content))
		case "assistant":
			messages = append(messages, schema.AssistantMessage(h.Content, nil))
		}
	}
	messages = append(messages, schema.UserMessage(fmt.Sprintf("Regarding %s: %s", symbol, req.Message)))
	return messages
}

func contextJSON(v any) (string, bool) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("assistant context encode error: %v", err)
		return "", false
	}
	return string(data), true
}

const systemPrompt = `You are a stock analysis assistant. Analyze stock data and provide insightful reports.
When asked about a specific stock, cover what is relevant among:
1. Basic stock information (price, volume, market cap)
2. Fundamental analysis
3. Technical indicators (moving averages, RSI, MACD, Bollinger bands), using only the indicator data provided
4. Financial ratios and metrics
5. Potential risks and opportunities
6. A summary and recommendation (buy, sell or hold) with a recommended entry price.
Be conversational and remember the context of the ongoing conversation.

Format every answer with these tags only, never HTML or Markdown:
[section]Title[/section] for a main heading
[subsection]Title[/subsection] for a sub heading
[p]text[/p] for a paragraph
[list][item]one[/item][item]two[/item][/list] for a list
[table][row][header]Col A|Col B[/header][/row][row]a|b[/row][/table] for a table
[code]text[/code] for preformatted text
Tags must not be nested inside each other and each tag must stay on its own.`

func logLLMError(err error) {
	apiErr := &openai.APIError{}
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if len(msg) > 300 {
			msg = msg[:300] + "..."
		}
		log.Printf("assistant api error: status=%d message=%s", apiErr.HTTPStatusCode, msg)
		return
	}
	log.Printf("assistant error: %v", err)
}

func logLLMOutput(text string) {
	const maxLen = 800
	out := text
	if len(out) > maxLen {
		out = out[:maxLen] + "..."
	}
	log.Printf("assistant output: %s", out)
}
