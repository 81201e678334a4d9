package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"

	"stocksage/internal/api"
	"stocksage/internal/assistant"
	"stocksage/internal/chat"
	"stocksage/internal/config"
	"stocksage/internal/market"
	"stocksage/internal/remote"
	"stocksage/internal/store"
)

func main() {
	configPath := flag.String("config", "configs/app.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	h := server.Default(server.WithHostPorts(addr))

	st, err := store.Open(cfg.Store.Sqlite.Path)
	if err != nil {
		log.Fatalf("store error: %v", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Printf("store close error: %v", err)
		}
	}()
	if err := st.SeedWatchlist(cfg.Watchlist); err != nil {
		log.Fatalf("seed watchlist error: %v", err)
	}

	timeout := time.Duration(cfg.Market.TimeoutMs) * time.Millisecond
	mktProvider := market.NewMultiProvider(
		market.NewYahooProvider(),
		market.NewSinaProvider(timeout),
		market.NewEastmoneyProvider(timeout),
	)
	mktSvc := market.NewService(mktProvider, time.Duration(cfg.Market.MinRequestIntervalMs)*time.Millisecond, st)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if cfg.Market.PollIntervalSec > 0 {
		go mktSvc.PollLoop(ctx, st.WatchlistSymbols, time.Duration(cfg.Market.PollIntervalSec)*time.Second)
	}

	analyzer := market.NewAnalyzer(
		market.NewYahooHistory(),
		cfg.Market.HistoryDays,
		time.Duration(cfg.Market.IndicatorTTLSec)*time.Second,
	)
	agent := assistant.New(cfg.Assistant, mktSvc, analyzer)

	// Sessions talk to a remote assistant when one is configured and to the
	// in-process one otherwise.
	var transport chat.Transport = agent
	if cfg.Chat.RemoteEndpoint != "" {
		transport = remote.NewClient(cfg.Chat.RemoteEndpoint, time.Duration(cfg.Chat.TimeoutMs)*time.Millisecond)
		log.Printf("chat sessions use remote assistant at %s", cfg.Chat.RemoteEndpoint)
	}

	api.RegisterRoutes(h, api.Deps{
		Store:     st,
		Market:    mktSvc,
		Assistant: agent,
		Sessions:  chat.NewRegistry(transport, cfg.Chat.MaxSessions),
	})

	log.Printf("server starting on %s (log.level=%s assistant=%v)", addr, cfg.Log.Level, agent.Enabled())
	h.Spin()
}
