package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"ai-market-dashboard/internal/alert"
	"ai-market-dashboard/internal/alertlog"
	"ai-market-dashboard/internal/card"
	"ai-market-dashboard/internal/export"
	"ai-market-dashboard/internal/gateway"
	"ai-market-dashboard/internal/gemini"
	"ai-market-dashboard/internal/logger"
	"ai-market-dashboard/internal/news"
	"ai-market-dashboard/internal/notify"
	"ai-market-dashboard/internal/resolver"
	"ai-market-dashboard/internal/store"
	"ai-market-dashboard/internal/trace"
	"ai-market-dashboard/internal/types"
	"ai-market-dashboard/internal/watchlist"
)

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

func main() {
	addFlag := flag.String("add", "", "comma-separated instruments to resolve and watch at startup")
	overviewFlag := flag.Bool("overview", true, "fetch the macro market overview at startup")
	compareFlag := flag.String("compare", "", "two comma-separated instrument names to compare at startup")
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := store.LoadConfig("config.yaml")
	must(err)

	logger.Init()
	must(trace.Init())

	if v := os.Getenv("DASHBOARD_LOG_RETENTION_DAYS"); v != "" {
		var n int
		fmt.Sscanf(v, "%d", &n)
		_ = alertlog.CompressOlder(n)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	client := gemini.NewClient(cfg)
	gw := gateway.New(cfg, client)
	alerts := alert.NewManager(cfg.Alerts.MACrossProximityPct)
	for _, r := range cfg.Alerts.Rules {
		alerts.Set(r.Symbol, types.PriceAlert{Type: types.AlertType(r.Type), TargetValue: r.Value, Active: true})
	}
	notifier := buildNotifier(ctx, cfg)
	list := watchlist.New(cfg.Watchlist.FilePath)

	if *addFlag != "" {
		res := resolver.New(gw, list, notifier).Resolve(ctx, *addFlag)
		logger.Info(ctx, "Startup resolution done",
			"added", len(res.Added), "duplicates", len(res.Duplicates), "unresolved", len(res.Unresolved))
	}

	var cardOpts []card.Option
	if cfg.News.ScrapeFallback {
		cardOpts = append(cardOpts, card.WithScraper(news.NewScraper(15*time.Second)))
	}

	cards := make(map[string]*card.Card)
	for _, inst := range list.All() {
		c := card.New(cfg, gw, alerts, notifier, inst, cardOpts...)
		c.Open(ctx)
		cards[inst.Symbol] = c
	}
	logger.Info(ctx, "Dashboard started", "instruments", len(cards))

	if pair := strings.Split(*compareFlag, ","); len(pair) == 2 {
		go func() {
			cmp, err := gw.FetchComparison(ctx, strings.TrimSpace(pair[0]), strings.TrimSpace(pair[1]))
			if err != nil {
				logger.ErrorWithErr(ctx, "Comparison fetch failed", err)
				return
			}
			b, _ := json.Marshal(cmp)
			fmt.Println(string(b))
		}()
	}

	if *overviewFlag {
		go func() {
			view, err := gw.FetchMarketOverview(ctx)
			if err != nil {
				logger.ErrorWithErr(ctx, "Market overview fetch failed", err)
				return
			}
			fmt.Println(view.Text)
		}()
	}

	quoteTick := time.NewTicker(time.Duration(cfg.Quote.PollSeconds) * time.Second)
	defer quoteTick.Stop()

	for {
		select {
		case <-quoteTick.C:
			for _, c := range cards {
				c.RefreshQuote(ctx)
				c.RefreshPrice(ctx)
			}
			printQuotes(cards)
		case <-sigc:
			logger.Info(ctx, "Shutting down...")
			flushCharts(ctx, cards)
			for _, c := range cards {
				c.Close()
			}
			_ = trace.Shutdown(ctx)
			return
		case <-ctx.Done():
			return
		}
	}
}

func buildNotifier(ctx context.Context, cfg *store.Config) notify.Notifier {
	sinks := notify.Multi{notify.NewLogNotifier(), alertlog.Notifier{}}
	if cfg.Notify.Telegram.Enabled {
		tg, err := notify.NewTelegramNotifier(os.Getenv(cfg.Notify.Telegram.BotTokenEnv), cfg.Notify.Telegram.ChatID)
		if err != nil {
			logger.ErrorWithErr(ctx, "Telegram notifier disabled", err)
		} else {
			sinks = append(sinks, tg)
		}
	}
	return sinks
}

func printQuotes(cards map[string]*card.Card) {
	type line struct {
		Symbol string  `json:"symbol"`
		Price  float64 `json:"price"`
		Change float64 `json:"changePercent"`
	}
	for sym, c := range cards {
		snap := c.Snapshot()
		if !snap.HasQuote {
			continue
		}
		b, _ := json.Marshal(line{Symbol: sym, Price: snap.Quote.Price, Change: snap.Quote.ChangePercent})
		fmt.Println(string(b))
	}
}

// flushCharts writes each card's latest price history to data/exports.
func flushCharts(ctx context.Context, cards map[string]*card.Card) {
	dir := filepath.Join("data", "exports")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.ErrorWithErr(ctx, "Export dir creation failed", err)
		return
	}
	for sym, c := range cards {
		snap := c.Snapshot()
		if len(snap.Chart) == 0 {
			continue
		}
		path := filepath.Join(dir, export.Filename(sym, snap.ChartRange))
		f, err := os.Create(path)
		if err != nil {
			logger.ErrorWithErr(ctx, "Export failed", err, "symbol", sym)
			continue
		}
		if err := export.Write(f, snap.Chart); err != nil {
			logger.ErrorWithErr(ctx, "Export failed", err, "symbol", sym)
		}
		_ = f.Close()
		logger.Info(ctx, "Price history exported", "symbol", sym, "path", path)
	}
}
