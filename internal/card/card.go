// Package card orchestrates the per-instrument data lifecycle: concurrent
// feature fetches with independent loading states, retained values on failed
// refreshes, chart polling and opportunistic alert evaluation.
package card

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"ai-market-dashboard/internal/alert"
	"ai-market-dashboard/internal/gateway"
	"ai-market-dashboard/internal/gemini"
	"ai-market-dashboard/internal/logger"
	"ai-market-dashboard/internal/notify"
	"ai-market-dashboard/internal/store"
	"ai-market-dashboard/internal/ta"
	"ai-market-dashboard/internal/types"
)

// HeadlineScraper supplies headlines when the primary news fetch fails or
// returns nothing.
type HeadlineScraper interface {
	Headlines(ctx context.Context, query string, limit int) ([]types.NewsItem, error)
}

// Data is the card's current displayed values. Fields keep their last good
// value when a refresh fails.
type Data struct {
	Price      types.GroundedText
	MA50       types.GroundedText
	Volume     types.GroundedText
	Quote      types.ExtendedQuote
	HasQuote   bool
	Indicators types.TechIndicators
	Metrics    types.CompanyMetrics
	Rating     types.AnalystRating
	Summary    types.SentimentData
	SummarySrc []types.Source
	Prediction types.PredictionData
	PredictSrc []types.Source
	View       types.GroundedText
	News       []types.NewsItem
	Chart      []types.ChartPoint
	ChartRange types.ChartRange
	ChartSrc   []types.Source
}

// Card owns the fetch lifecycle for one watched instrument.
type Card struct {
	inst     types.Instrument
	cfg      *store.Config
	gw       *gateway.Gateway
	alerts   *alert.Manager
	notifier notify.Notifier
	scraper  HeadlineScraper
	poller   *ChartPoller

	mu       sync.Mutex
	closed   bool
	data     Data
	trackers map[gateway.Feature]*Tracker

	// one queued manual chart fetch; newer requests overwrite older ones
	pendingRange types.ChartRange
	pendingChart bool

	// wakes tests waiting on async completions
	done chan struct{}
}

// Option configures optional card collaborators.
type Option func(*Card)

// WithScraper installs a headline fallback used when the news fetch fails.
func WithScraper(s HeadlineScraper) Option {
	return func(c *Card) { c.scraper = s }
}

// WithChartInterval overrides the chart poll interval.
func WithChartInterval(d time.Duration) Option {
	return func(c *Card) { c.poller.interval = d }
}

// New creates a card for the instrument. Call Open to start fetching and
// Close to tear it down.
func New(cfg *store.Config, gw *gateway.Gateway, alerts *alert.Manager, notifier notify.Notifier, inst types.Instrument, opts ...Option) *Card {
	c := &Card{
		inst:     inst,
		cfg:      cfg,
		gw:       gw,
		alerts:   alerts,
		notifier: notifier,
		trackers: make(map[gateway.Feature]*Tracker),
		done:     make(chan struct{}, 64),
	}
	c.data.ChartRange = types.ChartRange(cfg.Chart.DefaultRange)
	c.poller = newChartPoller(
		time.Duration(cfg.Chart.PollSeconds)*time.Second,
		c.data.ChartRange,
		c.fetchChart,
	)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Instrument returns the instrument this card tracks.
func (c *Card) Instrument() types.Instrument { return c.inst }

// Open launches every feature fetch concurrently and starts the chart poller.
func (c *Card) Open(ctx context.Context) {
	c.RefreshPrice(ctx)
	c.RefreshMA50(ctx)
	c.RefreshVolume(ctx)
	c.RefreshQuote(ctx)
	c.RefreshIndicators(ctx)
	c.RefreshMetrics(ctx)
	c.RefreshRating(ctx)
	c.RefreshSummary(ctx)
	c.RefreshPrediction(ctx)
	c.RefreshView(ctx)
	c.RefreshNews(ctx)
	c.poller.Open(ctx)
}

// Close tears the card down. In-flight fetch results arriving afterwards are
// discarded.
func (c *Card) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()
	c.poller.Close()
}

// Snapshot returns a copy of the card's current data.
func (c *Card) Snapshot() Data {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data
}

// FeatureState reports the loading state of one feature.
func (c *Card) FeatureState(f gateway.Feature) Status {
	return c.tracker(f).Current()
}

// SetRange requests a chart range change. In-flight fetches are not aborted;
// when one is running the new range is fetched as soon as it settles.
func (c *Card) SetRange(ctx context.Context, r types.ChartRange) error {
	return c.poller.SetRange(ctx, r)
}

// Range returns the chart range currently polled.
func (c *Card) Range() types.ChartRange { return c.poller.Range() }

func (c *Card) tracker(f gateway.Feature) *Tracker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.trackers[f]
	if !ok {
		t = &Tracker{}
		c.trackers[f] = t
	}
	return t
}

func (c *Card) alive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

// refresh runs one guarded feature fetch in a goroutine. fetch performs the
// network call outside the lock and returns a commit closure applied to the
// data under the lock. Returns false when a fetch is already in flight.
func (c *Card) refresh(ctx context.Context, f gateway.Feature, fetch func(context.Context) (func(*Data), error)) bool {
	return c.refreshThen(ctx, f, fetch, nil)
}

// refreshThen is refresh with a hook run after the fetch settles, whether it
// succeeded or failed. The hook does not run when the card closed mid-fetch.
func (c *Card) refreshThen(ctx context.Context, f gateway.Feature, fetch func(context.Context) (func(*Data), error), then func()) bool {
	t := c.tracker(f)
	if !t.Begin() {
		return false
	}

	go func() {
		defer c.signal()

		apply, err := fetch(ctx)
		if !c.alive() {
			return
		}
		if err != nil {
			t.Fail()
			c.reportError(ctx, f, err)
		} else {
			c.mu.Lock()
			if c.closed {
				c.mu.Unlock()
				return
			}
			apply(&c.data)
			c.mu.Unlock()

			t.Succeed()
			logger.FeatureFetch(ctx, c.inst.Symbol, string(f), "success")
		}
		if then != nil {
			then()
		}
	}()
	return true
}

func (c *Card) reportError(ctx context.Context, f gateway.Feature, err error) {
	if errors.Is(err, gemini.ErrQuotaExceeded) {
		logger.Warn(ctx, "API quota exceeded", "symbol", c.inst.Symbol, "feature", string(f))
		_ = c.notifier.Notify(ctx, "API quota exceeded",
			"Data refresh for "+c.inst.Symbol+" is paused until the quota resets.", types.NotifyInfo)
		return
	}
	logger.ErrorWithErr(ctx, "Feature fetch failed", err, "symbol", c.inst.Symbol, "feature", string(f))
}

func (c *Card) signal() {
	select {
	case c.done <- struct{}{}:
	default:
	}
}

// RefreshPrice fetches the annotated price line.
func (c *Card) RefreshPrice(ctx context.Context) bool {
	return c.refresh(ctx, gateway.FeaturePrice, func(ctx context.Context) (func(*Data), error) {
		got, err := c.gw.FetchPrice(ctx, c.inst.QueryName)
		if err != nil {
			return nil, err
		}
		if price, ok := gemini.ParseQuotedPrice(got.Text); ok {
			c.checkAlerts(ctx, types.ExtendedQuote{Price: price})
		}
		return func(d *Data) { d.Price = got }, nil
	})
}

// RefreshMA50 fetches the 50-day moving average.
func (c *Card) RefreshMA50(ctx context.Context) bool {
	return c.refresh(ctx, gateway.FeatureMA50, func(ctx context.Context) (func(*Data), error) {
		got, err := c.gw.FetchMA50(ctx, c.inst.QueryName)
		if err != nil {
			return nil, err
		}
		return func(d *Data) { d.MA50 = got }, nil
	})
}

// RefreshVolume fetches latest and average volume.
func (c *Card) RefreshVolume(ctx context.Context) bool {
	return c.refresh(ctx, gateway.FeatureVolume, func(ctx context.Context) (func(*Data), error) {
		got, err := c.gw.FetchVolume(ctx, c.inst.QueryName)
		if err != nil {
			return nil, err
		}
		return func(d *Data) { d.Volume = got }, nil
	})
}

// RefreshQuote fetches the numeric extended quote and evaluates alerts on it.
func (c *Card) RefreshQuote(ctx context.Context) bool {
	return c.refresh(ctx, gateway.FeatureQuote, func(ctx context.Context) (func(*Data), error) {
		got, err := c.gw.FetchExtendedQuote(ctx, c.inst.QueryName)
		if err != nil {
			return nil, err
		}
		c.checkAlerts(ctx, got)
		return func(d *Data) { d.Quote = got; d.HasQuote = true }, nil
	})
}

// RefreshIndicators fetches RSI and MACD, falling back to an RSI computed
// from the fetched price history when the upstream fetch fails.
func (c *Card) RefreshIndicators(ctx context.Context) bool {
	return c.refresh(ctx, gateway.FeatureIndicators, func(ctx context.Context) (func(*Data), error) {
		got, err := c.gw.FetchTechIndicators(ctx, c.inst.QueryName)
		if err != nil {
			if local, ok := c.localIndicators(); ok {
				logger.Debug(ctx, "Indicator fetch fell back to local RSI", "symbol", c.inst.Symbol)
				got, err = local, nil
			}
		}
		if err != nil {
			return nil, err
		}
		return func(d *Data) { d.Indicators = got }, nil
	})
}

const rsiPeriod = 14

func (c *Card) localIndicators() (types.TechIndicators, bool) {
	closes := closePrices(c.Snapshot().Chart)
	rsi := ta.RSI(closes, rsiPeriod)
	if math.IsNaN(rsi) {
		return types.TechIndicators{}, false
	}
	return types.TechIndicators{RSI: fmt.Sprintf("%.1f", rsi), MACD: "N/A"}, true
}

func closePrices(series []types.ChartPoint) []float64 {
	closes := make([]float64, len(series))
	for i, p := range series {
		closes[i] = p.Price
	}
	return closes
}

// RefreshMetrics fetches market cap, P/E and dividend yield.
func (c *Card) RefreshMetrics(ctx context.Context) bool {
	return c.refresh(ctx, gateway.FeatureMetrics, func(ctx context.Context) (func(*Data), error) {
		got, err := c.gw.FetchCompanyMetrics(ctx, c.inst.QueryName)
		if err != nil {
			return nil, err
		}
		return func(d *Data) { d.Metrics = got }, nil
	})
}

// RefreshRating fetches the analyst consensus.
func (c *Card) RefreshRating(ctx context.Context) bool {
	return c.refresh(ctx, gateway.FeatureRating, func(ctx context.Context) (func(*Data), error) {
		got, err := c.gw.FetchAnalystRating(ctx, c.inst.QueryName)
		if err != nil {
			return nil, err
		}
		return func(d *Data) { d.Rating = got }, nil
	})
}

// RefreshSummary fetches the sentiment summary.
func (c *Card) RefreshSummary(ctx context.Context) bool {
	return c.refresh(ctx, gateway.FeatureSummary, func(ctx context.Context) (func(*Data), error) {
		got, err := c.gw.FetchSummary(ctx, c.inst.QueryName)
		if err != nil {
			return nil, err
		}
		return func(d *Data) { d.Summary = got.Data; d.SummarySrc = got.Sources }, nil
	})
}

// RefreshPrediction fetches the 7-day prediction.
func (c *Card) RefreshPrediction(ctx context.Context) bool {
	return c.refresh(ctx, gateway.FeaturePrediction, func(ctx context.Context) (func(*Data), error) {
		got, err := c.gw.FetchPrediction(ctx, c.inst.QueryName)
		if err != nil {
			return nil, err
		}
		return func(d *Data) { d.Prediction = got.Data; d.PredictSrc = got.Sources }, nil
	})
}

// RefreshView fetches the pros and cons investment view.
func (c *Card) RefreshView(ctx context.Context) bool {
	return c.refresh(ctx, gateway.FeatureView, func(ctx context.Context) (func(*Data), error) {
		got, err := c.gw.FetchInvestmentView(ctx, c.inst.QueryName)
		if err != nil {
			return nil, err
		}
		return func(d *Data) { d.View = got }, nil
	})
}

// RefreshNews fetches recent headlines, falling back to the scraper when the
// primary fetch fails or comes back empty.
func (c *Card) RefreshNews(ctx context.Context) bool {
	return c.refresh(ctx, gateway.FeatureNews, func(ctx context.Context) (func(*Data), error) {
		items, err := c.gw.FetchNews(ctx, c.inst.QueryName)
		if (err != nil || len(items) == 0) && c.scraper != nil {
			scraped, scrapeErr := c.scraper.Headlines(ctx, c.inst.QueryName, c.cfg.News.MaxItems)
			if scrapeErr == nil && len(scraped) > 0 {
				logger.Debug(ctx, "News fetch fell back to scraper", "symbol", c.inst.Symbol)
				items, err = scraped, nil
			}
		}
		if err != nil {
			return nil, err
		}
		return func(d *Data) { d.News = items }, nil
	})
}

// fetchChart is the poller's fetch hook. Manual fetches (initial load, range
// changes) drive the chart tracker; automatic refreshes fail silently and
// never flip the loading state. A manual fetch requested while another chart
// fetch is in flight is queued and started when the in-flight one settles.
func (c *Card) fetchChart(ctx context.Context, r types.ChartRange, manual bool) {
	if manual {
		c.mu.Lock()
		c.pendingRange = r
		c.pendingChart = true
		c.mu.Unlock()
		c.startPendingChart(ctx)
		return
	}

	go func() {
		defer c.signal()

		got, err := c.gw.FetchHistory(ctx, c.inst.QueryName, r)
		if !c.alive() {
			return
		}
		if err != nil {
			logger.Debug(ctx, "Silent chart refresh failed", "symbol", c.inst.Symbol, "range", string(r), "error", err)
			return
		}
		c.alertOnSeries(ctx, r, got.Data)

		c.mu.Lock()
		if !c.closed {
			c.data.Chart = got.Data
			c.data.ChartRange = r
			c.data.ChartSrc = got.Sources
		}
		c.mu.Unlock()
	}()
}

// startPendingChart runs the queued manual chart fetch. When a chart fetch is
// already in flight the queue entry stays put and the completion hook retries.
func (c *Card) startPendingChart(ctx context.Context) {
	c.mu.Lock()
	if !c.pendingChart {
		c.mu.Unlock()
		return
	}
	r := c.pendingRange
	c.pendingChart = false
	c.mu.Unlock()

	started := c.refreshThen(ctx, gateway.FeatureChart, func(ctx context.Context) (func(*Data), error) {
		got, err := c.gw.FetchHistory(ctx, c.inst.QueryName, r)
		if err != nil {
			return nil, err
		}
		c.alertOnSeries(ctx, r, got.Data)
		return func(d *Data) { d.Chart = got.Data; d.ChartRange = r; d.ChartSrc = got.Sources }, nil
	}, func() { c.startPendingChart(ctx) })

	if !started {
		c.mu.Lock()
		if !c.pendingChart {
			c.pendingRange = r
			c.pendingChart = true
		}
		c.mu.Unlock()
	}
}

func (c *Card) alertOnSeries(ctx context.Context, r types.ChartRange, series []types.ChartPoint) {
	if len(series) == 0 {
		return
	}
	q := types.ExtendedQuote{Price: series[len(series)-1].Price}
	// only the intraday series approximates a daily move
	if r == types.Range1D {
		if pct := ta.ChangePct(closePrices(series)); !math.IsNaN(pct) {
			q.ChangePercent = pct
		}
	}
	c.checkAlerts(ctx, q)
}

func (c *Card) checkAlerts(ctx context.Context, q types.ExtendedQuote) {
	if c.alerts == nil || !c.alive() {
		return
	}
	if trig, fired := c.alerts.Check(ctx, c.inst.Symbol, q); fired {
		_ = c.notifier.Notify(ctx, "Price alert: "+c.inst.Symbol, trig.Message, types.NotifyAlert)
	}
}

// Wait blocks until one async fetch completes or the timeout expires. Test
// hook; production callers read Snapshot on their own schedule.
func (c *Card) Wait(timeout time.Duration) bool {
	select {
	case <-c.done:
		return true
	case <-time.After(timeout):
		return false
	}
}
