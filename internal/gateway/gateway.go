// Package gateway is the single interface every card feature fetch goes
// through. One method per data feature; each sends a feature-specific
// instruction plus the instrument's query name to the search-grounded model
// and normalizes the raw output into typed domain values.
package gateway

import (
	"context"
	"fmt"

	"ai-market-dashboard/internal/gemini"
	"ai-market-dashboard/internal/logger"
	"ai-market-dashboard/internal/store"
	"ai-market-dashboard/internal/trace"
	"ai-market-dashboard/internal/types"
)

// Feature tags every fetch variant the gateway dispatches.
type Feature string

const (
	FeaturePrice      Feature = "price"
	FeatureMA50       Feature = "ma50"
	FeatureVolume     Feature = "volume"
	FeatureQuote      Feature = "extended_quote"
	FeatureIndicators Feature = "tech_indicators"
	FeatureMetrics    Feature = "company_metrics"
	FeatureRating     Feature = "analyst_rating"
	FeatureSummary    Feature = "summary"
	FeaturePrediction Feature = "prediction"
	FeatureView       Feature = "investment_view"
	FeatureNews       Feature = "news"
	FeatureMacroView  Feature = "macro_view"
	FeatureChart      Feature = "chart"
	FeatureComparison Feature = "comparison"
	FeatureResolve    Feature = "resolve"
)

// Gateway issues feature fetches through a Generator (the Gemini client in
// production, a fake in tests).
type Gateway struct {
	gen gemini.Generator
	cfg *store.Config
}

// New creates a gateway over the given generator.
func New(cfg *store.Config, gen gemini.Generator) *Gateway {
	return &Gateway{gen: gen, cfg: cfg}
}

const dataAssistantSystem = "You are a professional financial data assistant. " +
	"Return only the requested data with no greeting or extra explanation."

// FetchPrice returns the latest annotated quote line, e.g. "$150.25 (+1.2%)".
func (g *Gateway) FetchPrice(ctx context.Context, queryName string) (types.GroundedText, error) {
	prompt := fmt.Sprintf("Look up the latest price for %s, including the daily change with a +/- sign and percentage.", queryName)
	system := dataAssistantSystem + " Always include the +/- sign and the percentage change. Return only the symbol and the price."
	return g.grounded(ctx, FeaturePrice, g.cfg.Gemini.Model, prompt, system)
}

// FetchMA50 returns the 50-day moving average as an annotated string.
func (g *Gateway) FetchMA50(ctx context.Context, queryName string) (types.GroundedText, error) {
	prompt := fmt.Sprintf("Look up the 50-day moving average price for %s.", queryName)
	system := dataAssistantSystem + " Return only the price level, no symbol."
	return g.grounded(ctx, FeatureMA50, g.cfg.Gemini.Model, prompt, system)
}

// FetchVolume returns latest and average trading volume as one annotated
// string, e.g. "25.4M (avg: 22.1M)".
func (g *Gateway) FetchVolume(ctx context.Context, queryName string) (types.GroundedText, error) {
	prompt := fmt.Sprintf("Look up the latest trading volume and the average volume for %s.", queryName)
	system := dataAssistantSystem + " Report them compactly, e.g. '25.4M (avg: 22.1M)'."
	return g.grounded(ctx, FeatureVolume, g.cfg.Gemini.Model, prompt, system)
}

// FetchExtendedQuote returns the numeric price, daily percent change and
// 200-day moving average used by alert evaluation.
func (g *Gateway) FetchExtendedQuote(ctx context.Context, queryName string) (types.ExtendedQuote, error) {
	prompt := fmt.Sprintf(`Get the current price, daily percentage change, and 200-day moving average for %s.

Output strictly raw JSON with no markdown formatting.
Format:
{
  "price": number,
  "changePercent": number,
  "ma200": number
}`, queryName)

	res, err := g.generate(ctx, FeatureQuote, gemini.Request{
		Model:     g.cfg.Gemini.Model,
		Prompt:    prompt,
		Grounding: true,
	})
	if err != nil {
		return types.ExtendedQuote{}, err
	}
	return gemini.ParseExtendedQuote(res.Text)
}

// FetchTechIndicators returns RSI and MACD as display values.
func (g *Gateway) FetchTechIndicators(ctx context.Context, queryName string) (types.TechIndicators, error) {
	prompt := fmt.Sprintf(`Look up the current 14-day RSI and MACD reading for %s.

Output strictly raw JSON with no markdown formatting.
Format:
{
  "rsi": number,
  "macd": "string"
}`, queryName)

	res, err := g.generate(ctx, FeatureIndicators, gemini.Request{
		Model:     g.cfg.Gemini.Model,
		Prompt:    prompt,
		System:    "You are a financial data engine. Output JSON only.",
		Grounding: true,
	})
	if err != nil {
		return types.TechIndicators{}, err
	}
	return gemini.ParseTechIndicators(res.Text)
}

// FetchCompanyMetrics returns market cap, P/E ratio and dividend yield.
func (g *Gateway) FetchCompanyMetrics(ctx context.Context, queryName string) (types.CompanyMetrics, error) {
	prompt := fmt.Sprintf(`Look up the market capitalization, P/E ratio and dividend yield for %s.

Output strictly raw JSON with no markdown formatting.
Format:
{
  "marketCap": "string (e.g. 3.2T)",
  "peRatio": "string",
  "dividendYield": "string"
}`, queryName)

	res, err := g.generate(ctx, FeatureMetrics, gemini.Request{
		Model:     g.cfg.Gemini.Model,
		Prompt:    prompt,
		System:    "You are a financial data engine. Output JSON only.",
		Grounding: true,
	})
	if err != nil {
		return types.CompanyMetrics{}, err
	}
	return gemini.ParseCompanyMetrics(res.Text)
}

// FetchAnalystRating returns the analyst consensus plus buy/hold/sell counts.
func (g *Gateway) FetchAnalystRating(ctx context.Context, queryName string) (types.AnalystRating, error) {
	prompt := fmt.Sprintf(`Look up the current analyst consensus rating for %s with the number of buy, hold and sell recommendations.

Output strictly raw JSON with no markdown formatting.
Format:
{
  "consensus": "Buy" | "Overweight" | "Hold" | "Underweight" | "Sell",
  "buyCount": number,
  "holdCount": number,
  "sellCount": number
}`, queryName)

	res, err := g.generate(ctx, FeatureRating, gemini.Request{
		Model:     g.cfg.Gemini.Model,
		Prompt:    prompt,
		System:    "You are a financial data engine. Output JSON only.",
		Grounding: true,
	})
	if err != nil {
		return types.AnalystRating{}, err
	}
	return gemini.ParseAnalystRating(res.Text)
}

// SummaryResult pairs normalized sentiment data with its citations.
type SummaryResult struct {
	Data    types.SentimentData
	Sources []types.Source
}

// FetchSummary returns a rich analysis summary with sentiment and score.
func (g *Gateway) FetchSummary(ctx context.Context, queryName string) (SummaryResult, error) {
	prompt := fmt.Sprintf(`Provide a rich, detailed financial analysis summary for %s.

Requirements:
1. Identify the *primary* driver of recent price action (e.g. Earnings, Product Launch, Macro, Analyst upgrade).
2. Mention any significant recent news or rumors.
3. Provide a brief outlook or sentiment context.

Output strictly raw JSON with no markdown formatting.
Format:
{
  "summary": "string (approx 200-300 characters, use bullet points '•' to separate key points)",
  "sentiment": "positive" | "negative" | "neutral",
  "score": number (0-100)
}`, queryName)

	res, err := g.generate(ctx, FeatureSummary, gemini.Request{
		Model:     g.cfg.Gemini.Model,
		Prompt:    prompt,
		System:    "You are a professional financial analyst. Search for the latest information. Output JSON only.",
		Grounding: true,
	})
	if err != nil {
		return SummaryResult{}, err
	}
	data, err := gemini.ParseSummary(res.Text)
	if err != nil {
		return SummaryResult{}, err
	}
	return SummaryResult{Data: data, Sources: res.Sources}, nil
}

// PredictionResult pairs a prediction with its citations.
type PredictionResult struct {
	Data    types.PredictionData
	Sources []types.Source
}

// FetchPrediction returns a 7-day price trend prediction. Uses the pro model
// for heavier reasoning.
func (g *Gateway) FetchPrediction(ctx context.Context, queryName string) (PredictionResult, error) {
	prompt := fmt.Sprintf(`Analyze the historical data and recent news for %s to predict its price trend for the next 7 days. Provide a specific target price.

Output strictly raw JSON with no markdown formatting.
Format:
{
  "predictedPrice": number,
  "confidenceScore": number (0-100),
  "timeframe": "string",
  "reasoning": "string"
}`, queryName)

	res, err := g.generate(ctx, FeaturePrediction, gemini.Request{
		Model:     g.cfg.Gemini.ProModel,
		Prompt:    prompt,
		System:    "You are an AI market simulator. Output JSON only.",
		Grounding: true,
	})
	if err != nil {
		return PredictionResult{}, err
	}
	data, err := gemini.ParsePrediction(res.Text)
	if err != nil {
		return PredictionResult{}, err
	}
	return PredictionResult{Data: data, Sources: res.Sources}, nil
}

// FetchInvestmentView returns a pros-and-cons investment analysis as text.
func (g *Gateway) FetchInvestmentView(ctx context.Context, queryName string) (types.GroundedText, error) {
	prompt := fmt.Sprintf("Provide a recent investment view analysis for %s, covering both positive and negative factors.", queryName)
	system := "You are a professional portfolio manager. Based on the latest searched information, provide a short investment view " +
		"with two headers, **Pros** and **Cons**, each followed by at least 3 list items starting with a dash (-)."
	return g.grounded(ctx, FeatureView, g.cfg.Gemini.Model, prompt, system)
}

// FetchNews returns recent headline items for the instrument.
func (g *Gateway) FetchNews(ctx context.Context, queryName string) ([]types.NewsItem, error) {
	prompt := fmt.Sprintf(`Find the %d most significant recent news headlines about %s.

Output strictly raw JSON with no markdown formatting.
Format:
{"news": [{"title": "string", "link": "string", "source": "string", "date": "string"}]}`,
		g.cfg.News.MaxItems, queryName)

	res, err := g.generate(ctx, FeatureNews, gemini.Request{
		Model:     g.cfg.Gemini.Model,
		Prompt:    prompt,
		System:    "You are a financial news engine. Output JSON only.",
		Grounding: true,
	})
	if err != nil {
		return nil, err
	}
	return gemini.ParseNews(res.Text, g.cfg.News.MaxItems)
}

// FetchMarketOverview returns a macro market analysis covering rates,
// inflation, energy and a tactical/strategic conclusion. Pro model.
func (g *Gateway) FetchMarketOverview(ctx context.Context) (types.GroundedText, error) {
	prompt := `Act as a chief Wall Street macro strategist and analyze the current US market in depth.
Search for and include these specific data points:

1. Key market indicators: the 10-year Treasury yield, the VIX, and the latest trend of the S&P 500, Nasdaq and DJI.
2. Inflation and Fed policy: the latest CPI or PCE year-over-year rate and the current rate expectations (FOMC / cut probability).
3. Geopolitics and energy: WTI/Brent crude prices and the key geopolitical risks moving markets.
4. Conclusion: tactical (short-term) and strategic (medium-term) positioning based on the data above.

Formatting: use headers to separate the sections and bold the key figures.`

	system := "You are a top-tier Wall Street macro strategist. Provide a data-heavy, professional market analysis. " +
		"Always cite specific numbers (percentages, yields, price levels) found via search."
	return g.grounded(ctx, FeatureMacroView, g.cfg.Gemini.ProModel, prompt, system)
}

// ChartResult pairs a sanitized series with its citations.
type ChartResult struct {
	Data    []types.ChartPoint
	Sources []types.Source
}

var rangePrompts = map[types.ChartRange]string{
	types.Range1D: "intraday (past 24h)",
	types.Range1W: "past week (daily close)",
	types.Range1M: "past month (daily close)",
	types.Range3M: "past 3 months (weekly close)",
}

// FetchHistory returns the sanitized price history for the requested range.
func (g *Gateway) FetchHistory(ctx context.Context, queryName string, r types.ChartRange) (ChartResult, error) {
	if !r.Valid() {
		return ChartResult{}, fmt.Errorf("invalid chart range %q", r)
	}

	prompt := fmt.Sprintf(`Task: Generate a JSON dataset for the price history of "%s" for the "%s".

Steps:
1. Use search to find the *current* real-time price and the general trend (up/down/volatile) for the requested range.
2. Based on the found current price and trend, generate a valid JSON array of roughly 15-20 data points that represent this trend.
3. The *last* data point must match the identified current real-time price.
4. Ensure the timestamps are sequential and appropriate for the range (e.g. "HH:MM" for 1D, "MM-DD" otherwise).

Output Requirement:
- Return strictly the raw JSON array.
- Format: [{"time": "string", "price": number}]
- Do NOT wrap in markdown code blocks.
- Do NOT include any text before or after the JSON.`, queryName, rangePrompts[r])

	res, err := g.generate(ctx, FeatureChart, gemini.Request{
		Model:     g.cfg.Gemini.Model,
		Prompt:    prompt,
		System:    "You are a financial data engine. Search for the specific price info and generate the requested JSON dataset. Do not apologize or explain, just output JSON.",
		Grounding: true,
	})
	if err != nil {
		return ChartResult{}, err
	}
	data, err := gemini.ParseChartSeries(res.Text)
	if err != nil {
		return ChartResult{}, err
	}
	return ChartResult{Data: data, Sources: res.Sources}, nil
}

// FetchComparison returns a dual 5-point percentage-change dataset for two
// instruments over the trailing weeks.
func (g *Gateway) FetchComparison(ctx context.Context, nameA, nameB string) (types.ComparisonData, error) {
	prompt := fmt.Sprintf(`Compare the recent performance of %s and %s.
Produce the percentage change of each, relative to 5 weeks ago, at 5 weekly points ending today.

Output strictly raw JSON with no markdown formatting.
Format:
{"labels": ["string" x5], "seriesA": [number x5], "seriesB": [number x5]}
seriesA is %s, seriesB is %s.`, nameA, nameB, nameA, nameB)

	res, err := g.generate(ctx, FeatureComparison, gemini.Request{
		Model:     g.cfg.Gemini.Model,
		Prompt:    prompt,
		System:    "You are a financial data engine. Output JSON only.",
		Grounding: true,
	})
	if err != nil {
		return types.ComparisonData{}, err
	}
	return gemini.ParseComparison(res.Text, nameA, nameB)
}

// Resolve identifies the instrument behind a user query through the
// structured-output mode (no grounding). A nil instrument with a nil error is
// the normal "no match" outcome, not a failure.
func (g *Gateway) Resolve(ctx context.Context, userQuery string) (*types.Instrument, error) {
	prompt := fmt.Sprintf(`Identify the public company or stock index for: "%s".
Return a JSON object with:
- name: The full company name followed by ticker (e.g. "Tesla (TSLA)").
- symbol: The ticker symbol (e.g. "TSLA").
- description: A very short 3-5 word description of the company's industry.
- queryName: A string optimized for search queries (e.g. "Tesla TSLA").

If the company is invalid, obscure or cannot be confidently identified, set symbol to "NOT_FOUND".`, userQuery)

	res, err := g.generate(ctx, FeatureResolve, gemini.Request{
		Model:  g.cfg.Gemini.Model,
		Prompt: prompt,
		ResponseSchema: map[string]any{
			"type": "OBJECT",
			"properties": map[string]any{
				"name":        map[string]any{"type": "STRING"},
				"symbol":      map[string]any{"type": "STRING"},
				"description": map[string]any{"type": "STRING"},
				"queryName":   map[string]any{"type": "STRING"},
			},
			"required": []string{"name", "symbol", "description", "queryName"},
		},
	})
	if err != nil {
		return nil, err
	}
	return gemini.ParseInstrument(res.Text)
}

// grounded runs a free-text grounded fetch and returns text plus citations.
func (g *Gateway) grounded(ctx context.Context, feature Feature, model, prompt, system string) (types.GroundedText, error) {
	res, err := g.generate(ctx, feature, gemini.Request{
		Model:     model,
		Prompt:    prompt,
		System:    system,
		Grounding: true,
	})
	if err != nil {
		return types.GroundedText{}, err
	}
	return types.GroundedText{Text: res.Text, Sources: res.Sources}, nil
}

func (g *Gateway) generate(ctx context.Context, feature Feature, req gemini.Request) (*gemini.Result, error) {
	ctx, span := trace.StartSpan(ctx, "gateway-"+string(feature))
	defer span.End()

	res, err := g.gen.Generate(ctx, req)
	if err != nil {
		logger.Debug(ctx, "Feature fetch failed", "feature", string(feature), "error", err)
		return nil, fmt.Errorf("%s fetch: %w", feature, err)
	}
	return res, nil
}
