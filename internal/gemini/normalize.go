package gemini

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"ai-market-dashboard/internal/types"
)

// The model is instructed to emit raw JSON but routinely wraps it in markdown
// fences, adds preamble prose, or returns the wrong shape for individual
// fields (numbers as annotated strings, prose as key/value objects). The
// normalizer recovers a typed record from all of that; only output with no
// JSON-like payload at all is rejected.

var fenceRe = regexp.MustCompile("```[a-zA-Z]*")

// ExtractJSON strips markdown code fences and slices the text between the
// first opening delimiter and the last matching closing delimiter, tolerating
// preamble and postamble prose. Returns a ParseError when no object or array
// delimiters are present.
func ExtractJSON(text string) (string, error) {
	cleaned := strings.TrimSpace(fenceRe.ReplaceAllString(text, ""))

	objStart := strings.Index(cleaned, "{")
	arrStart := strings.Index(cleaned, "[")

	// Prefer whichever delimiter opens first so an array wrapped in prose
	// containing a stray brace still parses.
	if arrStart != -1 && (objStart == -1 || arrStart < objStart) {
		if end := strings.LastIndex(cleaned, "]"); end > arrStart {
			return cleaned[arrStart : end+1], nil
		}
	}
	if objStart != -1 {
		if end := strings.LastIndex(cleaned, "}"); end > objStart {
			return cleaned[objStart : end+1], nil
		}
	}

	return "", &ParseError{Reason: "no JSON delimiters found in model output"}
}

// extractObject parses text into a generic map.
func extractObject(text string) (map[string]any, error) {
	payload, err := ExtractJSON(text)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		return nil, &ParseError{Reason: "malformed JSON object: " + err.Error()}
	}
	return m, nil
}

// extractArray parses text into a generic slice. An object wrapping the array
// under the given key (e.g. {"news": [...]}) is unwrapped.
func extractArray(text, wrapperKey string) ([]any, error) {
	payload, err := ExtractJSON(text)
	if err != nil {
		return nil, err
	}

	var arr []any
	if err := json.Unmarshal([]byte(payload), &arr); err == nil {
		return arr, nil
	}

	var m map[string]any
	if err := json.Unmarshal([]byte(payload), &m); err == nil && wrapperKey != "" {
		if inner, ok := m[wrapperKey].([]any); ok {
			return inner, nil
		}
	}

	return nil, &ParseError{Reason: "malformed JSON array"}
}

// --- Field-level coercion -------------------------------------------------

// numericCleanRe keeps digits, dot and minus; everything else ("$", "%",
// thousands separators, currency words) is stripped before parsing.
var numericCleanRe = regexp.MustCompile(`[^0-9.\-]`)

// CoerceNumber converts a loosely-typed field to a float64, substituting def
// when the value cannot be recovered. Strings are cleaned of annotation
// characters first, so "$150.25" and "85%" both parse.
func CoerceNumber(v any, def float64) float64 {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return def
		}
		return n
	case string:
		cleaned := numericCleanRe.ReplaceAllString(n, "")
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return def
		}
		return f
	}
	return def
}

// CoerceCount converts to a non-negative integer count.
func CoerceCount(v any) int {
	n := CoerceNumber(v, 0)
	if n < 0 {
		return 0
	}
	return int(n)
}

// CoerceString converts a loosely-typed field to prose. A map delivered where
// prose was expected (a "summary" returned as key/value points) is flattened
// to one bulleted line per key; keys are sorted for stable output. Lists are
// flattened the same way.
func CoerceString(v any, def string) string {
	switch s := v.(type) {
	case string:
		if t := strings.TrimSpace(s); t != "" {
			return t
		}
		return def
	case map[string]any:
		if len(s) == 0 {
			return def
		}
		keys := make([]string, 0, len(s))
		for k := range s {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		lines := make([]string, 0, len(keys))
		for _, k := range keys {
			lines = append(lines, fmt.Sprintf("• %s: %s", k, renderScalar(s[k])))
		}
		return strings.Join(lines, "\n")
	case []any:
		if len(s) == 0 {
			return def
		}
		lines := make([]string, 0, len(s))
		for _, item := range s {
			lines = append(lines, "• "+renderScalar(item))
		}
		return strings.Join(lines, "\n")
	case float64:
		return renderScalar(s)
	}
	return def
}

// CoerceScalarString renders a field expected as one display scalar. A nested
// object with scalar sub-fields (an indicator returned as {line, signal,
// hist}) is rendered to a compact human-readable string instead of discarded.
func CoerceScalarString(v any, def string) string {
	switch s := v.(type) {
	case string:
		if t := strings.TrimSpace(s); t != "" {
			return t
		}
		return def
	case float64:
		return renderScalar(s)
	case map[string]any:
		if len(s) == 0 {
			return def
		}
		keys := make([]string, 0, len(s))
		for k := range s {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s: %s", k, renderScalar(s[k])))
		}
		return strings.Join(parts, ", ")
	}
	return def
}

func renderScalar(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	case nil:
		return ""
	}
	return fmt.Sprintf("%v", v)
}

// --- Typed record parsers -------------------------------------------------

// ParsePrediction normalizes a 7-day prediction payload. A malformed price
// degrades to 0 and a malformed confidence to 50; neither fails the record.
func ParsePrediction(text string) (types.PredictionData, error) {
	m, err := extractObject(text)
	if err != nil {
		return types.PredictionData{}, err
	}

	p := types.PredictionData{
		PredictedPrice:  CoerceNumber(m["predictedPrice"], 0),
		ConfidenceScore: CoerceNumber(m["confidenceScore"], 50),
		Timeframe:       CoerceString(m["timeframe"], "7 days"),
		Reasoning:       CoerceString(m["reasoning"], "No reasoning provided."),
	}
	if p.ConfidenceScore < 0 {
		p.ConfidenceScore = 0
	}
	if p.ConfidenceScore > 100 {
		p.ConfidenceScore = 100
	}
	return p, nil
}

// ParseSummary normalizes a summary+sentiment payload.
func ParseSummary(text string) (types.SentimentData, error) {
	m, err := extractObject(text)
	if err != nil {
		return types.SentimentData{}, err
	}

	sentiment := strings.ToLower(CoerceString(m["sentiment"], "neutral"))
	switch sentiment {
	case "positive", "negative", "neutral":
	default:
		sentiment = "neutral"
	}

	return types.SentimentData{
		Summary:   CoerceString(m["summary"], "Summary unavailable."),
		Sentiment: sentiment,
		Score:     CoerceNumber(m["score"], 50),
	}, nil
}

// ParseExtendedQuote normalizes the price/changePercent/ma200 payload used by
// percentage-change and MA-cross alert evaluation.
func ParseExtendedQuote(text string) (types.ExtendedQuote, error) {
	m, err := extractObject(text)
	if err != nil {
		return types.ExtendedQuote{}, err
	}
	return types.ExtendedQuote{
		Price:         CoerceNumber(m["price"], 0),
		ChangePercent: CoerceNumber(m["changePercent"], 0),
		MA200:         CoerceNumber(m["ma200"], 0),
	}, nil
}

// ParseTechIndicators normalizes RSI/MACD. Both are display strings: RSI may
// arrive as a bare number, MACD as a {line, signal, hist} object.
func ParseTechIndicators(text string) (types.TechIndicators, error) {
	m, err := extractObject(text)
	if err != nil {
		return types.TechIndicators{}, err
	}
	return types.TechIndicators{
		RSI:  CoerceScalarString(m["rsi"], "N/A"),
		MACD: CoerceScalarString(m["macd"], "N/A"),
	}, nil
}

// ParseAnalystRating normalizes consensus plus buy/hold/sell counts. Counts
// are clamped to non-negative integers.
func ParseAnalystRating(text string) (types.AnalystRating, error) {
	m, err := extractObject(text)
	if err != nil {
		return types.AnalystRating{}, err
	}
	return types.AnalystRating{
		Consensus: CoerceString(m["consensus"], "Hold"),
		BuyCount:  CoerceCount(m["buyCount"]),
		HoldCount: CoerceCount(m["holdCount"]),
		SellCount: CoerceCount(m["sellCount"]),
	}, nil
}

// ParseCompanyMetrics normalizes market cap / P/E / dividend yield, all kept
// as display strings since the model annotates them ("3.2T", "28.5x").
func ParseCompanyMetrics(text string) (types.CompanyMetrics, error) {
	m, err := extractObject(text)
	if err != nil {
		return types.CompanyMetrics{}, err
	}
	return types.CompanyMetrics{
		MarketCap:     CoerceScalarString(m["marketCap"], "N/A"),
		PERatio:       CoerceScalarString(m["peRatio"], "N/A"),
		DividendYield: CoerceScalarString(m["dividendYield"], "N/A"),
	}, nil
}

// ParseNews normalizes a headline list. Items missing a title or link are
// dropped; a malformed entry never aborts its siblings.
func ParseNews(text string, maxItems int) ([]types.NewsItem, error) {
	arr, err := extractArray(text, "news")
	if err != nil {
		return nil, err
	}

	items := make([]types.NewsItem, 0, len(arr))
	for _, raw := range arr {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		item := types.NewsItem{
			Title:  CoerceString(m["title"], ""),
			Link:   CoerceString(m["link"], ""),
			Source: CoerceString(m["source"], ""),
			Date:   CoerceString(m["date"], ""),
		}
		if item.Title == "" || item.Link == "" {
			continue
		}
		items = append(items, item)
		if maxItems > 0 && len(items) == maxItems {
			break
		}
	}
	return items, nil
}

// ParseChartSeries normalizes a price history array. Entries with an empty
// time or a non-finite price are dropped; order is preserved as returned.
func ParseChartSeries(text string) ([]types.ChartPoint, error) {
	arr, err := extractArray(text, "data")
	if err != nil {
		return nil, err
	}

	nan := math.NaN()
	points := make([]types.ChartPoint, 0, len(arr))
	for _, raw := range arr {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		price := CoerceNumber(m["price"], nan)
		point := types.ChartPoint{
			Time:  CoerceString(m["time"], ""),
			Price: price,
			Open:  CoerceNumber(m["open"], 0),
			High:  CoerceNumber(m["high"], 0),
			Low:   CoerceNumber(m["low"], 0),
			Close: CoerceNumber(m["close"], 0),
		}
		if point.Time == "" || math.IsNaN(point.Price) {
			continue
		}
		points = append(points, point)
	}
	return points, nil
}

// comparisonPoints is the fixed trailing window of a comparison fetch.
const comparisonPoints = 5

// ParseComparison normalizes a dual percentage-change dataset, truncating all
// three series to the fixed 5-point window.
func ParseComparison(text, nameA, nameB string) (types.ComparisonData, error) {
	m, err := extractObject(text)
	if err != nil {
		return types.ComparisonData{}, err
	}

	labels := coerceStringSlice(m["labels"])
	seriesA := coerceNumberSlice(m["seriesA"])
	seriesB := coerceNumberSlice(m["seriesB"])

	n := comparisonPoints
	if len(labels) < n {
		n = len(labels)
	}
	if len(seriesA) < n {
		n = len(seriesA)
	}
	if len(seriesB) < n {
		n = len(seriesB)
	}

	return types.ComparisonData{
		NameA:   nameA,
		NameB:   nameB,
		Labels:  labels[:n],
		SeriesA: seriesA[:n],
		SeriesB: seriesB[:n],
	}, nil
}

func coerceStringSlice(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		out = append(out, renderScalar(item))
	}
	return out
}

func coerceNumberSlice(v any) []float64 {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]float64, 0, len(arr))
	for _, item := range arr {
		out = append(out, CoerceNumber(item, 0))
	}
	return out
}

// notFoundSymbol is the sentinel the resolver prompt reserves for "no match".
const notFoundSymbol = "NOT_FOUND"

// ParseInstrument decodes a structured-output resolution payload. A sentinel
// symbol means the query matched nothing; that is a normal outcome reported
// as a nil instrument, not an error.
func ParseInstrument(text string) (*types.Instrument, error) {
	payload, err := ExtractJSON(text)
	if err != nil {
		return nil, err
	}
	var inst types.Instrument
	if err := json.Unmarshal([]byte(payload), &inst); err != nil {
		return nil, &ParseError{Reason: "malformed instrument payload: " + err.Error()}
	}
	if inst.Symbol == notFoundSymbol || inst.Symbol == "" {
		return nil, nil
	}
	if inst.QueryName == "" {
		inst.QueryName = inst.Name
	}
	return &inst, nil
}

// --- Annotated string helpers ---------------------------------------------

var firstNumberRe = regexp.MustCompile(`-?\d+\.\d+|-?\d+`)

// ParseQuotedPrice extracts the leading numeric price from an annotated quote
// string such as "$150.25 (+1.2%)" or "NVDA 1,024.80 (-0.5%)".
func ParseQuotedPrice(text string) (float64, bool) {
	if text == "" {
		return 0, false
	}
	cleaned := strings.ReplaceAll(text, ",", "")
	match := firstNumberRe.FindString(cleaned)
	if match == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// ParseMetric extracts a number from a metric string with a magnitude suffix
// (T/B/M/K), e.g. "3.2T" -> 3.2e12.
func ParseMetric(text string) (float64, bool) {
	t := strings.TrimSpace(text)
	if t == "" || t == "N/A" || t == "-" || t == "---" {
		return 0, false
	}

	multiplier := 1.0
	upper := strings.ToUpper(t)
	switch {
	case strings.Contains(upper, "T"):
		multiplier = 1e12
	case strings.Contains(upper, "B"):
		multiplier = 1e9
	case strings.Contains(upper, "M"):
		multiplier = 1e6
	case strings.Contains(upper, "K"):
		multiplier = 1e3
	}

	n, ok := ParseQuotedPrice(t)
	if !ok {
		return 0, false
	}
	return n * multiplier, true
}
