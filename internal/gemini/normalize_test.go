package gemini

import (
	"errors"
	"strings"
	"testing"
)

func TestExtractJSONStripsFences(t *testing.T) {
	text := "```json\n{\"price\": 100}\n```"
	payload, err := ExtractJSON(text)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if payload != `{"price": 100}` {
		t.Errorf("Expected fenced object to be extracted, got %q", payload)
	}
}

func TestExtractJSONTolePreamble(t *testing.T) {
	text := "Sure, here is the data you asked for:\n{\"a\": 1}\nLet me know if you need more."
	payload, err := ExtractJSON(text)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if payload != `{"a": 1}` {
		t.Errorf("Expected preamble and postamble to be sliced off, got %q", payload)
	}
}

func TestExtractJSONArray(t *testing.T) {
	text := "Here you go: [1, 2, 3] done"
	payload, err := ExtractJSON(text)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if payload != "[1, 2, 3]" {
		t.Errorf("Expected array payload, got %q", payload)
	}
}

func TestExtractJSONNoDelimiters(t *testing.T) {
	_, err := ExtractJSON("I could not find any data for that company.")
	if err == nil {
		t.Fatal("Expected ParseError for prose-only output")
	}
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Errorf("Expected *ParseError, got %T", err)
	}
}

func TestParsePredictionAnnotatedNumbers(t *testing.T) {
	text := "```json\n{\"predictedPrice\": \"$150.25\", \"confidenceScore\": \"85%\", \"reasoning\": \"ok\", \"timeframe\": \"7d\"}\n```"

	p, err := ParsePrediction(text)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if p.PredictedPrice != 150.25 {
		t.Errorf("Expected predicted price 150.25, got %f", p.PredictedPrice)
	}
	if p.ConfidenceScore != 85 {
		t.Errorf("Expected confidence 85, got %f", p.ConfidenceScore)
	}
	if p.Reasoning != "ok" {
		t.Errorf("Expected reasoning 'ok', got %q", p.Reasoning)
	}
	if p.Timeframe != "7d" {
		t.Errorf("Expected timeframe '7d', got %q", p.Timeframe)
	}
}

func TestParsePredictionDefaults(t *testing.T) {
	// Unparseable price falls back to 0, unparseable confidence to 50;
	// neither fails the record.
	p, err := ParsePrediction(`{"predictedPrice": "soon", "confidenceScore": {"not": "a number"}, "timeframe": "", "reasoning": ""}`)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if p.PredictedPrice != 0 {
		t.Errorf("Expected default price 0, got %f", p.PredictedPrice)
	}
	if p.ConfidenceScore != 50 {
		t.Errorf("Expected default confidence 50, got %f", p.ConfidenceScore)
	}
}

func TestParseSummaryObjectFlattening(t *testing.T) {
	// A summary delivered as a key/value map flattens to bulleted lines.
	text := `{"summary": {"earnings": "beat estimates", "outlook": "raised guidance"}, "sentiment": "POSITIVE", "score": 80}`

	s, err := ParseSummary(text)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	expected := "• earnings: beat estimates\n• outlook: raised guidance"
	if s.Summary != expected {
		t.Errorf("Expected flattened summary %q, got %q", expected, s.Summary)
	}
	if s.Sentiment != "positive" {
		t.Errorf("Expected normalized sentiment 'positive', got %q", s.Sentiment)
	}
}

func TestParseSummaryInvalidSentiment(t *testing.T) {
	s, err := ParseSummary(`{"summary": "flat day", "sentiment": "mixed", "score": "n/a"}`)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if s.Sentiment != "neutral" {
		t.Errorf("Expected unknown sentiment to degrade to neutral, got %q", s.Sentiment)
	}
	if s.Score != 50 {
		t.Errorf("Expected default score 50, got %f", s.Score)
	}
}

func TestParseTechIndicatorsNestedObject(t *testing.T) {
	text := `{"rsi": 62.5, "macd": {"line": 1.2, "signal": 0.8, "hist": 0.4}}`

	ti, err := ParseTechIndicators(text)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if ti.RSI != "62.5" {
		t.Errorf("Expected RSI rendered as '62.5', got %q", ti.RSI)
	}
	expected := "hist: 0.4, line: 1.2, signal: 0.8"
	if ti.MACD != expected {
		t.Errorf("Expected MACD rendered as %q, got %q", expected, ti.MACD)
	}
}

func TestParseAnalystRatingClampsCounts(t *testing.T) {
	text := `{"consensus": "Buy", "buyCount": 24, "holdCount": -3, "sellCount": "2"}`

	r, err := ParseAnalystRating(text)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if r.BuyCount != 24 {
		t.Errorf("Expected buy count 24, got %d", r.BuyCount)
	}
	if r.HoldCount != 0 {
		t.Errorf("Expected negative hold count clamped to 0, got %d", r.HoldCount)
	}
	if r.SellCount != 2 {
		t.Errorf("Expected string sell count coerced to 2, got %d", r.SellCount)
	}
}

func TestParseChartSeriesSanitization(t *testing.T) {
	text := `[{"time":"09:30", "price":"101.5"}, {"time":"", "price":100}, {"time":"09:31", "price":"abc"}]`

	points, err := ParseChartSeries(text)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("Expected exactly 1 retained point, got %d", len(points))
	}
	if points[0].Time != "09:30" || points[0].Price != 101.5 {
		t.Errorf("Expected retained point {09:30, 101.5}, got {%s, %f}", points[0].Time, points[0].Price)
	}
}

func TestParseChartSeriesWrappedObject(t *testing.T) {
	text := `{"data": [{"time": "10:00", "price": 99.5}]}`
	points, err := ParseChartSeries(text)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(points) != 1 || points[0].Price != 99.5 {
		t.Errorf("Expected wrapped array to be unwrapped, got %v", points)
	}
}

func TestParseNewsDropsIncompleteItems(t *testing.T) {
	text := `{"news": [
		{"title": "Earnings beat", "link": "https://example.com/a", "source": "Reuters", "date": "2024-05-01"},
		{"title": "", "link": "https://example.com/b"},
		{"title": "No link"}
	]}`

	items, err := ParseNews(text, 5)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("Expected 1 valid item, got %d", len(items))
	}
	if items[0].Title != "Earnings beat" {
		t.Errorf("Expected first valid item retained, got %q", items[0].Title)
	}
}

func TestParseInstrumentNotFoundSentinel(t *testing.T) {
	inst, err := ParseInstrument(`{"name": "", "symbol": "NOT_FOUND", "description": "", "queryName": ""}`)
	if err != nil {
		t.Fatalf("Expected no error for sentinel, got %v", err)
	}
	if inst != nil {
		t.Errorf("Expected nil instrument for NOT_FOUND sentinel, got %+v", inst)
	}
}

func TestParseInstrumentValid(t *testing.T) {
	inst, err := ParseInstrument(`{"name": "Tesla (TSLA)", "symbol": "TSLA", "description": "EV maker", "queryName": "Tesla TSLA"}`)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if inst == nil {
		t.Fatal("Expected instrument, got nil")
	}
	if inst.Symbol != "TSLA" {
		t.Errorf("Expected symbol TSLA, got %q", inst.Symbol)
	}
}

func TestParseComparisonTruncatesToWindow(t *testing.T) {
	text := `{"labels": ["W1","W2","W3","W4","W5","W6"], "seriesA": [0,1,2,3,4,5], "seriesB": [0,-1,-2,-3,-4,-5]}`

	cmp, err := ParseComparison(text, "AAPL", "MSFT")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(cmp.Labels) != 5 || len(cmp.SeriesA) != 5 || len(cmp.SeriesB) != 5 {
		t.Errorf("Expected all series truncated to 5 points, got %d/%d/%d",
			len(cmp.Labels), len(cmp.SeriesA), len(cmp.SeriesB))
	}
	if cmp.NameA != "AAPL" || cmp.NameB != "MSFT" {
		t.Errorf("Expected names carried through, got %q/%q", cmp.NameA, cmp.NameB)
	}
}

func TestParseQuotedPrice(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"$150.25 (+1.2%)", 150.25, true},
		{"NVDA 1,024.80 (-0.5%)", 1024.80, true},
		{"-3.5", -3.5, true},
		{"no price here", 0, false},
		{"", 0, false},
	}

	for _, tc := range cases {
		got, ok := ParseQuotedPrice(tc.in)
		if ok != tc.ok {
			t.Errorf("ParseQuotedPrice(%q): expected ok=%v, got %v", tc.in, tc.ok, ok)
			continue
		}
		if ok && got != tc.want {
			t.Errorf("ParseQuotedPrice(%q): expected %f, got %f", tc.in, tc.want, got)
		}
	}
}

func TestParseMetricSuffixes(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"3.2T", 3.2e12},
		{"450B", 450e9},
		{"25.4M", 25.4e6},
		{"800K", 800e3},
	}

	for _, tc := range cases {
		got, ok := ParseMetric(tc.in)
		if !ok {
			t.Errorf("ParseMetric(%q): expected ok", tc.in)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseMetric(%q): expected %g, got %g", tc.in, tc.want, got)
		}
	}

	if _, ok := ParseMetric("N/A"); ok {
		t.Error("Expected N/A to report not ok")
	}
}

func TestCoerceStringList(t *testing.T) {
	got := CoerceString([]any{"first point", "second point"}, "")
	if !strings.Contains(got, "• first point") || !strings.Contains(got, "• second point") {
		t.Errorf("Expected bulleted list, got %q", got)
	}
}
