package types

// Instrument is a trackable stock or index resolved by entity resolution or
// taken from a static catalog. Identity is the Symbol, case-sensitive.
type Instrument struct {
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Description string `json:"description"`
	QueryName   string `json:"queryName"`
}

// Source is a grounding citation attached by the search-grounded model.
// Uniqueness key is URI.
type Source struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

// GroundedText is the result of a grounded free-text feature fetch.
type GroundedText struct {
	Text    string
	Sources []Source
}

type SentimentData struct {
	Summary   string  `json:"summary"`
	Sentiment string  `json:"sentiment"` // positive | negative | neutral
	Score     float64 `json:"score"`     // 0-100
}

type PredictionData struct {
	PredictedPrice  float64 `json:"predictedPrice"`
	ConfidenceScore float64 `json:"confidenceScore"` // 0-100
	Timeframe       string  `json:"timeframe"`
	Reasoning       string  `json:"reasoning"`
}

// ChartPoint is one entry of a price history series. Price is always set;
// OHLC fields are optional depending on what the model returned.
type ChartPoint struct {
	Time  string  `json:"time"`
	Price float64 `json:"price"`
	Open  float64 `json:"open,omitempty"`
	High  float64 `json:"high,omitempty"`
	Low   float64 `json:"low,omitempty"`
	Close float64 `json:"close,omitempty"`
}

// ChartRange selects the trailing window of a history fetch.
type ChartRange string

const (
	Range1D ChartRange = "1D"
	Range1W ChartRange = "1W"
	Range1M ChartRange = "1M"
	Range3M ChartRange = "3M"
)

// Valid reports whether r is one of the supported ranges.
func (r ChartRange) Valid() bool {
	switch r {
	case Range1D, Range1W, Range1M, Range3M:
		return true
	}
	return false
}

type ExtendedQuote struct {
	Price         float64 `json:"price"`
	ChangePercent float64 `json:"changePercent"`
	MA200         float64 `json:"ma200"`
}

// TechIndicators holds model-reported technical indicators. Both fields are
// kept as display strings since the model frequently returns annotated values.
type TechIndicators struct {
	RSI  string `json:"rsi"`
	MACD string `json:"macd"`
}

type AnalystRating struct {
	Consensus string `json:"consensus"` // Buy | Overweight | Hold | Underweight | Sell
	BuyCount  int    `json:"buyCount"`
	HoldCount int    `json:"holdCount"`
	SellCount int    `json:"sellCount"`
}

type NewsItem struct {
	Title  string `json:"title"`
	Link   string `json:"link"`
	Source string `json:"source"`
	Date   string `json:"date"`
}

type CompanyMetrics struct {
	MarketCap     string `json:"marketCap"`
	PERatio       string `json:"peRatio"`
	DividendYield string `json:"dividendYield"`
}

// ComparisonData is a dual percentage-change series over a fixed trailing
// window of 5 points, used to compare two instruments.
type ComparisonData struct {
	NameA   string    `json:"nameA"`
	NameB   string    `json:"nameB"`
	Labels  []string  `json:"labels"`
	SeriesA []float64 `json:"seriesA"`
	SeriesB []float64 `json:"seriesB"`
}

// AlertType identifies the condition of a price alert.
type AlertType string

const (
	AlertAbove     AlertType = "above"
	AlertBelow     AlertType = "below"
	AlertChangePct AlertType = "change_pct"
	AlertMACross   AlertType = "ma_cross"
)

// PriceAlert is a user-configured alert condition. An alert stays armed
// (Active=true) until it fires once, then auto-disarms.
type PriceAlert struct {
	Type        AlertType `json:"type"`
	TargetValue float64   `json:"targetValue"`
	Active      bool      `json:"active"`
}

// NotificationKind classifies a user-facing notification.
type NotificationKind string

const (
	NotifySuccess NotificationKind = "success"
	NotifyAlert   NotificationKind = "alert"
	NotifyInfo    NotificationKind = "info"
)

type Notification struct {
	ID      string           `json:"id"`
	Title   string           `json:"title"`
	Message string           `json:"message"`
	Kind    NotificationKind `json:"kind"`
}
