package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// NewDecimal creates decimal from float64
func NewDecimal(value float64) decimal.Decimal {
	return decimal.NewFromFloat(value)
}

// ImprovementType classifies how a strategy version was promoted
type ImprovementType string

const (
	ImprovementInitial  ImprovementType = "initial"
	ImprovementDaily    ImprovementType = "daily"
	ImprovementLongTerm ImprovementType = "long_term"
)

// Candle represents OHLCV candlestick data
type Candle struct {
	Symbol    string          `json:"symbol"`
	Timestamp time.Time       `json:"timestamp"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    decimal.Decimal `json:"volume"`
}

// FeatureSnapshot is the per-asset, per-day bundle of scoring inputs
type FeatureSnapshot struct {
	Return1h      float64 `json:"return_1h" db:"return_1h"`
	Return6h      float64 `json:"return_6h" db:"return_6h"`
	Return24h     float64 `json:"return_24h" db:"return_24h"`
	RSI14         float64 `json:"rsi_14" db:"rsi_14"`
	VolumeRatio   float64 `json:"volume_ratio" db:"volume_ratio"`
	NewsSentiment float64 `json:"news_sentiment" db:"news_sentiment"`
	CurrentPrice  float64 `json:"current_price" db:"current_price"`
}

// Snapshot defaults used when a value is unavailable for an asset on a day.
const (
	DefaultReturn      = 0.0
	DefaultRSI         = 50.0
	DefaultVolumeRatio = 1.0
	DefaultSentiment   = 0.0
)

// DefaultSnapshot returns a snapshot filled with the documented defaults
func DefaultSnapshot() FeatureSnapshot {
	return FeatureSnapshot{
		Return1h:      DefaultReturn,
		Return6h:      DefaultReturn,
		Return24h:     DefaultReturn,
		RSI14:         DefaultRSI,
		VolumeRatio:   DefaultVolumeRatio,
		NewsSentiment: DefaultSentiment,
	}
}

// TradeRecord is one row per UTC calendar date: the prediction made that
// day and, once known, the realized outcome plus the feature snapshots
// the prediction was made from.
type TradeRecord struct {
	Date            string                     `json:"date" db:"date"`
	ChosenAsset     string                     `json:"chosen_asset" db:"chosen_asset"`
	ChosenScore     float64                    `json:"chosen_score" db:"chosen_score"`
	ActualReturn    *float64                   `json:"actual_return" db:"actual_return"`
	RankOfChosen    *int                       `json:"rank_of_chosen" db:"rank_of_chosen"`
	NewsHeadlines   string                     `json:"news_headlines" db:"news_headlines"`
	StrategySummary string                     `json:"strategy_summary" db:"strategy_summary"`
	ModelVersion    int                        `json:"model_version" db:"model_version"`
	Features        map[string]FeatureSnapshot `json:"features" db:"-"`
}

// Resolved reports whether the outcome half of the record is populated
func (r *TradeRecord) Resolved() bool {
	return r.ActualReturn != nil && r.RankOfChosen != nil
}

// Snapshot returns the stored feature snapshot for symbol, or the
// documented defaults when none was recorded.
func (r *TradeRecord) Snapshot(symbol string) FeatureSnapshot {
	if snap, ok := r.Features[symbol]; ok {
		return snap
	}
	return DefaultSnapshot()
}

// ModelVersion is one immutable entry of the append-only strategy log
type ModelVersion struct {
	Version         int             `json:"version" db:"version"`
	StrategyCode    string          `json:"strategy_code" db:"strategy_code"`
	RankCorrelation float64         `json:"rank_correlation" db:"rank_correlation"`
	AvgDailyReturn  float64         `json:"avg_daily_return" db:"avg_daily_return"`
	ImprovementType ImprovementType `json:"improvement_type" db:"improvement_type"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
}

// Headline represents a single news item attached to a day's record
type Headline struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	PublishedAt time.Time `json:"published_at"`
}

// SentimentReport bundles the sentiment collaborator's output for one day
type SentimentReport struct {
	Scores    map[string]float64    `json:"scores"`
	Headlines map[string][]Headline `json:"headlines"`
	Summaries map[string]string     `json:"summaries"`
}

// BacktestReport is the aggregate result of replaying a strategy over a
// historical window of resolved records.
type BacktestReport struct {
	RankCorrelation float64 `json:"rank_correlation"`
	AvgDailyReturn  float64 `json:"avg_daily_return"`
	Days            int     `json:"days"`
	PairCount       int     `json:"pair_count"`
}

// DateKey formats t as the UTC calendar-date key used by the feature store
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
