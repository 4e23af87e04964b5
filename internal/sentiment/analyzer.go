package sentiment

import (
	"strings"

	"github.com/selivandex/signal-engine/pkg/models"
)

// Analyzer scores headline text with a weighted keyword lexicon. Scores
// are normalized by word count and clamped to [-1.0, 1.0], matching the
// news_sentiment feature range.
type Analyzer struct {
	lexicon map[string]float64
}

// NewAnalyzer creates new sentiment analyzer
func NewAnalyzer() *Analyzer {
	return &Analyzer{
		lexicon: buildLexicon(),
	}
}

// ScoreText analyzes a single piece of text
func (a *Analyzer) ScoreText(text string) float64 {
	if text == "" {
		return 0.0
	}

	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		return 0.0
	}

	var score float64
	matched := 0

	for _, word := range words {
		word = strings.Trim(word, ".,!?;:'\"()")
		if weight, ok := a.lexicon[word]; ok {
			score += weight
			matched++
		}
	}

	if matched == 0 {
		return 0.0
	}

	return clamp(score/float64(len(words)), -1.0, 1.0)
}

// ScoreHeadlines averages the score over an asset's headlines. Titles
// carry more signal than descriptions, so both are included.
func (a *Analyzer) ScoreHeadlines(headlines []models.Headline) float64 {
	if len(headlines) == 0 {
		return models.DefaultSentiment
	}

	var total float64
	for _, h := range headlines {
		total += a.ScoreText(h.Title + " " + h.Description)
	}

	return clamp(total/float64(len(headlines)), -1.0, 1.0)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// buildLexicon returns signed keyword weights for crypto headlines
func buildLexicon() map[string]float64 {
	return map[string]float64{
		// Positive
		"bullish":       1.0,
		"bull":          0.9,
		"rally":         0.9,
		"surge":         0.8,
		"soar":          0.8,
		"ath":           0.8,
		"breakout":      0.7,
		"pump":          0.7,
		"moon":          0.7,
		"etf":           0.7,
		"gain":          0.6,
		"profit":        0.6,
		"green":         0.6,
		"halving":       0.6,
		"approved":      0.6,
		"adoption":      0.6,
		"breakthrough":  0.6,
		"up":            0.5,
		"rise":          0.5,
		"growth":        0.5,
		"increase":      0.5,
		"positive":      0.5,
		"optimistic":    0.5,
		"partnership":   0.5,
		"upgrade":       0.5,
		"institutional": 0.5,
		"accumulation":  0.5,

		// Negative
		"bearish":      -1.0,
		"crash":        -1.0,
		"hack":         -1.0,
		"exploit":      -1.0,
		"scam":         -1.0,
		"fraud":        -1.0,
		"bear":         -0.9,
		"dump":         -0.9,
		"plunge":       -0.8,
		"panic":        -0.8,
		"ban":          -0.8,
		"liquidation":  -0.8,
		"capitulation": -0.8,
		"loss":         -0.7,
		"selloff":      -0.7,
		"lawsuit":      -0.7,
		"crackdown":    -0.7,
		"fud":          -0.7,
		"fall":         -0.6,
		"drop":         -0.6,
		"decline":      -0.6,
		"red":          -0.6,
		"fear":         -0.6,
		"correction":   -0.6,
		"bubble":       -0.6,
		"overvalued":   -0.6,
		"down":         -0.5,
		"negative":     -0.5,
		"pessimistic":  -0.5,
		"sell":         -0.5,
		"regulation":   -0.5,
	}
}
