package sentiment

import (
	"testing"

	"github.com/selivandex/signal-engine/pkg/models"
)

func TestAnalyzer_ScoreText(t *testing.T) {
	analyzer := NewAnalyzer()

	tests := []struct {
		name     string
		text     string
		expected string // positive, negative, or neutral
	}{
		{
			name:     "bullish text",
			text:     "Bitcoin rally continues, bulls in control, massive pump incoming!",
			expected: "positive",
		},
		{
			name:     "bearish text",
			text:     "Crash imminent, massive dump expected, panic selling everywhere",
			expected: "negative",
		},
		{
			name:     "neutral text",
			text:     "Bitcoin price remains stable today at current levels",
			expected: "neutral",
		},
		{
			name:     "empty text",
			text:     "",
			expected: "neutral",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score := analyzer.ScoreText(tt.text)

			var got string
			if score > 0.05 {
				got = "positive"
			} else if score < -0.05 {
				got = "negative"
			} else {
				got = "neutral"
			}

			if got != tt.expected {
				t.Errorf("Expected %s sentiment, got %s (score: %.3f)",
					tt.expected, got, score)
			}
		})
	}
}

func TestAnalyzer_ScoreRange(t *testing.T) {
	analyzer := NewAnalyzer()

	texts := []string{
		"bullish rally pump moon",
		"bearish crash dump panic",
		"stable sideways quiet session",
	}

	for _, text := range texts {
		score := analyzer.ScoreText(text)
		if score < -1.0 || score > 1.0 {
			t.Errorf("Score should be between -1.0 and 1.0, got %.3f for: %s", score, text)
		}
	}
}

func TestAnalyzer_ScoreHeadlines(t *testing.T) {
	analyzer := NewAnalyzer()

	if got := analyzer.ScoreHeadlines(nil); got != models.DefaultSentiment {
		t.Errorf("no headlines should yield the default sentiment, got %.3f", got)
	}

	headlines := []models.Headline{
		{Title: "ETF approved, institutional adoption surge"},
		{Title: "Bullish breakout confirmed"},
	}
	if got := analyzer.ScoreHeadlines(headlines); got <= 0 {
		t.Errorf("positive headlines should score above zero, got %.3f", got)
	}

	headlines = []models.Headline{
		{Title: "Exchange hack triggers panic selloff"},
		{Title: "Regulators announce crackdown, lawsuit filed"},
	}
	if got := analyzer.ScoreHeadlines(headlines); got >= 0 {
		t.Errorf("negative headlines should score below zero, got %.3f", got)
	}
}
