package oracle

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/selivandex/signal-engine/internal/store"
	"github.com/selivandex/signal-engine/pkg/models"
)

const formulaContract = `Reply with a single arithmetic scoring formula over exactly these
variables: return_24h, return_6h, volume_ratio, news_sentiment.
Allowed operators: + - * / and parentheses. Allowed functions:
sqrt, log, abs, tanh, min, max.

Example: 0.6*return_24h + 0.2*return_6h + 0.1*volume_ratio + 1.5*news_sentiment

Return ONLY the formula, nothing else.`

func buildDailyPrompt(yesterday *models.TradeRecord) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Here are the actual 24-hour returns of %d cryptos yesterday:\n", models.UniverseSize()))
	for _, symbol := range models.Universe {
		sb.WriteString(fmt.Sprintf("%s: %.2f%%\n", symbol, yesterday.Snapshot(symbol).Return24h))
	}

	actualReturn := 0.0
	if yesterday.ActualReturn != nil {
		actualReturn = *yesterday.ActualReturn
	}
	rank := models.UniverseSize()
	if yesterday.RankOfChosen != nil {
		rank = *yesterday.RankOfChosen
	}

	sb.WriteString(fmt.Sprintf("\nWe picked %s because it had the highest momentum + volume score.\n", yesterday.ChosenAsset))
	sb.WriteString(fmt.Sprintf("The actual return was %.2f%%, ranking #%d out of %d.\n",
		actualReturn, rank, models.UniverseSize()))

	if yesterday.NewsHeadlines != "" {
		sb.WriteString(fmt.Sprintf("\nTop news headlines yesterday that mentioned %s:\n%s\n",
			yesterday.ChosenAsset, yesterday.NewsHeadlines))
	}

	sb.WriteString("\nWrite a scoring formula that would have ranked the best performer first and the worst last.\n\n")
	sb.WriteString(formulaContract)

	return sb.String()
}

func buildLongTermPrompt(stats *store.ResolvedStats) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Here are %d daily crypto trades with what we predicted vs what actually happened.\n", stats.Count))
	sb.WriteString(fmt.Sprintf("Average daily return: %.2f%%\n", stats.AvgReturn))
	sb.WriteString(fmt.Sprintf("Average rank of the chosen asset: %.1f out of %d\n", stats.AvgRank, models.UniverseSize()))
	sb.WriteString(fmt.Sprintf("Win rate: %.1f%%\n", stats.WinRate))
	sb.WriteString(fmt.Sprintf("Best day: %.2f%%, worst day: %.2f%%\n", stats.BestReturn, stats.WorstReturn))

	sb.WriteString("\nWrite the single best scoring formula that would have produced the highest risk-adjusted return.\n\n")
	sb.WriteString(formulaContract)

	return sb.String()
}

func buildSummaryPrompt(symbol string, headlines []models.Headline) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Recent news headlines about %s:\n", symbol))
	for _, h := range headlines {
		sb.WriteString("- " + h.Title + "\n")
	}
	sb.WriteString("\nSummarize in at most two plain sentences what is driving this asset. Return only the summary.")

	return sb.String()
}

var (
	codeBlockRe = regexp.MustCompile("(?s)```[a-z]*\\n(.*?)\\n```")
	scoreLineRe = regexp.MustCompile(`(?i)score\s*=\s*(.+)`)
)

// extractFormula pulls the formula out of a chat reply. Models tend to
// wrap it in a code fence or prefix it with "score =" despite the
// instructions, so both forms are accepted before falling back to the
// raw text.
func extractFormula(answer string) string {
	answer = strings.TrimSpace(answer)

	if m := codeBlockRe.FindStringSubmatch(answer); m != nil {
		answer = strings.TrimSpace(m[1])
	}
	if m := scoreLineRe.FindStringSubmatch(answer); m != nil {
		answer = strings.TrimSpace(m[1])
	}

	// Keep the first non-empty line; trailing commentary is noise
	for _, line := range strings.Split(answer, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			return line
		}
	}

	return answer
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[:max]
}
