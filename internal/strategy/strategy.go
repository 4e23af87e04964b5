package strategy

import (
	"math"

	"go.uber.org/zap"

	"github.com/selivandex/signal-engine/pkg/logger"
	"github.com/selivandex/signal-engine/pkg/models"
)

// Scorer is the fixed scoring contract: a stateless function of the four
// signature features to a real-valued preference score.
type Scorer interface {
	Score(snap models.FeatureSnapshot) (float64, error)
	Source() string
}

// DefaultSource is the baseline momentum-plus-volume formula used before
// the first promotion exists.
const DefaultSource = "0.5*return_24h + 0.3*return_6h + 0.1*volume_ratio + 2.0*news_sentiment"

// Default returns the baseline scorer. The source constant is known-valid;
// a parse failure here is a programming error.
func Default() Scorer {
	s, err := Load(DefaultSource)
	if err != nil {
		panic(err)
	}
	return s
}

// Formula is a Scorer backed by a parsed arithmetic expression
type Formula struct {
	root   *node
	source string
}

// Source returns the textual representation the formula was loaded from
func (f *Formula) Source() string {
	return f.source
}

// Score evaluates the formula against one asset's feature snapshot
func (f *Formula) Score(snap models.FeatureSnapshot) (float64, error) {
	vars := map[string]float64{
		"return_24h":     snap.Return24h,
		"return_6h":      snap.Return6h,
		"volume_ratio":   snap.VolumeRatio,
		"news_sentiment": snap.NewsSentiment,
	}
	return f.root.eval(vars)
}

// SafeScore invokes scorer inside the fault boundary: any evaluation
// error, NaN or Inf is converted to the neutral score 0.0 for that asset
// only, logged, and never aborts the enclosing scoring pass.
func SafeScore(scorer Scorer, symbol string, snap models.FeatureSnapshot) float64 {
	score, err := scorer.Score(snap)
	if err != nil {
		logger.Warn("scoring failed, using neutral score",
			zap.String("asset", symbol),
			zap.Error(err),
		)
		return 0.0
	}
	if math.IsNaN(score) || math.IsInf(score, 0) {
		logger.Warn("scoring produced non-finite value, using neutral score",
			zap.String("asset", symbol),
			zap.Float64("score", score),
		)
		return 0.0
	}
	return score
}

// Load parses and validates a textual strategy and returns it as a Scorer.
// The text is untrusted oracle output: it must parse, reference only the
// four signature features, and stay under the node budget.
func Load(source string) (Scorer, error) {
	root, err := parseFormula(source)
	if err != nil {
		return nil, err
	}
	if err := validate(root); err != nil {
		return nil, err
	}
	return &Formula{root: root, source: source}, nil
}
