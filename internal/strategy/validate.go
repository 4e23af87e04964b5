package strategy

import "fmt"

// maxNodes bounds accepted formulas. Oracle output is untrusted; a
// pathologically large expression is rejected at load time instead of
// being carried into every scoring pass.
const maxNodes = 200

// signatureVars is the fixed, closed argument list of the scoring contract
var signatureVars = map[string]bool{
	"return_24h":     true,
	"return_6h":      true,
	"volume_ratio":   true,
	"news_sentiment": true,
}

func validate(root *node) error {
	count := 0
	usesVar := false

	var walk func(n *node) error
	walk = func(n *node) error {
		if n == nil {
			return nil
		}
		count++
		if count > maxNodes {
			return fmt.Errorf("formula exceeds %d nodes", maxNodes)
		}

		if n.kind == nodeVar {
			if !signatureVars[n.name] {
				return fmt.Errorf("variable %q is not part of the scoring signature", n.name)
			}
			usesVar = true
		}

		if err := walk(n.left); err != nil {
			return err
		}
		if err := walk(n.right); err != nil {
			return err
		}
		for _, arg := range n.args {
			if err := walk(arg); err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk(root); err != nil {
		return err
	}

	if !usesVar {
		return fmt.Errorf("formula references no feature, every asset would score identically")
	}

	return nil
}
