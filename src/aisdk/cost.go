package aisdk

import "strings"

// Per-million-token dollar rates used for the end-of-turn cost figure.
// Unknown models fall back to the sonnet rate.
var pricing = map[string]struct{ in, out float64 }{
	"claude-sonnet": {3.0, 15.0},
	"claude-opus":   {15.0, 75.0},
	"claude-haiku":  {0.8, 4.0},
}

// EstimateCost converts usage into a dollar estimate for the model.
func EstimateCost(model string, usage Usage) CostEstimate {
	rate := pricing["claude-sonnet"]
	for prefix, r := range pricing {
		if strings.HasPrefix(model, prefix) {
			rate = r
			break
		}
	}
	total := float64(usage.InputTokens)/1e6*rate.in + float64(usage.OutputTokens)/1e6*rate.out
	return CostEstimate{TotalCost: total, Currency: "USD"}
}
