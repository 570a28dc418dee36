package story

import "github.com/fablecast/fablecast/pkg/provider/textgen"

// modelPrice holds USD prices per one million tokens.
type modelPrice struct {
	inputPerM  float64
	outputPerM float64
}

// PriceTable maps model identifiers to their token prices. Models absent
// from the table produce an unknown cost, never a silent zero.
type PriceTable map[string]modelPrice

// DefaultPrices covers the models the service is expected to run against.
// Prices are USD per 1M tokens (input, output).
var DefaultPrices = PriceTable{
	"gpt-4o":                 {inputPerM: 2.50, outputPerM: 10.00},
	"gpt-4o-mini":            {inputPerM: 0.15, outputPerM: 0.60},
	"gpt-4.1":                {inputPerM: 2.00, outputPerM: 8.00},
	"gpt-4.1-mini":           {inputPerM: 0.40, outputPerM: 1.60},
	"claude-sonnet-4-5":      {inputPerM: 3.00, outputPerM: 15.00},
	"claude-haiku-4-5":       {inputPerM: 1.00, outputPerM: 5.00},
	"mistral-small-latest":   {inputPerM: 0.10, outputPerM: 0.30},
	"deepseek-chat":          {inputPerM: 0.27, outputPerM: 1.10},
}

// Cost computes the monetary cost of a completion. known is false when the
// model has no table entry; callers must then report the cost as unknown
// rather than zero — silently wrong accounting is worse than none.
func (t PriceTable) Cost(model string, u textgen.Usage) (usd float64, known bool) {
	p, ok := t[model]
	if !ok {
		return 0, false
	}
	usd = float64(u.PromptTokens)/1e6*p.inputPerM +
		float64(u.CompletionTokens)/1e6*p.outputPerM
	return usd, true
}

// UsageMetadata builds the token/cost map persisted with every outcome.
// The cost_usd key is present only when the model's price is known.
func (t PriceTable) UsageMetadata(model string, u textgen.Usage) map[string]any {
	m := map[string]any{
		"prompt_tokens":     u.PromptTokens,
		"completion_tokens": u.CompletionTokens,
		"total_tokens":      u.TotalTokens,
	}
	if usd, known := t.Cost(model, u); known {
		m["cost_usd"] = usd
	} else {
		m["cost_known"] = false
	}
	return m
}
