package ledger

// unitPrices is the cost per 1000 tokens in USD for each known service.
var unitPrices = map[string]float64{
	"claude-code": 0.015,
	"anthropic":   0.015,
	"openai":      0.010,
	"gemini":      0.007,
	"local":       0.0,
}

// defaultUnitPrice applies to services missing from the table.
const defaultUnitPrice = 0.010

// Cost computes the monetary cost of a token count for a service.
// The result is deterministic: a fixed service and token count always
// yields the same cost, regardless of call order or prior history.
func Cost(service string, tokens int) float64 {
	if tokens <= 0 {
		return 0.0
	}

	price, ok := unitPrices[service]
	if !ok {
		price = defaultUnitPrice
	}

	return float64(tokens) / 1000.0 * price
}
