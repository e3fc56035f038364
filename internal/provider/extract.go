// Package provider holds helpers shared by data-source clients.
package provider

import (
	"strings"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

// ExtractPrice normalizes a price value from the various shapes the feed uses.
//
// Numbers are taken as-is. Strings such as "$1,299.99" are cleaned: digits,
// the first decimal point and a leading minus are kept, everything else is
// dropped. Objects are searched for "price", "value" or "amount".
//
// Returns ok=false when nothing numeric can be extracted.
func ExtractPrice(val interface{}) (decimal.Decimal, bool) {
	if val == nil {
		return decimal.Zero, false
	}

	switch v := val.(type) {
	case decimal.Decimal:
		return v, true
	case float64:
		return decimal.NewFromFloat(v), true
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int64:
		return decimal.NewFromInt(v), true
	case json.Number:
		return parseCleaned(v.String())
	case string:
		return parseCleaned(v)
	case map[string]interface{}:
		for _, key := range []string{"price", "value", "amount"} {
			if inner, exists := v[key]; exists && inner != nil {
				return ExtractPrice(inner)
			}
		}
		return decimal.Zero, false
	default:
		return decimal.Zero, false
	}
}

// ExtractPriceJSON decodes a raw JSON value and extracts a price from it.
func ExtractPriceJSON(raw json.RawMessage) (decimal.Decimal, bool) {
	if len(raw) == 0 {
		return decimal.Zero, false
	}
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return decimal.Zero, false
	}
	return ExtractPrice(v)
}

func parseCleaned(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	var b strings.Builder
	seenPoint := false
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' && !seenPoint:
			b.WriteRune(r)
			seenPoint = true
		case r == '-' && i == 0:
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" || cleaned == "-" || cleaned == "." || cleaned == "-." {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
