package logic

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Evaluate reports whether answer satisfies the condition (op, value).
//
// It is total: every input yields a boolean. A nil answer satisfies only
// IsNotAnswered and IsEmpty, and a value that does not parse as a number
// never satisfies a numeric comparator.
func Evaluate(op Operator, value string, answer *string) bool {
	switch op {
	case IsAnswered:
		return answer != nil
	case IsNotAnswered:
		return answer == nil
	case IsEmpty:
		return answer == nil || strings.TrimSpace(*answer) == ""
	case IsNotEmpty:
		return answer != nil && strings.TrimSpace(*answer) != ""
	}

	if answer == nil {
		return false
	}

	switch op {
	case Equals:
		return equal(*answer, value)
	case NotEquals:
		return !equal(*answer, value)
	case Contains:
		return containsFold(*answer, value)
	case NotContains:
		return !containsFold(*answer, value)
	case GreaterThan, LessThan, GreaterThanOrEquals, LessThanOrEquals:
		a, ok := parseNumber(*answer)
		if !ok {
			return false
		}
		v, ok := parseNumber(value)
		if !ok {
			return false
		}
		cmp := a.Cmp(v)
		switch op {
		case GreaterThan:
			return cmp > 0
		case LessThan:
			return cmp < 0
		case GreaterThanOrEquals:
			return cmp >= 0
		default:
			return cmp <= 0
		}
	}

	return false
}

func equal(answer, value string) bool {
	if a, ok := parseNumber(answer); ok {
		if v, ok := parseNumber(value); ok {
			return a.Equal(v)
		}
	}
	return strings.EqualFold(answer, value)
}

func containsFold(answer, value string) bool {
	return strings.Contains(strings.ToLower(answer), strings.ToLower(value))
}

func parseNumber(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	// Comparing rescales both sides to the smaller exponent, so an input like
	// "1e2000000000" would allocate without bound.
	if exp := d.Exponent(); exp > maxExponent || exp < -maxExponent {
		return decimal.Decimal{}, false
	}
	return d, true
}

const maxExponent = 1000
