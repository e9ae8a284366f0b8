package services

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// brNumberRegexp accepts an optional "R$" prefix, a pt-BR formatted number
// and an optional trailing "%", and nothing else.
var brNumberRegexp = regexp.MustCompile(`^(?:R\$)?\s*(-?[\d.]*\d(?:,\d+)?)\s*%?$`)

// ParseBRNumber reads amounts such as "R$ 1.234,56" or "13,50%". Values
// with an index prefix ("IPCA + 7,42%", "SELIC + 0,0915%") are not plain
// numbers and come back invalid.
func ParseBRNumber(raw *string) decimal.NullDecimal {
	if raw == nil {
		return decimal.NullDecimal{}
	}
	m := brNumberRegexp.FindStringSubmatch(strings.TrimSpace(*raw))
	if m == nil {
		return decimal.NullDecimal{}
	}

	num := strings.ReplaceAll(m[1], ".", "")
	num = strings.Replace(num, ",", ".", 1)

	d, err := decimal.NewFromString(num)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}
