/**
 * @description
 * Currency helpers: fixed-point decimal formatting for gateway amounts and the
 * fixed exchange-rate table used to quote catalog prices in the currencies of
 * supported MoMo markets. Rates are pegged to a 50.00 ZAR base and are not
 * live FX.
 */
package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// CurrencyZAR is the catalog base currency.
const CurrencyZAR = "ZAR"

var ErrUnsupportedCurrency = errors.New("unsupported currency")

// exchangeRatesPer50ZAR holds the localized value of 50.00 ZAR in whole
// currency units.
var exchangeRatesPer50ZAR = map[string]int64{
	"XOF": 1650,  // West African CFA Franc
	"GHS": 15,    // Ghanaian Cedi
	"GNF": 25000, // Guinean Franc
	"LRD": 8,     // Liberian Dollar
	"NGN": 2200,  // Nigerian Naira
	"ZAR": 50,    // base
	"USD": 3,     // fallback
}

// SupportedCurrencies lists the currency codes the service can quote in.
func SupportedCurrencies() []string {
	codes := make([]string, 0, len(exchangeRatesPer50ZAR))
	for code := range exchangeRatesPer50ZAR {
		codes = append(codes, code)
	}
	return codes
}

// ConvertFromZAR converts an amount in ZAR cents into cents of the target
// currency using the fixed table. Rounds half away from zero.
func ConvertFromZAR(amountCents int64, currency string) (int64, error) {
	code := strings.ToUpper(strings.TrimSpace(currency))
	rate, ok := exchangeRatesPer50ZAR[code]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedCurrency, currency)
	}
	// 50.00 ZAR == 5000 cents == rate whole units == rate*100 cents.
	converted := amountCents * rate * 100
	return (converted + 2500) / 5000, nil
}

// FormatAmount renders cents as the fixed-point decimal string the gateway
// expects, e.g. 5000 -> "50.00".
func FormatAmount(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// ParseAmount parses a fixed-point decimal string ("50.00", "50.5", "50") into
// cents. At most two fractional digits are accepted.
func ParseAmount(s string) (int64, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, errors.New("empty amount")
	}
	negative := strings.HasPrefix(trimmed, "-")
	if negative {
		trimmed = trimmed[1:]
	}

	wholePart := trimmed
	fracPart := ""
	if idx := strings.IndexByte(trimmed, '.'); idx >= 0 {
		wholePart = trimmed[:idx]
		fracPart = trimmed[idx+1:]
	}
	if wholePart == "" {
		wholePart = "0"
	}
	if len(fracPart) > 2 {
		return 0, fmt.Errorf("amount %q has more than two decimal places", s)
	}
	for len(fracPart) < 2 {
		fracPart += "0"
	}

	whole, err := strconv.ParseInt(wholePart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	frac, err := strconv.ParseInt(fracPart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}

	cents := whole*100 + frac
	if negative {
		cents = -cents
	}
	return cents, nil
}
