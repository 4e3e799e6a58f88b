package flipit

import (
	"fmt"
	"math/big"
	"strings"
)

// TokenDecimals is the fixed decimal count for every supported wager token.
const TokenDecimals = 18

var unit = new(big.Int).Exp(big.NewInt(10), big.NewInt(TokenDecimals), nil)

// ParseAmount converts a decimal string ("1.5", "0.01") into base units at 18
// decimals using exact integer arithmetic. It rejects empty, negative, zero,
// and unparsable inputs as well as too many fractional digits.
func ParseAmount(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty amount", ErrInvalidAmount)
	}
	if strings.HasPrefix(s, "-") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}

	whole, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i+1:]
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > TokenDecimals {
		return nil, fmt.Errorf("%w: more than %d decimal places in %q", ErrInvalidAmount, TokenDecimals, s)
	}

	w, ok := new(big.Int).SetString(whole, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	out := new(big.Int).Mul(w, unit)

	if frac != "" {
		f, ok := new(big.Int).SetString(frac, 10)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
		}
		scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(TokenDecimals-len(frac))), nil)
		out.Add(out, f.Mul(f, scale))
	}

	if out.Sign() <= 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return out, nil
}

// FormatAmount renders base units as a decimal string, trimming trailing
// fractional zeros. The inverse of ParseAmount.
func FormatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	neg := v.Sign() < 0
	abs := new(big.Int).Abs(v)
	q, r := new(big.Int).QuoRem(abs, unit, new(big.Int))

	out := q.String()
	if r.Sign() != 0 {
		frac := fmt.Sprintf("%0*s", TokenDecimals, r.String())
		frac = strings.TrimRight(frac, "0")
		out += "." + frac
	}
	if neg {
		out = "-" + out
	}
	return out
}
