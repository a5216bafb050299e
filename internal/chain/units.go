package chain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// ToBaseUnits converts a normalized token amount to smallest-unit integer
// form. Fractions below the token's precision are truncated, never rounded
// up, so a conversion can never spend more than the caller asked for.
func ToBaseUnits(amount decimal.Decimal, decimals int32) *big.Int {
	return amount.Shift(decimals).Truncate(0).BigInt()
}

// FromBaseUnits converts a smallest-unit integer amount to normalized form.
func FromBaseUnits(amount *big.Int, decimals int32) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount, -decimals)
}

// ParseOfferID accepts offer IDs in either decimal or 0x-prefixed hex form.
func ParseOfferID(id string) (*big.Int, error) {
	s := strings.TrimSpace(id)
	if s == "" {
		return nil, fmt.Errorf("empty offer id")
	}

	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
		base = 16
	}

	n, ok := new(big.Int).SetString(s, base)
	if !ok {
		return nil, fmt.Errorf("invalid offer id %q", id)
	}
	return n, nil
}
