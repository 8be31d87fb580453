package helpers

import (
	"encoding/json"
	"strconv"

	"github.com/shopspring/decimal"
)

// IntToString converts int64 to string.
func IntToString(i int64) string {
	return strconv.FormatInt(i, 10)
}

// ToJsonString converts any value to JSON string.
func ToJsonString(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// CompactSignable strips the whitespace the server strips before verifying a
// signature. Both sides must hash the exact same bytes.
func CompactSignable(payload []byte) []byte {
	out := make([]byte, 0, len(payload))
	for _, b := range payload {
		switch b {
		case ' ', '\r', '\n':
		default:
			out = append(out, b)
		}
	}
	return out
}

// ToBookUnits scales a human decimal amount into the book's integer units.
// 1.5 with 3 decimals becomes 1500. The fractional remainder beyond the book's
// precision is truncated.
func ToBookUnits(amount decimal.Decimal, decimals int) int64 {
	return amount.Shift(int32(decimals)).IntPart()
}

// FromBookUnits is the inverse of ToBookUnits.
func FromBookUnits(units int64, decimals int) decimal.Decimal {
	return decimal.NewFromInt(units).Shift(-int32(decimals))
}
