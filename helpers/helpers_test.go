package helpers

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestIntToString(t *testing.T) {
	assert.Equal(t, "200", IntToString(200))
	assert.Equal(t, "-1", IntToString(-1))
}

func TestToJsonString(t *testing.T) {
	assert.Equal(t, `{"a":1}`, ToJsonString(map[string]int{"a": 1}))
	assert.Equal(t, "", ToJsonString(make(chan int)), "unencodable values render empty")
}

func TestCompactSignable(t *testing.T) {
	payload := []byte("{\"a\": 1,\r\n \"b\": \"x y\"}")
	assert.Equal(t, `{"a":1,"b":"xy"}`, string(CompactSignable(payload)))

	compact := []byte(`{"a":1}`)
	assert.Equal(t, compact, CompactSignable(compact), "already-compact input is unchanged")
}

func TestBookUnitsRoundTrip(t *testing.T) {
	price := decimal.RequireFromString("123.45")
	units := ToBookUnits(price, 2)
	assert.Equal(t, int64(12345), units)
	assert.True(t, price.Equal(FromBookUnits(units, 2)))

	// precision beyond the book's decimals is truncated
	assert.Equal(t, int64(12345), ToBookUnits(decimal.RequireFromString("123.459"), 2))

	assert.Equal(t, int64(1500), ToBookUnits(decimal.RequireFromString("1.5"), 3))
	assert.Equal(t, "1.5", FromBookUnits(1500, 3).String())
}
