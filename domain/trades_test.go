package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTradeEvent(t *testing.T) {
	payload := []byte(`{"Confirmed":{"asset_id":{"Index":200},"trade_id":9,"order_id":"o1","price":50000,"quantity":3,"timestamp_ns":12,"is_maker":true,"is_buyer":false,"confirmed":true}}`)

	ev, err := ParseTradeEvent(payload)
	require.NoError(t, err)

	confirmed, ok := ev.(TradeConfirmedEvent)
	require.True(t, ok, "expected TradeConfirmedEvent, got %T", ev)
	assert.Equal(t, int64(9), confirmed.Trade.TradeID)
	assert.Equal(t, int64(200), confirmed.Trade.AssetID.Index)
	assert.True(t, confirmed.Trade.IsMaker)

	ev, err = ParseTradeEvent([]byte(`{"Pending":{"trade_id":10,"order_id":"o2","price":1,"quantity":1}}`))
	require.NoError(t, err)
	_, ok = ev.(TradePendingEvent)
	assert.True(t, ok)
}

func TestParseTradeEvent_Invalid(t *testing.T) {
	_, err := ParseTradeEvent([]byte(`{"Vanished":{"trade_id":1}}`))
	assert.Error(t, err)

	_, err = ParseTradeEvent([]byte(`{}`))
	assert.Error(t, err)
}
