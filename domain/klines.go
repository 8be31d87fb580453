package domain

// KlineUpdate is one candlestick update, delivered both by the kline REST
// endpoint (as a list) and the kline diff stream (one per message).
type KlineUpdate struct {
	AssetID   int64 `json:"asset_id"`
	Timestamp int64 `json:"timestamp"`
	Open      int64 `json:"open"`
	High      int64 `json:"high"`
	Low       int64 `json:"low"`
	Close     int64 `json:"close"`
	Volume    int64 `json:"volume"`
}
