package domain

import (
	"encoding/json"
	"fmt"
)

// Trade is an immutable execution record produced by the server.
type Trade struct {
	AssetID     AssetIdentifier `json:"asset_id"`
	TradeID     int64           `json:"trade_id"`
	OrderID     string          `json:"order_id"`
	Price       int64           `json:"price"`
	Quantity    int64           `json:"quantity"`
	TimestampNs int64           `json:"timestamp_ns"`
	IsMaker     bool            `json:"is_maker"`
	IsBuyer     bool            `json:"is_buyer"`
	Confirmed   bool            `json:"confirmed"`
}

// TradeEvent is the closed variant delivered on /trades/events. Like order
// events, the wire form is a single-key object keyed by the lifecycle phase.
type TradeEvent interface {
	isTradeEvent()
}

type TradePendingEvent struct {
	Trade Trade
}

type TradeConfirmedEvent struct {
	Trade Trade
}

type TradeRollbackedEvent struct {
	Trade Trade
}

func (TradePendingEvent) isTradeEvent()    {}
func (TradeConfirmedEvent) isTradeEvent()  {}
func (TradeRollbackedEvent) isTradeEvent() {}

// ParseTradeEvent decodes one message from the trade event stream.
func ParseTradeEvent(data []byte) (TradeEvent, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decoding trade event: %w", err)
	}
	if len(envelope) != 1 {
		return nil, fmt.Errorf("trade event must have exactly one event key, got %d", len(envelope))
	}

	for kind, payload := range envelope {
		var trade Trade
		if err := json.Unmarshal(payload, &trade); err != nil {
			return nil, fmt.Errorf("decoding %s trade: %w", kind, err)
		}

		switch kind {
		case "Pending":
			return TradePendingEvent{Trade: trade}, nil
		case "Confirmed":
			return TradeConfirmedEvent{Trade: trade}, nil
		case "Rollbacked":
			return TradeRollbackedEvent{Trade: trade}, nil
		default:
			return nil, fmt.Errorf("unknown trade event type %q", kind)
		}
	}

	return nil, fmt.Errorf("empty trade event")
}
