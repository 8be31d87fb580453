package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

type Side string

const (
	SideBuy  Side = "Buy"
	SideSell Side = "Sell"
)

// NormalizeSide accepts the aliases the exchange tolerates ("bid"/"ask",
// any casing) and maps them onto the canonical wire values.
func NormalizeSide(side string) Side {
	switch side {
	case "Sell", "sell", "SELL", "ask", "Ask", "ASK":
		return SideSell
	default:
		return SideBuy
	}
}

// Time-in-force policies. Exactly one variant is set; the wire form is a
// single-key object, e.g. {"GTC": {"post_only": false}}.
type GTC struct {
	PostOnly bool `json:"post_only"`
}

type GTD struct {
	PostOnly        bool  `json:"post_only"`
	GoodUntilTimeNs int64 `json:"good_until_timestamp_ns"`
}

type IOC struct{}

type TimeInForce struct {
	GTC *GTC `json:"GTC,omitempty"`
	GTD *GTD `json:"GTD,omitempty"`
	IOC *IOC `json:"IOC,omitempty"`
}

// Order triggers, also single-key objects on the wire.
type OrderTrigger struct {
	PriceAbove *TriggerPrice `json:"PriceAbove,omitempty"`
	PriceBelow *TriggerPrice `json:"PriceBelow,omitempty"`
}

type TriggerPrice struct {
	Price int64 `json:"price"`
}

type LimitOrderDetails struct {
	LimitPrice  int64       `json:"limit_price"`
	Quantity    int64       `json:"quantity"`
	TimeInForce TimeInForce `json:"time_in_force"`
}

// MarketQuantity expresses a market order size either in the base or the quote
// asset, never both.
type MarketQuantity struct {
	BaseAsset  *int64 `json:"BaseAsset,omitempty"`
	QuoteAsset *int64 `json:"QuoteAsset,omitempty"`
}

type MarketOrderDetails struct {
	Quantity   MarketQuantity `json:"quantity"`
	FillOrKill bool           `json:"fill_or_kill"`
}

// OrderDetails is the closed variant over the order kinds the book accepts.
type OrderDetails struct {
	Limit  *LimitOrderDetails  `json:"Limit,omitempty"`
	Market *MarketOrderDetails `json:"Market,omitempty"`
}

// Order is the signed unit of a create request. Signer is the raw public key
// bytes serialized as a JSON array of integers, matching the server's
// canonical form.
type Order struct {
	Signer               []int           `json:"signer"`
	OrderID              string          `json:"order_id"`
	BaseAsset            AssetIdentifier `json:"base_asset"`
	BookPriceDecimals    int             `json:"book_price_decimals"`
	BookQuantityDecimals int             `json:"book_quantity_decimals"`
	Details              OrderDetails    `json:"details"`
	Side                 Side            `json:"side"`
	Trigger              *OrderTrigger   `json:"trigger"`
	CreationTimestampNs  int64           `json:"creation_timestamp_ns"`
}

// SignablePart is the canonical byte representation covered by the order
// signature. The canceled flag is excluded, which is why it does not live on
// Order at all.
func (o *Order) SignablePart() ([]byte, error) {
	return json.Marshal(o)
}

// CreateOrderRequest is the POST /orders/create payload.
type CreateOrderRequest struct {
	Order             Order  `json:"order"`
	Signature         []int  `json:"signature"`
	Nonce             uint64 `json:"nonce"`
	PostSignTimestamp int64  `json:"post_sign_timestamp"`
}

// CancelOrder is the signed part of a cancel request.
type CancelOrder struct {
	OrderID string          `json:"order_id"`
	AssetID AssetIdentifier `json:"asset_id"`
	Signer  []int           `json:"signer"`
}

func (c *CancelOrder) SignablePart() ([]byte, error) {
	return json.Marshal(c)
}

type CancelOrderRequest struct {
	Cancel            CancelOrder `json:"cancel"`
	Signature         []int       `json:"signature"`
	Nonce             uint64      `json:"nonce"`
	PostSignTimestamp int64       `json:"post_sign_timestamp"`
}

// ReplaceOrderDetails is the signed part of a replace request. Nil fields leave
// the corresponding order attribute unchanged.
type ReplaceOrderDetails struct {
	OrderID              string        `json:"order_id"`
	TimestampNs          int64         `json:"timestamp_ns"`
	NewPriceLimit        *int64        `json:"new_price_limit"`
	NewQuantity          *int64        `json:"new_quantity"`
	NewTrigger           *OrderTrigger `json:"new_trigger"`
	BookQuantityDecimals *int          `json:"book_quantity_decimals"`
	BookPriceDecimals    *int          `json:"book_price_decimals"`
}

func (r *ReplaceOrderDetails) SignablePart() ([]byte, error) {
	return json.Marshal(r)
}

type ReplaceOrderRequest struct {
	Request           ReplaceOrderDetails `json:"request"`
	Signer            string              `json:"signer"`
	AssetID           AssetIdentifier     `json:"asset_id"`
	Signature         []int               `json:"signature"`
	Nonce             uint64              `json:"nonce"`
	PostSignTimestamp int64               `json:"post_sign_timestamp"`
}

// OrderAck is what a mutating call returns. AcceptedForProcessing only: the
// terminal state of an order is learned from the order event stream, never
// inferred from this response.
type OrderAck struct {
	OrderID string `json:"order_id"`
	Nonce   uint64 `json:"-"`
	Raw     json.RawMessage
}

// OrderResponse is the REST representation of an open or historical order.
type OrderResponse struct {
	OrderID                 string          `json:"order_id"`
	BaseAsset               AssetIdentifier `json:"base_asset"`
	Side                    Side            `json:"side"`
	LimitPrice              *int64          `json:"limit_price"`
	Quantity                int64           `json:"quantity"`
	ConfirmedFilledQuantity int64           `json:"confirmed_filled_quantity"`
	PendingFilledQuantity   int64           `json:"pending_filled_quantity"`
	GoodUntilTimestampNs    *int64          `json:"good_until_timestamp_ns"`
	TimestampNs             int64           `json:"timestamp_ns"`
	Canceled                bool            `json:"canceled"`
}

// Order lifecycle events. The stream delivers single-key JSON objects, e.g.
// {"Created": {...}}; ParseOrderEvent maps them onto this closed set so
// consumers can switch exhaustively instead of sniffing payload shapes.
type OrderEvent interface {
	isOrderEvent()
}

type OrderCreatedEvent struct {
	UserOrder       Order `json:"user_order"`
	Signature       []int `json:"signature"`
	BookTimestampNs int64 `json:"book_timestamp_ns"`
}

type OrderUpdatedEvent struct {
	OrderID           string `json:"order_id"`
	Status            string `json:"status"`
	FilledQuantity    int64  `json:"filled_quantity"`
	RemainingQuantity int64  `json:"remaining_quantity"`
	UpdateTimestampNs int64  `json:"update_timestamp_ns"`
}

type OrderCanceledEvent struct {
	OrderID     string          `json:"order_id"`
	AssetID     AssetIdentifier `json:"asset_id"`
	UserID      string          `json:"user_id"`
	TimestampNs int64           `json:"timestamp_ns"`
	Reason      string          `json:"reason"`
}

type OrderReplacedEvent struct {
	OrderID     string          `json:"order_id"`
	AssetID     AssetIdentifier `json:"asset_id"`
	UserID      string          `json:"user_id"`
	NewQuantity int64           `json:"new_quantity"`
	NewPrice    int64           `json:"new_price"`
}

type OrderCreateFailedEvent struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}

type OrderReplaceFailedEvent struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}

type OrderCancelFailedEvent struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}

func (OrderCreatedEvent) isOrderEvent()       {}
func (OrderUpdatedEvent) isOrderEvent()       {}
func (OrderCanceledEvent) isOrderEvent()      {}
func (OrderReplacedEvent) isOrderEvent()      {}
func (OrderCreateFailedEvent) isOrderEvent()  {}
func (OrderReplaceFailedEvent) isOrderEvent() {}
func (OrderCancelFailedEvent) isOrderEvent()  {}

// ParseOrderEvent decodes one message from the order event stream.
func ParseOrderEvent(data []byte) (OrderEvent, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decoding order event: %w", err)
	}
	if len(envelope) != 1 {
		return nil, fmt.Errorf("order event must have exactly one event key, got %d", len(envelope))
	}

	for kind, payload := range envelope {
		// the server is inconsistent about event key casing, so match
		// case-insensitively
		switch strings.ToUpper(kind) {
		case "CREATED":
			var ev OrderCreatedEvent
			return ev, json.Unmarshal(payload, &ev)
		case "UPDATED":
			var ev OrderUpdatedEvent
			return ev, json.Unmarshal(payload, &ev)
		case "CANCELED":
			var ev OrderCanceledEvent
			return ev, json.Unmarshal(payload, &ev)
		case "REPLACED":
			var ev OrderReplacedEvent
			return ev, json.Unmarshal(payload, &ev)
		case "CREATEFAILED":
			var ev OrderCreateFailedEvent
			return ev, json.Unmarshal(payload, &ev)
		case "REPLACEFAILED":
			var ev OrderReplaceFailedEvent
			return ev, json.Unmarshal(payload, &ev)
		case "CANCELFAILED":
			var ev OrderCancelFailedEvent
			return ev, json.Unmarshal(payload, &ev)
		default:
			return nil, fmt.Errorf("unknown order event type %q", kind)
		}
	}

	return nil, fmt.Errorf("empty order event")
}
