package usecase

import (
	"context"
	"encoding/base64"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/spooky-finn/go-exchange-client/domain"
	"github.com/spooky-finn/go-exchange-client/helpers"
	"github.com/spooky-finn/go-exchange-client/infrastructure/promclient"
	"github.com/spooky-finn/go-exchange-client/provider/tplus"
	"github.com/spooky-finn/go-exchange-client/signer"
)

var logger = log.WithField("component", "order-dispatcher")

// OrderDispatcher wraps the mutating operations with signing and nonce
// assignment. Order creation is not idempotent server-side: when a round trip
// times out without an acknowledgment the dispatcher surfaces an
// AmbiguousOutcomeError instead of resubmitting — the caller must consult the
// order event stream before deciding. A second explicit call always gets a
// fresh nonce.
type OrderDispatcher struct {
	api      *tplus.SyncAPI
	identity *signer.SigningIdentity

	marketMu sync.Mutex
	markets  map[int64]*domain.Market
}

func NewOrderDispatcher(api *tplus.SyncAPI, identity *signer.SigningIdentity) *OrderDispatcher {
	return &OrderDispatcher{
		api:      api,
		identity: identity,
		markets:  make(map[int64]*domain.Market),
	}
}

// CreateMarket registers a market for the asset. Idempotent at the resource
// level, so it needs no nonce: repeated calls converge to the same market.
func (d *OrderDispatcher) CreateMarket(ctx context.Context, asset domain.AssetIdentifier) error {
	return d.api.CreateMarket(ctx, asset)
}

func (d *OrderDispatcher) CreateLimitOrder(
	ctx context.Context,
	asset domain.AssetIdentifier,
	quantity int64,
	price int64,
	side domain.Side,
	timeInForce *domain.TimeInForce,
	trigger *domain.OrderTrigger,
) (*domain.OrderAck, error) {
	market, err := d.market(ctx, asset)
	if err != nil {
		return nil, err
	}

	tif := domain.TimeInForce{GTC: &domain.GTC{PostOnly: false}}
	if timeInForce != nil {
		tif = *timeInForce
	}

	order := domain.Order{
		Signer:               d.identity.PublicKeyVec(),
		OrderID:              newOrderID(),
		BaseAsset:            asset,
		BookPriceDecimals:    market.BookPriceDecimals,
		BookQuantityDecimals: market.BookQuantityDecimals,
		Details: domain.OrderDetails{
			Limit: &domain.LimitOrderDetails{
				LimitPrice:  price,
				Quantity:    quantity,
				TimeInForce: tif,
			},
		},
		Side:                side,
		Trigger:             trigger,
		CreationTimestampNs: time.Now().UnixNano(),
	}

	return d.submitCreate(ctx, "create limit order", &order)
}

func (d *OrderDispatcher) CreateMarketOrder(
	ctx context.Context,
	asset domain.AssetIdentifier,
	side domain.Side,
	quantity domain.MarketQuantity,
	fillOrKill bool,
) (*domain.OrderAck, error) {
	market, err := d.market(ctx, asset)
	if err != nil {
		return nil, err
	}

	order := domain.Order{
		Signer:               d.identity.PublicKeyVec(),
		OrderID:              newOrderID(),
		BaseAsset:            asset,
		BookPriceDecimals:    market.BookPriceDecimals,
		BookQuantityDecimals: market.BookQuantityDecimals,
		Details: domain.OrderDetails{
			Market: &domain.MarketOrderDetails{
				Quantity:   quantity,
				FillOrKill: fillOrKill,
			},
		},
		Side:                side,
		CreationTimestampNs: time.Now().UnixNano(),
	}

	return d.submitCreate(ctx, "create market order", &order)
}

func (d *OrderDispatcher) CancelOrder(ctx context.Context, orderID string, asset domain.AssetIdentifier) (*domain.OrderAck, error) {
	cancel := domain.CancelOrder{
		OrderID: orderID,
		AssetID: asset,
		Signer:  d.identity.PublicKeyVec(),
	}

	payload, err := cancel.SignablePart()
	if err != nil {
		return nil, err
	}

	nonce := d.identity.NextNonce()
	req := domain.CancelOrderRequest{
		Cancel:            cancel,
		Signature:         d.identity.Sign(payload),
		Nonce:             nonce,
		PostSignTimestamp: time.Now().UnixNano(),
	}

	logger.WithField("order_id", orderID).Debug("sending cancel order request")
	promclient.SignedRequestsTotal.Inc()

	raw, err := d.api.SubmitCancelOrder(ctx, &req)
	if err != nil {
		return nil, d.classify("cancel order", orderID, nonce, err)
	}
	return &domain.OrderAck{OrderID: orderID, Nonce: nonce, Raw: raw}, nil
}

// ReplaceOrder updates quantity and/or price of an open order. Nil fields are
// left unchanged.
func (d *OrderDispatcher) ReplaceOrder(
	ctx context.Context,
	orderID string,
	asset domain.AssetIdentifier,
	newQuantity *int64,
	newPrice *int64,
) (*domain.OrderAck, error) {
	market, err := d.market(ctx, asset)
	if err != nil {
		return nil, err
	}

	details := domain.ReplaceOrderDetails{
		OrderID:              orderID,
		TimestampNs:          time.Now().UnixNano(),
		NewPriceLimit:        newPrice,
		NewQuantity:          newQuantity,
		BookPriceDecimals:    &market.BookPriceDecimals,
		BookQuantityDecimals: &market.BookQuantityDecimals,
	}

	payload, err := details.SignablePart()
	if err != nil {
		return nil, err
	}

	nonce := d.identity.NextNonce()
	req := domain.ReplaceOrderRequest{
		Request:           details,
		Signer:            d.identity.PublicKeyHex(),
		AssetID:           asset,
		Signature:         d.identity.Sign(payload),
		Nonce:             nonce,
		PostSignTimestamp: time.Now().UnixNano(),
	}

	logger.WithField("order_id", orderID).Debug("sending replace order request")
	promclient.SignedRequestsTotal.Inc()

	raw, err := d.api.SubmitReplaceOrder(ctx, &req)
	if err != nil {
		return nil, d.classify("replace order", orderID, nonce, err)
	}
	return &domain.OrderAck{OrderID: orderID, Nonce: nonce, Raw: raw}, nil
}

func (d *OrderDispatcher) submitCreate(ctx context.Context, op string, order *domain.Order) (*domain.OrderAck, error) {
	payload, err := order.SignablePart()
	if err != nil {
		return nil, err
	}

	nonce := d.identity.NextNonce()
	req := domain.CreateOrderRequest{
		Order:             *order,
		Signature:         d.identity.Sign(payload),
		Nonce:             nonce,
		PostSignTimestamp: time.Now().UnixNano(),
	}

	logger.WithField("order_id", order.OrderID).Debugf("sending %s request: %s", op, helpers.ToJsonString(&req))
	promclient.SignedRequestsTotal.Inc()

	raw, err := d.api.SubmitCreateOrder(ctx, &req)
	if err != nil {
		return nil, d.classify(op, order.OrderID, nonce, err)
	}
	return &domain.OrderAck{OrderID: order.OrderID, Nonce: nonce, Raw: raw}, nil
}

// classify tags a failed dispatch with its retry semantics. A timeout means
// the server may or may not have consumed the request: the outcome is
// ambiguous and the nonce is treated as spent. A connection-level failure
// before any byte reached the server leaves the nonce locally burned but
// safely unconsumed remotely. A rejection means the server saw the request.
func (d *OrderDispatcher) classify(op, orderID string, nonce uint64, err error) error {
	if isTimeout(err) {
		return &domain.RequestError{
			Op:            op,
			Nonce:         nonce,
			NonceConsumed: true,
			Err:           &domain.AmbiguousOutcomeError{Op: op, OrderID: orderID, Nonce: nonce},
		}
	}

	var httpErr *domain.HTTPError
	if errors.As(err, &httpErr) {
		return &domain.RequestError{Op: op, Nonce: nonce, NonceConsumed: true, Err: err}
	}

	return &domain.RequestError{Op: op, Nonce: nonce, NonceConsumed: false, Err: err}
}

// market caches per-book decimals; they are immutable once the market exists.
func (d *OrderDispatcher) market(ctx context.Context, asset domain.AssetIdentifier) (*domain.Market, error) {
	d.marketMu.Lock()
	if market, ok := d.markets[asset.Index]; ok {
		d.marketMu.Unlock()
		return market, nil
	}
	d.marketMu.Unlock()

	market, err := d.api.GetMarket(ctx, asset)
	if err != nil {
		return nil, err
	}

	d.marketMu.Lock()
	d.markets[asset.Index] = market
	d.marketMu.Unlock()
	return market, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// newOrderID returns the client-side correlation token carried by a create
// request until the server acknowledges it.
func newOrderID() string {
	id := uuid.New()
	return base64.StdEncoding.EncodeToString(id[:])
}
