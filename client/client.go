// Package client is the composition root: read accessors go straight to the
// sync API, depth streaming layers an orderbook maintainer over the stream
// multiplexer, mutating calls go through the signed order dispatcher.
package client

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/spooky-finn/go-exchange-client/config"
	"github.com/spooky-finn/go-exchange-client/domain"
	"github.com/spooky-finn/go-exchange-client/helpers"
	"github.com/spooky-finn/go-exchange-client/provider/tplus"
	"github.com/spooky-finn/go-exchange-client/signer"
	"github.com/spooky-finn/go-exchange-client/usecase"
)

type Client struct {
	conf     *config.Config
	identity *signer.SigningIdentity

	syncAPI      *tplus.SyncAPI
	streamClient *tplus.StreamClient
	streamAPI    *tplus.StreamAPI
	dispatcher   *usecase.OrderDispatcher

	mu            sync.Mutex
	maintainers   []*domain.OrderbookMaintainer
	subscriptions []func()
	closed        bool
}

func New(identity *signer.SigningIdentity, conf *config.Config) (*Client, error) {
	syncAPI := tplus.NewSyncAPI(conf)

	streamClient, err := tplus.NewStreamClient(conf)
	if err != nil {
		return nil, err
	}

	return &Client{
		conf:         conf,
		identity:     identity,
		syncAPI:      syncAPI,
		streamClient: streamClient,
		streamAPI:    tplus.NewStreamAPI(streamClient),
		dispatcher:   usecase.NewOrderDispatcher(syncAPI, identity),
	}, nil
}

// UserID is the hex public key identifying this client's signing identity.
func (c *Client) UserID() string {
	return c.identity.PublicKeyHex()
}

// --- read accessors ---

func (c *Client) GetOrderBookSnapshot(asset domain.AssetIdentifier) (*domain.OrderBookSnapshot, error) {
	return c.syncAPI.OrderBookSnapshot(asset)
}

func (c *Client) GetKlines(ctx context.Context, asset domain.AssetIdentifier) ([]domain.KlineUpdate, error) {
	return c.syncAPI.GetKlines(ctx, asset)
}

func (c *Client) GetMarket(ctx context.Context, asset domain.AssetIdentifier) (*domain.Market, error) {
	return c.syncAPI.GetMarket(ctx, asset)
}

func (c *Client) GetUserOrders(ctx context.Context) ([]domain.OrderResponse, error) {
	return c.syncAPI.GetUserOrders(ctx, c.UserID())
}

func (c *Client) GetUserOrdersForBook(ctx context.Context, asset domain.AssetIdentifier) ([]domain.OrderResponse, error) {
	return c.syncAPI.GetUserOrdersForBook(ctx, c.UserID(), asset)
}

func (c *Client) GetUserTrades(ctx context.Context) ([]domain.Trade, error) {
	return c.syncAPI.GetUserTrades(ctx, c.UserID())
}

func (c *Client) GetUserTradesForAsset(ctx context.Context, asset domain.AssetIdentifier) ([]domain.Trade, error) {
	return c.syncAPI.GetUserTradesForAsset(ctx, c.UserID(), asset)
}

func (c *Client) GetUserInventory(ctx context.Context) (*domain.UserInventory, error) {
	return c.syncAPI.GetUserInventory(ctx, c.UserID())
}

// --- mutating accessors ---

func (c *Client) CreateMarket(ctx context.Context, asset domain.AssetIdentifier) error {
	return c.dispatcher.CreateMarket(ctx, asset)
}

func (c *Client) CreateLimitOrder(
	ctx context.Context,
	asset domain.AssetIdentifier,
	quantity, price int64,
	side domain.Side,
	timeInForce *domain.TimeInForce,
) (*domain.OrderAck, error) {
	return c.dispatcher.CreateLimitOrder(ctx, asset, quantity, price, side, timeInForce, nil)
}

// CreateLimitOrderDecimal converts human decimal quantity and price into the
// market's scaled book units before submitting.
func (c *Client) CreateLimitOrderDecimal(
	ctx context.Context,
	asset domain.AssetIdentifier,
	quantity, price decimal.Decimal,
	side domain.Side,
	timeInForce *domain.TimeInForce,
) (*domain.OrderAck, error) {
	market, err := c.syncAPI.GetMarket(ctx, asset)
	if err != nil {
		return nil, err
	}

	return c.dispatcher.CreateLimitOrder(
		ctx,
		asset,
		helpers.ToBookUnits(quantity, market.BookQuantityDecimals),
		helpers.ToBookUnits(price, market.BookPriceDecimals),
		side,
		timeInForce,
		nil,
	)
}

func (c *Client) CreateMarketOrder(
	ctx context.Context,
	asset domain.AssetIdentifier,
	side domain.Side,
	quantity domain.MarketQuantity,
	fillOrKill bool,
) (*domain.OrderAck, error) {
	return c.dispatcher.CreateMarketOrder(ctx, asset, side, quantity, fillOrKill)
}

func (c *Client) CancelOrder(ctx context.Context, orderID string, asset domain.AssetIdentifier) (*domain.OrderAck, error) {
	return c.dispatcher.CancelOrder(ctx, orderID, asset)
}

func (c *Client) ReplaceOrder(
	ctx context.Context,
	orderID string,
	asset domain.AssetIdentifier,
	newQuantity, newPrice *int64,
) (*domain.OrderAck, error) {
	return c.dispatcher.ReplaceOrder(ctx, orderID, asset, newQuantity, newPrice)
}

// --- streaming accessors ---

// StreamDepth returns reconciled, gap-free book states for one asset. A value
// on Resets means a resynchronization started and previously delivered states
// are stale.
func (c *Client) StreamDepth(asset domain.AssetIdentifier) (*domain.Subscription[*domain.OrderBookSnapshot], error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, domain.ErrStreamClosed
	}

	maintainer := domain.NewOrderbookMaintainer(
		asset,
		c.syncAPI,
		c.streamAPI,
		c.conf.MaxResyncAttempts,
		c.conf.StreamBufferSize,
	)

	sub, err := maintainer.Start()
	if err != nil {
		return nil, err
	}

	c.maintainers = append(c.maintainers, maintainer)
	return sub, nil
}

func (c *Client) StreamOrders() (*domain.Subscription[domain.OrderEvent], error) {
	sub, err := c.streamAPI.OrderEventStream()
	return track(c, sub, err)
}

func (c *Client) StreamFinalizedTrades() (*domain.Subscription[*domain.Trade], error) {
	sub, err := c.streamAPI.FinalizedTradeStream()
	return track(c, sub, err)
}

func (c *Client) StreamAllTrades() (*domain.Subscription[domain.TradeEvent], error) {
	sub, err := c.streamAPI.TradeEventStream()
	return track(c, sub, err)
}

func (c *Client) StreamUserTrades() (*domain.Subscription[*domain.Trade], error) {
	sub, err := c.streamAPI.UserTradeEventStream(c.UserID())
	return track(c, sub, err)
}

func (c *Client) StreamUserFinalizedTrades() (*domain.Subscription[*domain.Trade], error) {
	sub, err := c.streamAPI.UserFinalizedTradeStream(c.UserID())
	return track(c, sub, err)
}

func (c *Client) StreamKlines(asset domain.AssetIdentifier) (*domain.Subscription[*domain.KlineUpdate], error) {
	sub, err := c.streamAPI.KlineStream(asset)
	return track(c, sub, err)
}

// track remembers a subscription so Close can unsubscribe it; a subscription
// opened concurrently with Close is unsubscribed immediately.
func track[T any](c *Client, sub *domain.Subscription[T], err error) (*domain.Subscription[T], error) {
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		sub.Unsubscribe()
		return nil, domain.ErrStreamClosed
	}
	c.subscriptions = append(c.subscriptions, sub.Unsubscribe)
	return sub, nil
}

// Close stops every maintainer and tears down all open subscriptions. In-flight
// request/response calls run to completion on their own contexts.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true

	for _, m := range c.maintainers {
		m.Stop()
	}
	c.maintainers = nil

	for _, unsubscribe := range c.subscriptions {
		unsubscribe()
	}
	c.subscriptions = nil

	c.streamClient.Close()
}
