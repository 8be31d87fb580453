package tplus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/spooky-finn/go-exchange-client/config"
	"github.com/spooky-finn/go-exchange-client/domain"
)

var logger = log.WithField("component", "tplus")

// SyncAPI is the request/response half of the transport adapter: plain JSON
// over HTTP against the order management service. Every call carries the
// configured round-trip timeout through its context.
type SyncAPI struct {
	baseURL string
	conf    *config.Config
	client  *http.Client
}

func NewSyncAPI(conf *config.Config) *SyncAPI {
	return &SyncAPI{
		baseURL: strings.TrimRight(conf.BaseURL, "/"),
		conf:    conf,
		client:  &http.Client{Timeout: conf.RequestTimeout},
	}
}

// OrderBookSnapshot implements domain.SnapshotAPI for the maintainer, which
// owns no context of its own.
func (api *SyncAPI) OrderBookSnapshot(asset domain.AssetIdentifier) (*domain.OrderBookSnapshot, error) {
	ctx, cancel := context.WithTimeout(context.Background(), api.conf.RequestTimeout)
	defer cancel()

	var snapshot domain.OrderBookSnapshot
	if err := api.request(ctx, http.MethodGet, "/marketdepth/"+asset.String(), nil, &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (api *SyncAPI) GetKlines(ctx context.Context, asset domain.AssetIdentifier) ([]domain.KlineUpdate, error) {
	var klines []domain.KlineUpdate
	err := api.request(ctx, http.MethodGet, "/klines/"+asset.String(), nil, &klines)
	return klines, err
}

func (api *SyncAPI) GetMarket(ctx context.Context, asset domain.AssetIdentifier) (*domain.Market, error) {
	var market domain.Market
	if err := api.request(ctx, http.MethodGet, "/market/"+asset.String(), nil, &market); err != nil {
		return nil, err
	}
	return &market, nil
}

// CreateMarket registers the market for an asset. The call is idempotent at
// the resource level: repeated calls for the same asset converge to the same
// market.
func (api *SyncAPI) CreateMarket(ctx context.Context, asset domain.AssetIdentifier) error {
	body := map[string]interface{}{"asset_id": asset}
	return api.request(ctx, http.MethodPost, "/market/create", body, nil)
}

func (api *SyncAPI) GetUserOrders(ctx context.Context, userID string) ([]domain.OrderResponse, error) {
	var orders []domain.OrderResponse
	err := api.request(ctx, http.MethodGet, "/orders/user/"+userID, nil, &orders)
	return orders, err
}

func (api *SyncAPI) GetUserOrdersForBook(ctx context.Context, userID string, asset domain.AssetIdentifier) ([]domain.OrderResponse, error) {
	var orders []domain.OrderResponse
	err := api.request(ctx, http.MethodGet, "/orders/user/"+userID+"/"+asset.String(), nil, &orders)
	return orders, err
}

func (api *SyncAPI) GetUserTrades(ctx context.Context, userID string) ([]domain.Trade, error) {
	var trades []domain.Trade
	err := api.request(ctx, http.MethodGet, "/trades/user/"+userID, nil, &trades)
	return trades, err
}

func (api *SyncAPI) GetUserTradesForAsset(ctx context.Context, userID string, asset domain.AssetIdentifier) ([]domain.Trade, error) {
	var trades []domain.Trade
	err := api.request(ctx, http.MethodGet, "/trades/user/"+userID+"/"+asset.String(), nil, &trades)
	return trades, err
}

func (api *SyncAPI) GetUserInventory(ctx context.Context, userID string) (*domain.UserInventory, error) {
	var inventory domain.UserInventory
	if err := api.request(ctx, http.MethodGet, "/inventory/user/"+userID, nil, &inventory); err != nil {
		return nil, err
	}
	return &inventory, nil
}

func (api *SyncAPI) SubmitCreateOrder(ctx context.Context, req *domain.CreateOrderRequest) (json.RawMessage, error) {
	var raw json.RawMessage
	err := api.request(ctx, http.MethodPost, "/orders/create", req, &raw)
	return raw, err
}

func (api *SyncAPI) SubmitCancelOrder(ctx context.Context, req *domain.CancelOrderRequest) (json.RawMessage, error) {
	var raw json.RawMessage
	err := api.request(ctx, http.MethodDelete, "/orders/cancel", req, &raw)
	return raw, err
}

func (api *SyncAPI) SubmitReplaceOrder(ctx context.Context, req *domain.ReplaceOrderRequest) (json.RawMessage, error) {
	var raw json.RawMessage
	err := api.request(ctx, http.MethodPatch, "/orders/replace", req, &raw)
	return raw, err
}

func (api *SyncAPI) request(ctx context.Context, method, endpoint string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding %s %s body: %w", method, endpoint, err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, api.baseURL+endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := api.client.Do(req)
	if err != nil {
		logger.WithError(err).Warnf("%s %s failed", method, endpoint)
		return err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		// remote rejection, surfaced verbatim
		return &domain.HTTPError{Status: resp.StatusCode, Body: string(payload)}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent || len(payload) == 0 {
		return nil
	}
	if string(bytes.TrimSpace(payload)) == "null" {
		logger.Warnf("%s %s returned JSON null", method, endpoint)
		return nil
	}

	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("invalid JSON from %s %s: %w", method, endpoint, err)
	}
	return nil
}
