package usecase

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spooky-finn/go-exchange-client/config"
	"github.com/spooky-finn/go-exchange-client/domain"
	"github.com/spooky-finn/go-exchange-client/helpers"
	"github.com/spooky-finn/go-exchange-client/provider/tplus"
	"github.com/spooky-finn/go-exchange-client/signer"
)

type capturedRequest struct {
	method string
	path   string
	body   []byte
}

type fakeServer struct {
	*httptest.Server

	mu       sync.Mutex
	captured []capturedRequest

	createDelay  time.Duration
	rejectCancel bool
}

func newFakeServer(t *testing.T) *fakeServer {
	f := &fakeServer{}

	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		f.mu.Lock()
		f.captured = append(f.captured, capturedRequest{r.Method, r.URL.Path, body})
		delay := f.createDelay
		reject := f.rejectCancel
		f.mu.Unlock()

		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/market/200":
			json.NewEncoder(w).Encode(domain.Market{
				AssetID:              domain.NewAssetIdentifier(200),
				BookPriceDecimals:    2,
				BookQuantityDecimals: 3,
			})
		case r.Method == http.MethodPost && r.URL.Path == "/orders/create":
			if delay > 0 {
				time.Sleep(delay)
			}
			w.Write([]byte(`{"status":"accepted"}`))
		case r.Method == http.MethodDelete && r.URL.Path == "/orders/cancel":
			if reject {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"error":"unknown order id"}`))
				return
			}
			w.Write([]byte(`{"status":"accepted"}`))
		case r.Method == http.MethodPatch && r.URL.Path == "/orders/replace":
			w.Write([]byte(`{"status":"accepted"}`))
		case r.Method == http.MethodPost && r.URL.Path == "/market/create":
			w.Write([]byte(`{}`))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	return f
}

func (f *fakeServer) lastCaptured(path string) (capturedRequest, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.captured) - 1; i >= 0; i-- {
		if f.captured[i].path == path {
			return f.captured[i], true
		}
	}
	return capturedRequest{}, false
}

func newDispatcher(t *testing.T, server *fakeServer, timeout time.Duration) (*OrderDispatcher, *signer.SigningIdentity) {
	conf := config.Default()
	conf.BaseURL = server.URL
	conf.RequestTimeout = timeout

	identity, err := signer.GenerateSigningIdentity()
	require.NoError(t, err)

	return NewOrderDispatcher(tplus.NewSyncAPI(conf), identity), identity
}

func TestCreateLimitOrder_SignsAndSubmits(t *testing.T) {
	server := newFakeServer(t)
	defer server.Close()

	d, identity := newDispatcher(t, server, 5*time.Second)

	ack, err := d.CreateLimitOrder(context.Background(), domain.NewAssetIdentifier(200), 100, 50000, domain.SideBuy, nil, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, ack.OrderID)
	assert.Equal(t, uint64(0), ack.Nonce, "first signed request uses nonce 0")

	captured, ok := server.lastCaptured("/orders/create")
	require.True(t, ok)

	var req domain.CreateOrderRequest
	require.NoError(t, json.Unmarshal(captured.body, &req))

	assert.Equal(t, int64(200), req.Order.BaseAsset.Index)
	assert.Equal(t, domain.SideBuy, req.Order.Side)
	assert.Equal(t, 2, req.Order.BookPriceDecimals, "decimals come from the market metadata")
	assert.Equal(t, 3, req.Order.BookQuantityDecimals)
	require.NotNil(t, req.Order.Details.Limit)
	assert.Equal(t, int64(50000), req.Order.Details.Limit.LimitPrice)
	require.NotNil(t, req.Order.Details.Limit.TimeInForce.GTC, "default time in force is GTC")

	// the signature must verify against the compacted signable part
	payload, err := req.Order.SignablePart()
	require.NoError(t, err)

	pub := make([]byte, len(req.Order.Signer))
	for i, v := range req.Order.Signer {
		pub[i] = byte(v)
	}
	sig := make([]byte, len(req.Signature))
	for i, v := range req.Signature {
		sig[i] = byte(v)
	}
	assert.True(t, ed25519.Verify(ed25519.PublicKey(pub), helpers.CompactSignable(payload), sig))
	assert.Equal(t, identity.PublicKeyVec(), req.Order.Signer)
}

func TestCreateMarketOrder_QuantityVariants(t *testing.T) {
	server := newFakeServer(t)
	defer server.Close()

	d, _ := newDispatcher(t, server, 5*time.Second)

	base := int64(25)
	_, err := d.CreateMarketOrder(context.Background(), domain.NewAssetIdentifier(200), domain.SideSell,
		domain.MarketQuantity{BaseAsset: &base}, true)
	require.NoError(t, err)

	captured, ok := server.lastCaptured("/orders/create")
	require.True(t, ok)

	var req domain.CreateOrderRequest
	require.NoError(t, json.Unmarshal(captured.body, &req))
	require.NotNil(t, req.Order.Details.Market)
	require.NotNil(t, req.Order.Details.Market.Quantity.BaseAsset)
	assert.Equal(t, int64(25), *req.Order.Details.Market.Quantity.BaseAsset)
	assert.True(t, req.Order.Details.Market.FillOrKill)
}

func TestNonces_AdvancePerRequest(t *testing.T) {
	server := newFakeServer(t)
	defer server.Close()

	d, identity := newDispatcher(t, server, 5*time.Second)
	ctx := context.Background()
	asset := domain.NewAssetIdentifier(200)

	ack1, err := d.CreateLimitOrder(ctx, asset, 1, 1, domain.SideBuy, nil, nil)
	require.NoError(t, err)
	ack2, err := d.CancelOrder(ctx, ack1.OrderID, asset)
	require.NoError(t, err)

	newQty := int64(2)
	ack3, err := d.ReplaceOrder(ctx, ack1.OrderID, asset, &newQty, nil)
	require.NoError(t, err)

	assert.Equal(t, uint64(0), ack1.Nonce)
	assert.Equal(t, uint64(1), ack2.Nonce)
	assert.Equal(t, uint64(2), ack3.Nonce)
	assert.Equal(t, uint64(3), identity.Nonce())
}

func TestCreateLimitOrder_TimeoutIsAmbiguous(t *testing.T) {
	server := newFakeServer(t)
	defer server.Close()

	server.mu.Lock()
	server.createDelay = 300 * time.Millisecond
	server.mu.Unlock()

	d, identity := newDispatcher(t, server, 50*time.Millisecond)
	ctx := context.Background()
	asset := domain.NewAssetIdentifier(200)

	_, err := d.CreateLimitOrder(ctx, asset, 1, 1, domain.SideBuy, nil, nil)
	require.Error(t, err)

	var reqErr *domain.RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.True(t, reqErr.NonceConsumed, "an ambiguous outcome must treat the nonce as spent")

	var ambiguous *domain.AmbiguousOutcomeError
	assert.ErrorAs(t, err, &ambiguous, "a timeout without acknowledgment is ambiguous, not retryable")

	// no silent resubmission happened: exactly one create reached the wire
	server.mu.Lock()
	creates := 0
	for _, c := range server.captured {
		if c.path == "/orders/create" {
			creates++
		}
	}
	server.createDelay = 0
	server.mu.Unlock()
	assert.Equal(t, 1, creates)

	// a second explicit call allocates a fresh nonce
	ack, err := d.CreateLimitOrder(ctx, asset, 1, 1, domain.SideBuy, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), ack.Nonce)
	assert.Equal(t, uint64(2), identity.Nonce())
}

func TestCancelOrder_RemoteRejection(t *testing.T) {
	server := newFakeServer(t)
	defer server.Close()

	server.mu.Lock()
	server.rejectCancel = true
	server.mu.Unlock()

	d, _ := newDispatcher(t, server, 5*time.Second)

	_, err := d.CancelOrder(context.Background(), "missing", domain.NewAssetIdentifier(200))
	require.Error(t, err)

	var reqErr *domain.RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.True(t, reqErr.NonceConsumed, "the server saw the request")

	var httpErr *domain.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadRequest, httpErr.Status)
	assert.Contains(t, httpErr.Body, "unknown order id")
}

func TestCreateMarket_Idempotent(t *testing.T) {
	server := newFakeServer(t)
	defer server.Close()

	d, identity := newDispatcher(t, server, 5*time.Second)
	ctx := context.Background()
	asset := domain.NewAssetIdentifier(200)

	require.NoError(t, d.CreateMarket(ctx, asset))
	require.NoError(t, d.CreateMarket(ctx, asset))
	assert.Equal(t, uint64(0), identity.Nonce(), "market creation consumes no nonce")

	require.False(t, errors.Is(d.CreateMarket(ctx, asset), context.DeadlineExceeded))
}
