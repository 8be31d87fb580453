package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spooky-finn/go-exchange-client/config"
	"github.com/spooky-finn/go-exchange-client/domain"
	"github.com/spooky-finn/go-exchange-client/signer"
)

// exchangeStub serves the REST snapshot and the websocket diff stream from one
// listener, the way the real service does.
type exchangeStub struct {
	*httptest.Server

	upgrader websocket.Upgrader

	mu       sync.Mutex
	sequence int64
	diffs    chan *domain.OrderBookDiff
}

func newExchangeStub(t *testing.T) *exchangeStub {
	s := &exchangeStub{
		sequence: 100,
		diffs:    make(chan *domain.OrderBookDiff, 16),
	}

	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/marketdepth/200":
			s.mu.Lock()
			seq := s.sequence
			s.mu.Unlock()
			json.NewEncoder(w).Encode(domain.OrderBookSnapshot{
				Bids:           [][]int64{{10, 5}},
				Asks:           [][]int64{{11, 4}},
				SequenceNumber: seq,
			})
		case "/marketdepth/diff/200":
			conn, err := s.upgrader.Upgrade(w, r, nil)
			if err != nil {
				return
			}
			defer conn.Close()
			for diff := range s.diffs {
				if err := conn.WriteJSON(diff); err != nil {
					return
				}
			}
		default:
			t.Errorf("unexpected request %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	return s
}

func newTestClient(t *testing.T, server *exchangeStub) *Client {
	conf := config.Default()
	conf.BaseURL = server.URL
	conf.ReconnectMinDelay = 10 * time.Millisecond

	identity, err := signer.GenerateSigningIdentity()
	require.NoError(t, err)

	c, err := New(identity, conf)
	require.NoError(t, err)
	return c
}

func TestClient_StreamDepth(t *testing.T) {
	server := newExchangeStub(t)
	defer server.Close()
	defer close(server.diffs)

	c := newTestClient(t, server)
	defer c.Close()

	sub, err := c.StreamDepth(domain.NewAssetIdentifier(200))
	require.NoError(t, err)

	state := recvBookState(t, sub)
	assert.Equal(t, int64(100), state.SequenceNumber)
	assert.Equal(t, [][]int64{{10, 5}}, state.Bids)

	server.diffs <- &domain.OrderBookDiff{
		SequenceNumber: 101,
		Bids:           [][]int64{{10, 2}},
		Asks:           [][]int64{{11, 0}, {12, 7}},
	}

	state = recvBookState(t, sub)
	assert.Equal(t, int64(101), state.SequenceNumber)
	assert.Equal(t, [][]int64{{10, 2}}, state.Bids)
	assert.Equal(t, [][]int64{{12, 7}}, state.Asks, "a zero quantity removes the level")
}

func TestClient_StreamDepth_GapResyncsFromSnapshot(t *testing.T) {
	server := newExchangeStub(t)
	defer server.Close()
	defer close(server.diffs)

	c := newTestClient(t, server)
	defer c.Close()

	sub, err := c.StreamDepth(domain.NewAssetIdentifier(200))
	require.NoError(t, err)

	recvBookState(t, sub) // snapshot at 100

	// the next snapshot fetch sees a newer book
	server.mu.Lock()
	server.sequence = 150
	server.mu.Unlock()

	server.diffs <- &domain.OrderBookDiff{SequenceNumber: 110, Bids: [][]int64{{10, 1}}} // gap

	state := recvBookState(t, sub)
	assert.Equal(t, int64(150), state.SequenceNumber, "gap must resolve through a fresh snapshot")

	select {
	case <-sub.Resets:
	case <-time.After(2 * time.Second):
		t.Fatal("expected a reset signal after the resync")
	}
}

func TestClient_CloseStopsDepthStream(t *testing.T) {
	server := newExchangeStub(t)
	defer server.Close()
	defer close(server.diffs)

	c := newTestClient(t, server)

	sub, err := c.StreamDepth(domain.NewAssetIdentifier(200))
	require.NoError(t, err)
	recvBookState(t, sub)

	c.Close()

	select {
	case _, ok := <-sub.Stream:
		assert.False(t, ok, "depth stream must be closed after Close")
	case <-time.After(2 * time.Second):
		t.Fatal("depth stream was not closed")
	}

	_, err = c.StreamDepth(domain.NewAssetIdentifier(200))
	assert.ErrorIs(t, err, domain.ErrStreamClosed)
}

func recvBookState(t *testing.T, sub *domain.Subscription[*domain.OrderBookSnapshot]) *domain.OrderBookSnapshot {
	t.Helper()
	select {
	case state, ok := <-sub.Stream:
		require.True(t, ok, "depth stream closed unexpectedly")
		return state
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a book state")
		return nil
	}
}
