package tplus

import (
	"encoding/json"
	"sync"

	"github.com/spooky-finn/go-exchange-client/domain"
)

// StreamAPI turns the raw byte streams of the StreamClient into typed event
// sequences, one decoder goroutine per subscription. Decoding failures are
// logged and skipped; a malformed message must not kill the stream.
type StreamAPI struct {
	client *StreamClient
}

func NewStreamAPI(client *StreamClient) *StreamAPI {
	return &StreamAPI{client: client}
}

// DepthDiffStream implements domain.DepthStreamAPI.
func (s *StreamAPI) DepthDiffStream(asset domain.AssetIdentifier) (*domain.Subscription[*domain.OrderBookDiff], error) {
	return subscribeTyped(s.client, "/marketdepth/diff/"+asset.String(), func(msg []byte) (*domain.OrderBookDiff, error) {
		var diff domain.OrderBookDiff
		err := json.Unmarshal(msg, &diff)
		return &diff, err
	})
}

// FinalizedTradeStream delivers confirmed trades across all assets.
func (s *StreamAPI) FinalizedTradeStream() (*domain.Subscription[*domain.Trade], error) {
	return subscribeTyped(s.client, "/trades", func(msg []byte) (*domain.Trade, error) {
		var trade domain.Trade
		err := json.Unmarshal(msg, &trade)
		return &trade, err
	})
}

// TradeEventStream delivers every trade lifecycle event (pending, confirmed,
// rollbacked) across all assets.
func (s *StreamAPI) TradeEventStream() (*domain.Subscription[domain.TradeEvent], error) {
	return subscribeTyped(s.client, "/trades/events", domain.ParseTradeEvent)
}

// OrderEventStream delivers order lifecycle events.
func (s *StreamAPI) OrderEventStream() (*domain.Subscription[domain.OrderEvent], error) {
	return subscribeTyped(s.client, "/orders", domain.ParseOrderEvent)
}

// UserTradeEventStream delivers all trade events of one user.
func (s *StreamAPI) UserTradeEventStream(userID string) (*domain.Subscription[*domain.Trade], error) {
	return subscribeTyped(s.client, "/trades/user/events/"+userID, func(msg []byte) (*domain.Trade, error) {
		var trade domain.Trade
		err := json.Unmarshal(msg, &trade)
		return &trade, err
	})
}

// UserFinalizedTradeStream delivers only confirmed trades of one user.
func (s *StreamAPI) UserFinalizedTradeStream(userID string) (*domain.Subscription[*domain.Trade], error) {
	return subscribeTyped(s.client, "/trades/user/"+userID, func(msg []byte) (*domain.Trade, error) {
		var trade domain.Trade
		err := json.Unmarshal(msg, &trade)
		return &trade, err
	})
}

// KlineStream delivers candlestick updates for one asset.
func (s *StreamAPI) KlineStream(asset domain.AssetIdentifier) (*domain.Subscription[*domain.KlineUpdate], error) {
	return subscribeTyped(s.client, "/klines/diff/"+asset.String(), func(msg []byte) (*domain.KlineUpdate, error) {
		var kline domain.KlineUpdate
		err := json.Unmarshal(msg, &kline)
		return &kline, err
	})
}

func subscribeTyped[T any](client *StreamClient, topic string, parse func([]byte) (T, error)) (*domain.Subscription[T], error) {
	raw, err := client.Subscribe(topic)
	if err != nil {
		return nil, err
	}

	out := make(chan T)
	done := make(chan struct{})
	var closeOnce sync.Once

	go func() {
		defer close(out)
		for msg := range raw.Stream {
			event, err := parse(msg)
			if err != nil {
				logger.WithError(err).Warnf("skipping malformed message on %s", topic)
				continue
			}
			// an unsubscribe must release the decoder even when the consumer
			// never drains the event in flight
			select {
			case out <- event:
			case <-done:
				return
			}
		}
	}()

	return &domain.Subscription[T]{
		Stream: out,
		Resets: raw.Resets,
		Topic:  topic,
		Unsubscribe: func() {
			closeOnce.Do(func() { close(done) })
			raw.Unsubscribe()
		},
	}, nil
}
